// Package llm classifies unique keys into data-type categories using a remote
// language model. Each call labels a list of keys at one sampling temperature;
// long lists are sent in sublists. Supported providers are OpenAI and
// Anthropic, with retry on transient failures, rate limiting, and response
// caching.
package llm
