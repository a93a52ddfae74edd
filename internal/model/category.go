package model

// Category is one member of the closed data-type vocabulary.
type Category struct {
	Name  string `yaml:"name" json:"name"`
	Group string `yaml:"group" json:"group,omitempty"`
}
