package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
)

// InterruptHandler turns the first SIGINT or SIGTERM into a context
// cancellation and tells the operator what becomes of requests in flight.
type InterruptHandler struct {
	out         io.Writer
	cancel      context.CancelFunc
	signals     chan os.Signal
	mu          sync.Mutex
	interrupted bool
	resumable   bool
}

func NewInterruptHandler(out io.Writer) *InterruptHandler {
	if out == nil {
		out = os.Stderr
	}
	return &InterruptHandler{out: out}
}

// HandleInterrupts derives a context that is canceled on the first signal.
// When resumable is set, the notice says a re-run picks up the stored labels.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, resumable bool) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	h.resumable = resumable
	h.signals = make(chan os.Signal, 1)
	signals := h.signals
	h.mu.Unlock()

	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			h.interrupt()
		case <-ctx.Done():
		}
	}()

	return ctx
}

// Stop unsubscribes from signals.
func (h *InterruptHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.signals != nil {
		signal.Stop(h.signals)
	}
}

func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interrupted {
		return
	}
	h.interrupted = true
	if _, err := fmt.Fprint(h.out, h.notice()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *InterruptHandler) notice() string {
	lines := []string{
		"",
		FormatWarning("Classification interrupted!"),
		FormatInfo("Requests already sent will finish; no further sublists are sent."),
	}
	if h.resumable {
		lines = append(lines, FormatInfo("Labels received so far are stored. Run kvlabel classify again to send only the remaining keys."))
	}
	return strings.Join(lines, "\n") + "\n"
}

// WasInterrupted reports whether a signal canceled the run.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
