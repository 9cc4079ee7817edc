// Package bulk routes confirmation requests for destructive bulk actions to
// the one confirmation dialog that is currently mounted.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoHandler is returned when a confirmation is requested while no dialog
// is registered. The request is logged and dropped.
var ErrNoHandler = errors.New("no confirmation handler registered")

// Kind tags a confirmation payload.
type Kind string

// Confirmation kinds.
const (
	KindDelete Kind = "delete"
	KindExport Kind = "export"
)

// Confirmation is the payload shown by the dialog. OnConfirm runs only after
// the user confirms; it is the sole gate before the destructive call.
type Confirmation struct {
	Type        Kind
	Title       string
	Message     string
	ConfirmText string
	OnConfirm   func(ctx context.Context) error
}

// Handler presents a confirmation.
type Handler func(Confirmation)

// Dispatcher holds the single active handler slot. Registration is
// last-writer-wins.
type Dispatcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	handler Handler
	token   uint64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{logger: logger}
}

// Register installs h as the active handler and returns its deregister func.
// Deregistering after another handler took over leaves the newer one alone.
func (d *Dispatcher) Register(h Handler) (deregister func()) {
	d.mu.Lock()
	d.token++
	token := d.token
	d.handler = h
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.token == token {
			d.handler = nil
		}
	}
}

// Active reports whether a handler is registered.
func (d *Dispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler != nil
}

// Request hands c to the active handler. With no handler the request is
// logged and dropped and ErrNoHandler is returned.
func (d *Dispatcher) Request(c Confirmation) error {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()

	if h == nil {
		d.logger.Warn("dropping confirmation request, no handler registered", "type", string(c.Type), "title", c.Title)
		return ErrNoHandler
	}
	h(c)
	return nil
}

// DeleteConfirmation builds the standard delete payload for ids of a
// resource. del runs on confirm.
func DeleteConfirmation(label string, ids []string, del func(ctx context.Context, ids []string) error) Confirmation {
	title := fmt.Sprintf("Delete %d %s", len(ids), label)
	message := fmt.Sprintf("This permanently deletes %d selected record(s). This cannot be undone.", len(ids))
	if len(ids) == 1 {
		title = "Delete record"
		message = "This permanently deletes the record. This cannot be undone."
	}
	selected := append([]string(nil), ids...)
	return Confirmation{
		Type:        KindDelete,
		Title:       title,
		Message:     message,
		ConfirmText: "Delete",
		OnConfirm: func(ctx context.Context) error {
			return del(ctx, selected)
		},
	}
}
