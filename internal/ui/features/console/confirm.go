package console

import (
	"sync"

	"github.com/leapstack-labs/docdesk/internal/bulk"
)

// confirmSlot is the one confirmation dialog shared by every open view.
// A view takes the slot when it asks for a confirmation, replacing whichever
// view held it before.
type confirmSlot struct {
	mu         sync.Mutex
	dispatcher *bulk.Dispatcher
}

// request registers v as the dialog and hands it c. Register and Request run
// under one lock so a confirmation never lands on another view.
func (s *confirmSlot) request(v *View, c bulk.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := v.ctx.Err(); err != nil {
		return err
	}
	deregister := s.dispatcher.Register(v.present)

	v.mu.Lock()
	v.deregister = deregister
	v.mu.Unlock()

	return s.dispatcher.Request(c)
}

// present shows c in the view's dialog.
func (v *View) present(c bulk.Confirmation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = &c
}
