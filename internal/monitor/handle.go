package monitor

import (
	"context"
	"sync"

	"blockcheck/internal/models"
)

// RunHandle tracks one run started by Monitor.StartRun.
type RunHandle struct {
	ID         string
	Generation uint64

	once       sync.Once
	done       chan struct{}
	final      models.RunState
	superseded bool
}

func newRunHandle(id string, generation uint64) *RunHandle {
	return &RunHandle{
		ID:         id,
		Generation: generation,
		done:       make(chan struct{}),
	}
}

// Done is closed once the run finishes or is superseded.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run ends and returns its final state. It returns
// ErrSuperseded when a reset or newer run replaced this one.
func (h *RunHandle) Wait(ctx context.Context) (models.RunState, error) {
	select {
	case <-h.done:
		if h.superseded {
			return h.final, ErrSuperseded
		}
		return h.final, nil
	case <-ctx.Done():
		return models.RunState{}, ctx.Err()
	}
}

func (h *RunHandle) finish(state models.RunState, superseded bool) {
	h.once.Do(func() {
		h.final = state
		h.superseded = superseded
		close(h.done)
	})
}
