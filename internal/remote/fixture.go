package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
)

// ErrFixtureDown is returned by a Fixture that has been taken offline.
var ErrFixtureDown = errors.New("fixture backend is down")

// Fixture is an in-memory backend. It accepts every valid payload unless it
// is down or a Responder says otherwise.
type Fixture struct {
	mu        sync.Mutex
	down      bool
	responder func(ctx context.Context, p model.Payload) error
	received  []model.Payload
	calls     int
}

// NewFixture returns a reachable fixture backend.
func NewFixture() *Fixture {
	return &Fixture{}
}

// SetDown makes every call fail with a transient error while down is true.
func (f *Fixture) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// SetResponder installs a hook consulted on each CreateTransaction call. A
// non-nil return is passed back to the caller and nothing is recorded.
func (f *Fixture) SetResponder(fn func(ctx context.Context, p model.Payload) error) {
	f.mu.Lock()
	f.responder = fn
	f.mu.Unlock()
}

// CreateTransaction records p.
func (f *Fixture) CreateTransaction(ctx context.Context, p model.Payload) (Receipt, error) {
	f.mu.Lock()
	f.calls++
	down, responder := f.down, f.responder
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Receipt{}, apperr.NewTransient(err, 0)
	}
	if down {
		return Receipt{}, apperr.NewTransient(ErrFixtureDown, 0)
	}
	if err := p.Validate(); err != nil {
		return Receipt{}, err
	}
	if responder != nil {
		if err := responder(ctx, p); err != nil {
			return Receipt{}, err
		}
	}

	f.mu.Lock()
	f.received = append(f.received, p)
	f.mu.Unlock()

	return Receipt{Message: "Lançamento adicionado com sucesso (fixture)"}, nil
}

// Ping fails while the fixture is down.
func (f *Fixture) Ping(ctx context.Context) error {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperr.NewTransient(err, 0)
	}
	if down {
		return apperr.NewTransient(ErrFixtureDown, 0)
	}
	return nil
}

// Received returns the payloads accepted so far, in arrival order.
func (f *Fixture) Received() []model.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Payload, len(f.received))
	copy(out, f.received)
	return out
}

// Calls returns the number of CreateTransaction calls, accepted or not.
func (f *Fixture) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
