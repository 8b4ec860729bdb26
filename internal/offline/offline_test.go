package offline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/remote"
	"github.com/NgigiN/finsync/internal/storage"
)

// stepClock advances one millisecond per call so enqueue order is strict.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func openQueue(t *testing.T) *storage.Database {
	t.Helper()

	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "offline.db"), storage.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type staticConn struct {
	network, backend bool
}

func (c staticConn) NetworkReachable() bool { return c.network }
func (c staticConn) BackendReachable() bool { return c.backend }

var online = staticConn{network: true, backend: true}

func payload(desc string) model.Payload {
	return model.Payload{
		Type:        model.TxTypeExpense,
		Description: desc,
		Value:       decimal.RequireFromString("25.50"),
		Date:        "2024-03-01",
	}
}

// noSleep records requested backoffs without waiting.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) bool {
	n.mu.Lock()
	n.waits = append(n.waits, d)
	n.mu.Unlock()
	return ctx.Err() == nil
}

// creatorFunc adapts a function to Creator.
type creatorFunc func(ctx context.Context, p model.Payload) (remote.Receipt, error)

func (f creatorFunc) CreateTransaction(ctx context.Context, p model.Payload) (remote.Receipt, error) {
	return f(ctx, p)
}
