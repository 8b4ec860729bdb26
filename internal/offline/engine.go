package offline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/remote"
	"github.com/NgigiN/finsync/internal/storage"
)

// Queue is the part of the local store the sync engine drives.
type Queue interface {
	ListUnsynced(ctx context.Context) ([]storage.PendingTransaction, error)
	MarkSynced(ctx context.Context, localID string) error
	RecordFailure(ctx context.Context, localID, reason string, stall bool, maxAttempts int) error
}

// Creator submits one transaction to the remote API.
type Creator interface {
	CreateTransaction(ctx context.Context, p model.Payload) (remote.Receipt, error)
}

// Connectivity reports whether a drain is worth attempting.
type Connectivity interface {
	NetworkReachable() bool
	BackendReachable() bool
}

// EngineConfig tunes the sync engine.
type EngineConfig struct {
	// RecordAttempts bounds submissions per record within one pass.
	RecordAttempts int
	// RecordBackoff is the wait before the second attempt; it doubles.
	RecordBackoff time.Duration
	// RequestTimeout bounds each submission.
	RequestTimeout time.Duration
	// MaxAttempts flags a record stalled after that many failed passes.
	// Zero disables the limit.
	MaxAttempts int
}

// Report describes one drain pass.
type Report struct {
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Coalesced bool `json:"coalesced"`
	Offline   bool `json:"offline"`

	// Unauthorized is set when the backend refused the credentials and the
	// pass stopped early.
	Unauthorized bool `json:"unauthorized"`
}

// Partial reports whether some records synced and others did not.
func (r Report) Partial() bool {
	return r.Synced > 0 && r.Failed > 0
}

// Engine replays queued transactions against the remote API.
type Engine struct {
	queue   Queue
	creator Creator
	conn    Connectivity
	cfg     EngineConfig
	sleep   func(ctx context.Context, d time.Duration) bool
	running atomic.Bool
}

// NewEngine builds an Engine.
func NewEngine(queue Queue, creator Creator, conn Connectivity, cfg EngineConfig) *Engine {
	if cfg.RecordAttempts < 1 {
		cfg.RecordAttempts = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.RecordBackoff <= 0 {
		cfg.RecordBackoff = time.Second
	}

	return &Engine{
		queue:   queue,
		creator: creator,
		conn:    conn,
		cfg:     cfg,
		sleep:   sleepBackoff,
	}
}

// Running reports whether a drain pass is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Drain submits every unsynced, non-stalled record in FIFO order. A record
// that fails stays queued and the pass moves on. A call made while another
// pass is running returns at once with Coalesced set. A credential rejection
// ends the pass without charging the record.
func (e *Engine) Drain(ctx context.Context) (Report, error) {
	if !e.conn.NetworkReachable() || !e.conn.BackendReachable() {
		return Report{Offline: true}, nil
	}

	if !e.running.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "sync already running, trigger coalesced")
		return Report{Coalesced: true}, nil
	}
	defer e.running.Store(false)

	rows, err := e.queue.ListUnsynced(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		if row.Stalled {
			report.Skipped++
			continue
		}

		report.Attempted++
		err := e.replay(ctx, row.Payload())
		if err == nil {
			if markErr := e.queue.MarkSynced(ctx, row.LocalID); markErr != nil {
				return report, markErr
			}
			report.Synced++
			continue
		}

		report.Failed++
		if apperr.IsAuth(err) {
			slog.ErrorContext(ctx, "backend rejected the credentials, sync stopped", "local_id", row.LocalID, "error", err)
			report.Unauthorized = true
			break
		}

		stall := apperr.IsValidation(err)
		slog.WarnContext(ctx, "failed to sync transaction", "local_id", row.LocalID, "stall", stall, "error", err)
		if recErr := e.queue.RecordFailure(ctx, row.LocalID, apperr.UserMessage(err), stall, e.cfg.MaxAttempts); recErr != nil {
			return report, recErr
		}
	}

	if report.Attempted > 0 || report.Skipped > 0 {
		slog.InfoContext(ctx, "sync pass finished",
			"attempted", report.Attempted,
			"synced", report.Synced,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"unauthorized", report.Unauthorized,
		)
	}
	return report, nil
}

func (e *Engine) replay(ctx context.Context, p model.Payload) error {
	return retry(ctx, e.cfg.RecordAttempts, e.cfg.RecordBackoff, e.sleep, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()

		_, err := e.creator.CreateTransaction(reqCtx, p)
		return err
	})
}
