package offline

import (
	"context"
	"log/slog"
	"time"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
)

// Enqueuer stores a payload for later replay.
type Enqueuer interface {
	Enqueue(ctx context.Context, p model.Payload) (string, error)
}

// SubmitterConfig tunes direct submission.
type SubmitterConfig struct {
	Attempts       int
	Backoff        time.Duration
	RequestTimeout time.Duration
}

// Result is what the caller shows to the user after Submit.
type Result struct {
	Success     bool   `json:"success"`
	UsedOffline bool   `json:"used_offline"`
	LocalID     string `json:"local_id,omitempty"`
	Message     string `json:"message"`
}

// Submitter is the single entry point for adding a transaction.
type Submitter struct {
	creator Creator
	queue   Enqueuer
	cfg     SubmitterConfig
	sleep   func(ctx context.Context, d time.Duration) bool
}

// NewSubmitter builds a Submitter. Defaults: 3 attempts, 1s initial backoff,
// 15s per request.
func NewSubmitter(creator Creator, queue Enqueuer, cfg SubmitterConfig) *Submitter {
	if cfg.Attempts < 1 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	return &Submitter{
		creator: creator,
		queue:   queue,
		cfg:     cfg,
		sleep:   sleepBackoff,
	}
}

// Submit sends p to the remote API, retrying transient failures. When every
// attempt fails the payload is saved locally and the result reports success
// with UsedOffline set; a credential rejection is queued the same way. The
// returned error is non-nil only for validation
// failures and when the local save fails too.
func (s *Submitter) Submit(ctx context.Context, p model.Payload) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{Message: apperr.UserMessage(err)}, err
	}

	var message string
	err := retry(ctx, s.cfg.Attempts, s.cfg.Backoff, s.sleep, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()

		receipt, err := s.creator.CreateTransaction(reqCtx, p)
		if err != nil {
			slog.WarnContext(ctx, "direct submission failed", "error", err)
			return err
		}
		message = receipt.Message
		return nil
	})

	switch {
	case err == nil:
		return Result{Success: true, Message: message}, nil
	case apperr.IsValidation(err):
		return Result{Message: apperr.UserMessage(err)}, err
	}

	// the record must survive a caller that gave up waiting
	localID, qErr := s.queue.Enqueue(context.WithoutCancel(ctx), p)
	if qErr != nil {
		slog.ErrorContext(ctx, "transaction not saved", "remote_error", err, "error", qErr)
		return Result{Message: "transaction was not saved: " + apperr.UserMessage(qErr)}, qErr
	}

	slog.InfoContext(ctx, "transaction saved offline", "local_id", localID, "remote_error", err)
	return Result{
		Success:     true,
		UsedOffline: true,
		LocalID:     localID,
		Message:     "saved offline, it will be synced when the connection is back",
	}, nil
}
