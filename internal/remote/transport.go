// Package remote talks to the finance backend.
//
// Two Transport implementations exist: HTTPClient for the real API and
// Fixture, an in-memory stand-in used for local development and tests.
package remote

import (
	"context"

	"github.com/NgigiN/finsync/internal/model"
)

// Receipt is the backend's confirmation of a created transaction.
type Receipt struct {
	Message string `json:"message"`
}

// Transport submits transactions and probes backend reachability.
//
// CreateTransaction returns an apperr validation error for 4xx responses and
// an apperr transient error for network failures, timeouts and 5xx.
type Transport interface {
	CreateTransaction(ctx context.Context, p model.Payload) (Receipt, error)
	Ping(ctx context.Context) error
}
