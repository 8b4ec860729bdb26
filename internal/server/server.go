// Package server exposes the local control API: submit transactions, inspect
// the offline queue and trigger syncs.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/storage"
)

// Submitter adds a transaction, online or offline.
type Submitter interface {
	Submit(ctx context.Context, p model.Payload) (offline.Result, error)
}

// Syncer runs drain passes.
type Syncer interface {
	Drain(ctx context.Context) (offline.Report, error)
	Running() bool
}

// Monitor exposes connectivity and the manual retry action.
type Monitor interface {
	State() offline.ConnState
	Retry(ctx context.Context) (offline.Report, error)
}

// Store is the read and housekeeping side of the local queue.
type Store interface {
	Status(ctx context.Context) (storage.Status, error)
	ListAll(ctx context.Context, owner string) ([]storage.PendingTransaction, error)
	Requeue(ctx context.Context, localID string) (bool, error)
	PruneSynced(ctx context.Context) (int64, error)
}

// Deps are the services the handlers call.
type Deps struct {
	Submitter Submitter
	Syncer    Syncer
	Monitor   Monitor
	Store     Store
	// DefaultOwner is stamped on submissions that carry no email.
	DefaultOwner string
}

// Server is the control API HTTP server.
type Server struct {
	deps      Deps
	startTime time.Time
	http      *http.Server
}

// New builds a Server listening on addr.
func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps, startTime: time.Now()}

	ro := newRouter()
	ro.GET("/health", s.health)
	ro.GET("/status", s.status)
	ro.GET("/transactions", s.listTransactions)
	ro.POST("/transactions", s.submitTransaction)
	ro.DELETE("/transactions/synced", s.pruneSynced)
	ro.POST("/transactions/:id/requeue", s.requeue)
	ro.POST("/sync", s.sync)
	ro.POST("/sync/retry", s.retry)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           corsHandler.Handler(ro),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens in the background. Listen errors are returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	go func() {
		slog.Info("control api listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control api stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
