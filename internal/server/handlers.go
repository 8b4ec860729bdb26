package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/storage"
)

const maxBodyBytes = 1 << 20

var errNotFound = apperr.NewValidation("transaction not found", http.StatusNotFound)

type healthResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	Conn      offline.ConnState `json:"connectivity"`
	Timestamp string            `json:"timestamp"`
}

type statusResponse struct {
	Queue   storage.Status    `json:"queue"`
	Conn    offline.ConnState `json:"connectivity"`
	Syncing bool              `json:"syncing"`
}

// submitResponse answers 201 when the backend took the transaction and 202
// when it was queued.
type submitResponse struct {
	UsedOffline bool   `json:"used_offline"`
	LocalID     string `json:"local_id,omitempty"`
	msg         string
}

func newSubmitResponse(res offline.Result) submitResponse {
	return submitResponse{UsedOffline: res.UsedOffline, LocalID: res.LocalID, msg: res.Message}
}

func (r submitResponse) StatusCode() int {
	if r.UsedOffline {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

func (r submitResponse) Message() string { return r.msg }

type reportResponse struct {
	offline.Report
	PartialFailure bool `json:"partial"`
}

func newReportResponse(r offline.Report) reportResponse {
	return reportResponse{Report: r, PartialFailure: r.Partial()}
}

func (r reportResponse) Message() string {
	switch {
	case r.Offline:
		return "offline, nothing was synced"
	case r.Coalesced:
		return "a sync is already running"
	case r.Unauthorized:
		return "the backend rejected the credentials, sync stopped"
	case r.PartialFailure:
		return "some transactions could not be synced"
	default:
		return "sync finished"
	}
}

type pruneResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) health(_ context.Context, _ *http.Request) (any, error) {
	return healthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Conn:      s.deps.Monitor.State(),
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}

func (s *Server) status(ctx context.Context, _ *http.Request) (any, error) {
	st, err := s.deps.Store.Status(ctx)
	if err != nil {
		return nil, err
	}
	return statusResponse{
		Queue:   st,
		Conn:    s.deps.Monitor.State(),
		Syncing: s.deps.Syncer.Running(),
	}, nil
}

func (s *Server) listTransactions(ctx context.Context, r *http.Request) (any, error) {
	rows, err := s.deps.Store.ListAll(ctx, r.URL.Query().Get("email"))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []storage.PendingTransaction{}
	}
	return rows, nil
}

func (s *Server) submitTransaction(ctx context.Context, r *http.Request) (any, error) {
	var p model.Payload
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		return nil, apperr.NewValidation("invalid request body: "+err.Error(), http.StatusBadRequest)
	}
	if p.Owner == "" {
		p.Owner = s.deps.DefaultOwner
	}

	res, err := s.deps.Submitter.Submit(ctx, p)
	if err != nil {
		return nil, err
	}
	return newSubmitResponse(res), nil
}

func (s *Server) sync(ctx context.Context, _ *http.Request) (any, error) {
	report, err := s.deps.Syncer.Drain(ctx)
	if err != nil {
		return nil, err
	}
	return newReportResponse(report), nil
}

func (s *Server) retry(ctx context.Context, _ *http.Request) (any, error) {
	report, err := s.deps.Monitor.Retry(ctx)
	if err != nil {
		return nil, err
	}
	return newReportResponse(report), nil
}

func (s *Server) pruneSynced(ctx context.Context, _ *http.Request) (any, error) {
	n, err := s.deps.Store.PruneSynced(ctx)
	if err != nil {
		return nil, err
	}
	return pruneResponse{Deleted: n}, nil
}

func (s *Server) requeue(ctx context.Context, r *http.Request) (any, error) {
	id := httprouter.ParamsFromContext(ctx).ByName("id")
	ok, err := s.deps.Store.Requeue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotFound
	}
	return map[string]string{"local_id": id}, nil
}
