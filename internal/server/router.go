package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/NgigiN/finsync/internal/apperr"
)

// Handler returns a payload to encode as JSON, or an error.
type Handler func(ctx context.Context, r *http.Request) (any, error)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type router struct {
	hr  *httprouter.Router
	mws []Middleware
}

func newRouter() *router {
	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "endpoint not found"}, http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "method not allowed"}, http.StatusMethodNotAllowed)
		}),
	}

	return &router{
		hr:  hr,
		mws: []Middleware{recoverer, logging},
	}
}

func (ro *router) GET(path string, h Handler)    { ro.endpoint(http.MethodGet, path, h) }
func (ro *router) POST(path string, h Handler)   { ro.endpoint(http.MethodPost, path, h) }
func (ro *router) DELETE(path string, h Handler) { ro.endpoint(http.MethodDelete, path, h) }

func (ro *router) endpoint(method, path string, h Handler) {
	ro.hr.Handler(method, path, Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := h(r.Context(), r)
		if err != nil {
			encodeError(r.Context(), w, err)
			return
		}
		encodeOK(w, resp)
	}), ro.mws...))
}

func (ro *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ro.hr.ServeHTTP(w, r)
}

type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

type successResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func errorStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		var aerr *apperr.Error
		if errors.As(err, &aerr) && aerr.Status() >= 400 && aerr.Status() < 500 {
			return aerr.Status()
		}
		return http.StatusBadRequest
	case apperr.KindTransient, apperr.KindAuth:
		return http.StatusBadGateway
	case apperr.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func encodeError(ctx context.Context, w http.ResponseWriter, err error) {
	var aerr *apperr.Error
	if !errors.As(err, &aerr) {
		slog.ErrorContext(ctx, "unclassified error in handler", "error", err)
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	writeJSON(w, errorResponse{Message: aerr.Message(), Kind: aerr.Kind().String()}, errorStatus(err))
}

func encodeOK(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(interface{ StatusCode() int }); ok {
		code = sc.StatusCode()
	}

	msg := "request has been successfully"
	if m, ok := resp.(interface{ Message() string }); ok {
		msg = m.Message()
	}

	writeJSON(w, successResponse{Message: msg, Data: resp}, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode data to json", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				slog.ErrorContext(r.Context(), "panic on the server", "because", rvr, "stack", string(debug.Stack()))
				writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}
