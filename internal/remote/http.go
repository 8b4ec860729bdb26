package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	BaseURL    string
	Token      string
	CreatePath string
	HealthPath string
}

// HTTPClient is the Transport for the real backend.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClient returns a client for cfg. Timeouts come from the caller's
// context; client may be nil.
func NewHTTPClient(cfg HTTPConfig, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	if cfg.CreatePath == "" {
		cfg.CreatePath = "/add-lancamento"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPClient{cfg: cfg, client: client}
}

// lancamento is the body the backend's add-lancamento endpoint reads.
type lancamento struct {
	Email     string  `json:"email,omitempty"`
	Tipo      string  `json:"tipo"`
	Desc      string  `json:"desc"`
	Valor     float64 `json:"valor"`
	Data      string  `json:"data"`
	Categoria string  `json:"categoria,omitempty"`
	MetodoPag string  `json:"metodoPag,omitempty"`
	Parcelado bool    `json:"parcelado,omitempty"`
	Parcelas  int     `json:"parcelas,omitempty"`
}

func toLancamento(p model.Payload) lancamento {
	out := lancamento{
		Email: p.Owner,
		Tipo:  "entrada",
		Desc:  p.Description,
		Valor: p.Value.InexactFloat64(),
		Data:  p.Date,
	}
	if p.Type == model.TxTypeExpense {
		out.Tipo = "saida"
		out.Categoria = p.Category
		out.MetodoPag = p.PaymentMethod
		out.Parcelado = p.Installments > 1
		out.Parcelas = max(p.Installments, 1)
	}
	return out
}

// apiMessage covers the message keys the backend has used.
type apiMessage struct {
	Mensagem string `json:"mensagem"`
	Message  string `json:"message"`
	Erro     string `json:"erro"`
	Error    string `json:"error"`
}

func (m apiMessage) text() string {
	for _, s := range []string{m.Mensagem, m.Message, m.Erro, m.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CreateTransaction posts p to the backend.
func (c *HTTPClient) CreateTransaction(ctx context.Context, p model.Payload) (Receipt, error) {
	body, err := json.Marshal(toLancamento(p))
	if err != nil {
		return Receipt{}, apperr.NewInternal(fmt.Errorf("failed to encode transaction: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.CreatePath, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, apperr.NewInternal(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, apperr.NewTransient(err, 0)
	}
	defer resp.Body.Close()

	var msg apiMessage
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		slog.WarnContext(ctx, "failed to read backend response body", "status", resp.StatusCode, "error", err)
	}
	_ = json.Unmarshal(raw, &msg)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		text := msg.text()
		if text == "" {
			text = "transaction created"
		}
		return Receipt{Message: text}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		text := msg.text()
		if text == "" {
			text = "backend rejected the credentials"
		}
		return Receipt{}, apperr.NewAuth(text, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return Receipt{}, apperr.NewTransient(fmt.Errorf("backend returned %s", resp.Status), resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		text := msg.text()
		if text == "" {
			text = strings.TrimSpace(string(raw))
		}
		if text == "" {
			text = resp.Status
		}
		return Receipt{}, apperr.NewValidation(text, resp.StatusCode)
	default:
		return Receipt{}, apperr.NewTransient(fmt.Errorf("backend returned %s", resp.Status), resp.StatusCode)
	}
}

// Ping issues a GET against the health path.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.cfg.HealthPath, nil)
	if err != nil {
		return apperr.NewInternal(fmt.Errorf("failed to build request: %w", err))
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.NewTransient(err, 0)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.NewTransient(errors.New("health check returned "+resp.Status), resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}
