package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NgigiN/finsync/internal/apperr"
)

// DateLayout is the canonical transaction date format.
const DateLayout = "2006-01-02"

// legacyDateLayout is the day-first format the mobile forms sent.
const legacyDateLayout = "02/01/2006"

// TxType distinguishes money coming in from money going out.
type TxType string

const (
	TxTypeIncome  TxType = "income"
	TxTypeExpense TxType = "expense"
)

// ParseTxType maps canonical and legacy type names onto a TxType.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "entrada", "receita":
		return TxTypeIncome, nil
	case "expense", "saida", "saída", "despesa":
		return TxTypeExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// Payload is the canonical body of a transaction submission.
type Payload struct {
	Owner         string          `json:"email,omitempty"`
	Type          TxType          `json:"type"`
	Description   string          `json:"description"`
	Value         decimal.Decimal `json:"value"`
	Date          string          `json:"date"`
	Category      string          `json:"category,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Installments  int             `json:"installments,omitempty"`
}

// Validate checks the payload before it is sent or stored.
func (p Payload) Validate() error {
	if p.Type != TxTypeIncome && p.Type != TxTypeExpense {
		return apperr.NewValidation("type must be income or expense", 0)
	}
	if strings.TrimSpace(p.Description) == "" {
		return apperr.NewValidation("description is required", 0)
	}
	if !p.Value.IsPositive() {
		return apperr.NewValidation("value must be greater than zero", 0)
	}
	if _, err := time.Parse(DateLayout, p.Date); err != nil {
		return apperr.NewValidation("date must be formatted as YYYY-MM-DD", 0)
	}
	if p.Installments < 0 {
		return apperr.NewValidation("installments cannot be negative", 0)
	}
	return nil
}

// payloadFields accepts every field name the product has used over time.
type payloadFields struct {
	Email string `json:"email"`

	Type string `json:"type"`
	Tipo string `json:"tipo"`

	Description string `json:"description"`
	Desc        string `json:"desc"`
	Descricao   string `json:"descricao"`

	Value *decimal.Decimal `json:"value"`
	Valor *decimal.Decimal `json:"valor"`

	Date string `json:"date"`
	Data string `json:"data"`

	Category  string `json:"category"`
	Categoria string `json:"categoria"`

	PaymentMethod   string `json:"payment_method"`
	MetodoPag       string `json:"metodoPag"`
	MetodoPagamento string `json:"metodo_pagamento"`

	Installments *int  `json:"installments"`
	Parcelas     *int  `json:"parcelas"`
	Parcelado    *bool `json:"parcelado"`
}

// UnmarshalJSON decodes canonical or legacy field names into the canonical
// schema. Canonical names win when both are present.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var f payloadFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	out := Payload{
		Owner:         f.Email,
		Description:   firstNonEmpty(f.Description, f.Desc, f.Descricao),
		Category:      firstNonEmpty(f.Category, f.Categoria),
		PaymentMethod: firstNonEmpty(f.PaymentMethod, f.MetodoPag, f.MetodoPagamento),
	}

	if raw := firstNonEmpty(f.Type, f.Tipo); raw != "" {
		typ, err := ParseTxType(raw)
		if err != nil {
			return err
		}
		out.Type = typ
	}

	switch {
	case f.Value != nil:
		out.Value = *f.Value
	case f.Valor != nil:
		out.Value = *f.Valor
	}

	if raw := firstNonEmpty(f.Date, f.Data); raw != "" {
		date, err := NormalizeDate(raw)
		if err != nil {
			return err
		}
		out.Date = date
	}

	switch {
	case f.Installments != nil:
		out.Installments = *f.Installments
	case f.Parcelas != nil:
		out.Installments = *f.Parcelas
	}
	if f.Parcelado != nil && !*f.Parcelado {
		out.Installments = 0
	}

	*p = out
	return nil
}

// NormalizeDate converts YYYY-MM-DD, DD/MM/YYYY or RFC 3339 timestamps into
// the canonical date layout.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, legacyDateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", errors.New("unrecognised date " + s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
