// Package mpesa turns M-PESA confirmation SMS into transaction payloads.
package mpesa

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NgigiN/finsync/internal/model"
)

// PaymentMethod is stamped on payloads built from M-PESA messages.
const PaymentMethod = "mpesa"

const money = `Ksh[\d,]+(?:\.\d+)?`

// The confirmations vary in punctuation: optional periods, "PM.New" with no
// space, "for account ..." inside the counterparty, business balances.
var (
	outgoingRe = regexp.MustCompile(`(?i)(\w+)\s+Confirmed\.?\s+(` + money + `)\s+(sent|paid)\s+to\s+(.*?)\s*\.?\s+on\s+(\d{1,2}/\d{1,2}/\d{2})\s+at\s+(\d{1,2}:\d{2}\s?(?:AM|PM))\.?\s*New\s+(?:M-PESA|business)\s+balance\s+is\s+(` + money + `)\.\s*Transaction\s+cost,?\s*(` + money + `)(?:\.|\b)`)
	incomingRe = regexp.MustCompile(`(?i)(\w+)\s+Confirmed\.?\s*You\s+have\s+received\s+(` + money + `)\s+from\s+(.*?)\s*\.?\s+on\s+(\d{1,2}/\d{1,2}/\d{2})\s+at\s+(\d{1,2}:\d{2}\s?(?:AM|PM))\.?\s*New\s+(?:M-PESA|business)\s+balance\s+is\s+(` + money + `)`)
)

// ParsedTransaction is the data read from one confirmation.
type ParsedTransaction struct {
	TransactionID string
	Type          model.TxType
	Amount        decimal.Decimal
	Counterparty  string
	DateTime      time.Time
	Balance       decimal.Decimal
	Cost          decimal.Decimal
}

// IsConfirmation reports whether line starts an M-PESA confirmation.
func IsConfirmation(line string) bool {
	if !strings.Contains(line, "Confirmed.") {
		return false
	}
	return strings.Contains(line, "sent to") || strings.Contains(line, "paid to") || strings.Contains(line, "received")
}

// ParseMPesaMessage parses a sent, paid or received confirmation.
func ParseMPesaMessage(msg string) (*ParsedTransaction, error) {
	if m := outgoingRe.FindStringSubmatch(msg); m != nil {
		return build(model.TxTypeExpense, m[1], m[2], m[4], m[5], m[6], m[7], m[8])
	}
	if m := incomingRe.FindStringSubmatch(msg); m != nil {
		return build(model.TxTypeIncome, m[1], m[2], m[3], m[4], m[5], m[6], "Ksh0")
	}
	return nil, fmt.Errorf("not a valid M-PESA confirmation")
}

func build(typ model.TxType, id, amount, party, date, clock, balance, cost string) (*ParsedTransaction, error) {
	amt, err := parseKsh(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	bal, err := parseKsh(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	fee, err := parseKsh(cost)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cost: %w", err)
	}
	at, err := parseDateTime(date, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date/time: %w", err)
	}

	return &ParsedTransaction{
		TransactionID: strings.ToUpper(id),
		Type:          typ,
		Amount:        amt,
		Counterparty:  strings.Join(strings.Fields(strings.TrimSuffix(party, ".")), " "),
		DateTime:      at,
		Balance:       bal,
		Cost:          fee,
	}, nil
}

func parseKsh(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimPrefix(s, "Ksh"), ",", ""))
}

// parseDateTime reads d/m/yy and h:mm[ ]AM|PM.
func parseDateTime(date, clock string) (time.Time, error) {
	parts := strings.Split(date, "/")
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])

	clock = strings.ToUpper(strings.ReplaceAll(clock, " ", ""))
	clock = clock[:len(clock)-2] + " " + clock[len(clock)-2:]

	return time.Parse("2006-01-02 3:04 PM", fmt.Sprintf("%d-%02d-%02d %s", 2000+year, month, day, clock))
}

// Payload converts the confirmation into a submission. The transaction cost
// is added to outgoing amounts since it leaves the wallet too.
func (p *ParsedTransaction) Payload(category, note string) model.Payload {
	verb := "to"
	value := p.Amount
	if p.Type == model.TxTypeIncome {
		verb = "from"
	} else {
		value = value.Add(p.Cost)
	}

	desc := fmt.Sprintf("M-PESA %s %s %s", p.TransactionID, verb, p.Counterparty)
	if note != "" {
		desc += " - " + note
	}

	return model.Payload{
		Type:          p.Type,
		Description:   desc,
		Value:         value,
		Date:          p.DateTime.Format(model.DateLayout),
		Category:      category,
		PaymentMethod: PaymentMethod,
	}
}
