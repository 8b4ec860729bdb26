package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/mpesa"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/storage"
)

const historyLimit = 10

type Submitter interface {
	Submit(ctx context.Context, p model.Payload) (offline.Result, error)
}

type Syncer interface {
	Drain(ctx context.Context) (offline.Report, error)
}

type Monitor interface {
	State() offline.ConnState
	Retry(ctx context.Context) (offline.Report, error)
}

type Store interface {
	Status(ctx context.Context) (storage.Status, error)
	ListAll(ctx context.Context, owner string) ([]storage.PendingTransaction, error)
	PruneSynced(ctx context.Context) (int64, error)
}

// Deps are the services the bot drives.
type Deps struct {
	Submitter Submitter
	Syncer    Syncer
	Monitor   Monitor
	Store     Store
	Owner     string
}

type Bot struct {
	session   *discordgo.Session
	deps      Deps
	channelID string
	now       func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewBot builds a bot whose handlers run under ctx. Stop cancels them and
// waits for the ones in flight.
func NewBot(ctx context.Context, token, channelID string, deps Deps) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := newBot(ctx, channelID, deps)
	bot.session = session

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func newBot(ctx context.Context, channelID string, deps Deps) *Bot {
	ctx, cancel := context.WithCancel(ctx)
	return &Bot{deps: deps, channelID: channelID, now: time.Now, ctx: ctx, cancel: cancel}
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	slog.Info("discord bot connected", "channel", b.channelID)
	return nil
}

func (b *Bot) Stop() error {
	var err error
	if b.session != nil {
		err = b.session.Close()
	}

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.inflight.Wait()
	return err
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if m.ChannelID != b.channelID {
		return
	}

	reply, ok := b.process(m.Content)
	if !ok || reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		slog.Error("failed to send discord reply", "error", err)
	}
}

// process runs respond unless the bot is stopping. Stop waits for it.
func (b *Bot) process(content string) (string, bool) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", false
	}
	b.inflight.Add(1)
	b.mu.Unlock()
	defer b.inflight.Done()

	return b.respond(b.ctx, content), true
}

// respond handles one channel message and returns the reply to post.
func (b *Bot) respond(ctx context.Context, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	if strings.HasPrefix(content, "!") {
		return b.handleCommand(ctx, strings.Fields(content))
	}

	if countConfirmations(content) > 1 {
		return b.handleBatchMessage(ctx, content)
	}

	lines := strings.Split(content, "\n")
	p, err := b.parseEntry(lines[0], lines[1:])
	if err != nil {
		return fmt.Sprintf("Could not read that transaction: %v\n%s", err, usage)
	}
	return b.submit(ctx, p)
}

const usage = "Use: `expense 25.50 Lunch` or `income 3000 Salary`, optionally followed by lines " +
	"`c: category`, `p: payment method`, `d: 2024-03-01`, `i: installments`, `r: note`, " +
	"or paste an M-PESA confirmation."

func (b *Bot) submit(ctx context.Context, p model.Payload) string {
	p.Owner = b.deps.Owner
	res, err := b.deps.Submitter.Submit(ctx, p)
	if err != nil {
		return fmt.Sprintf("Failed to save transaction: %s", res.Message)
	}
	if res.UsedOffline {
		return fmt.Sprintf("Saved offline (%s): %s %s, it will be synced when the backend is back", res.LocalID, p.Description, p.Value.StringFixed(2))
	}
	return fmt.Sprintf("Tracked %s %s: %s", p.Type, p.Value.StringFixed(2), p.Description)
}

// parseEntry reads a transaction from its first line and metadata lines.
// The first line is either an M-PESA confirmation or "<type> <value> <description>".
func (b *Bot) parseEntry(first string, rest []string) (model.Payload, error) {
	meta, err := parseMetadata(rest)
	if err != nil {
		return model.Payload{}, err
	}

	var p model.Payload
	if mpesa.IsConfirmation(first) {
		parsed, err := mpesa.ParseMPesaMessage(first)
		if err != nil {
			return model.Payload{}, err
		}
		p = parsed.Payload(meta.category, meta.note)
	} else {
		p, err = parseLine(first)
		if err != nil {
			return model.Payload{}, err
		}
		p.Date = b.now().Format(model.DateLayout)
		p.Category = meta.category
		if meta.note != "" {
			p.Description += " - " + meta.note
		}
	}

	if meta.paymentMethod != "" {
		p.PaymentMethod = meta.paymentMethod
	}
	if meta.date != "" {
		p.Date = meta.date
	}
	p.Installments = meta.installments
	return p, nil
}

func parseLine(line string) (model.Payload, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return model.Payload{}, fmt.Errorf("expected type, value and description")
	}

	typ, err := model.ParseTxType(fields[0])
	if err != nil {
		return model.Payload{}, err
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(fields[1], ",", "."))
	if err != nil {
		return model.Payload{}, fmt.Errorf("invalid value %q", fields[1])
	}

	return model.Payload{
		Type:        typ,
		Value:       value,
		Description: strings.Join(fields[2:], " "),
	}, nil
}

type metadata struct {
	category      string
	note          string
	paymentMethod string
	date          string
	installments  int
}

func parseMetadata(lines []string) (metadata, error) {
	var meta metadata
	for _, line := range lines {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "c", "category":
			meta.category = strings.ToLower(value)
		case "r", "reason":
			meta.note = value
		case "p", "payment":
			meta.paymentMethod = value
		case "d", "date":
			date, err := model.NormalizeDate(value)
			if err != nil {
				return metadata{}, err
			}
			meta.date = date
		case "i", "installments":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return metadata{}, fmt.Errorf("invalid installments %q", value)
			}
			meta.installments = n
		}
	}
	return meta, nil
}

func countConfirmations(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if mpesa.IsConfirmation(line) {
			n++
		}
	}
	return n
}

func (b *Bot) handleBatchMessage(ctx context.Context, content string) string {
	entries := splitIntoTransactions(strings.Split(content, "\n"))

	var saved, offlineCount int
	var errs []string
	for i, entry := range entries {
		p, err := b.parseEntry(entry.Message, entry.Metadata)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Transaction %d: %v", i+1, err))
			continue
		}

		p.Owner = b.deps.Owner
		res, err := b.deps.Submitter.Submit(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Transaction %d: %s", i+1, res.Message))
			continue
		}
		saved++
		if res.UsedOffline {
			offlineCount++
		}
	}

	var sb strings.Builder
	sb.WriteString("**Batch Processing Complete**\n")
	fmt.Fprintf(&sb, "Saved: %d transactions", saved)
	if offlineCount > 0 {
		fmt.Fprintf(&sb, " (%d offline)", offlineCount)
	}
	sb.WriteString("\n")
	if len(errs) > 0 {
		fmt.Fprintf(&sb, "Failed: %d transactions\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

type TransactionData struct {
	Message  string
	Metadata []string
}

// splitIntoTransactions groups each confirmation with the metadata lines
// that follow it.
func splitIntoTransactions(lines []string) []TransactionData {
	var transactions []TransactionData
	var current TransactionData
	var inTransaction bool

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if mpesa.IsConfirmation(line) {
			if inTransaction {
				transactions = append(transactions, current)
			}
			current = TransactionData{Message: line}
			inTransaction = true
		} else if inTransaction && strings.Contains(line, ":") {
			current.Metadata = append(current.Metadata, line)
		}
	}

	if inTransaction {
		transactions = append(transactions, current)
	}
	return transactions
}
