package discord

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/remote"
	"github.com/NgigiN/finsync/internal/routine"
	"github.com/NgigiN/finsync/internal/storage"
)

func newTestBot(t *testing.T) (*Bot, *remote.Fixture, *storage.Database) {
	t.Helper()

	store, err := storage.NewDatabase(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fixture := remote.NewFixture()
	runner := routine.NewManager(2)
	t.Cleanup(func() { _ = runner.Wait() })

	monitor := offline.NewMonitor(fixture, offline.AlwaysOnline, runner, time.Second)
	engine := offline.NewEngine(store, fixture, monitor, offline.EngineConfig{})
	monitor.SetDrainer(engine)

	bot := newBot(context.Background(), "chan", Deps{
		Submitter: offline.NewSubmitter(fixture, store, offline.SubmitterConfig{Attempts: 1}),
		Syncer:    engine,
		Monitor:   monitor,
		Store:     store,
		Owner:     "ana@example.com",
	})
	bot.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	return bot, fixture, store
}

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]string{"c: Food", "p: card", "d: 01/03/2024", "i: 3", "r: with team", "noise"})
	require.NoError(t, err)

	assert.Equal(t, metadata{
		category:      "food",
		note:          "with team",
		paymentMethod: "card",
		date:          "2024-03-01",
		installments:  3,
	}, meta)

	_, err = parseMetadata([]string{"i: many"})
	assert.Error(t, err)
	_, err = parseMetadata([]string{"d: yesterday"})
	assert.Error(t, err)
}

func TestParseEntry(t *testing.T) {
	bot, _, _ := newTestBot(t)

	tests := []struct {
		name    string
		first   string
		rest    []string
		want    model.Payload
		wantErr bool
	}{
		{
			name:  "expense with defaults",
			first: "expense 25.50 Lunch downtown",
			want: model.Payload{
				Type: model.TxTypeExpense, Description: "Lunch downtown", Date: "2024-03-05",
			},
		},
		{
			name:  "legacy type and comma decimal",
			first: "entrada 3000,00 Salary",
			rest:  []string{"c: work", "d: 2024-03-01"},
			want: model.Payload{
				Type: model.TxTypeIncome, Description: "Salary", Date: "2024-03-01", Category: "work",
			},
		},
		{name: "missing description", first: "expense 10", wantErr: true},
		{name: "unknown type", first: "transfer 10 x", wantErr: true},
		{name: "bad value", first: "expense ten Lunch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bot.parseEntry(tt.first, tt.rest)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Description, got.Description)
			assert.Equal(t, tt.want.Date, got.Date)
			assert.Equal(t, tt.want.Category, got.Category)
			assert.True(t, got.Value.IsPositive())
		})
	}
}

func TestRespond_SubmitOnlineAndOffline(t *testing.T) {
	bot, fixture, store := newTestBot(t)
	ctx := context.Background()

	reply := bot.respond(ctx, "expense 25.50 Lunch\nc: food")
	assert.Equal(t, "Tracked expense 25.50: Lunch", reply)
	require.Len(t, fixture.Received(), 1)
	assert.Equal(t, "ana@example.com", fixture.Received()[0].Owner)

	fixture.SetDown(true)
	reply = bot.respond(ctx, "income 100 Refund")
	assert.Contains(t, reply, "Saved offline")

	st, err := store.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Pending)

	assert.Contains(t, bot.respond(ctx, "!status"), "1 pending")

	fixture.SetDown(false)
	assert.Equal(t, "Synced 1 of 1 transactions", bot.respond(ctx, "!retry"))
	assert.Equal(t, "Removed 1 synced transactions", bot.respond(ctx, "!prune"))
}

func TestRespond_InvalidEntry(t *testing.T) {
	bot, fixture, _ := newTestBot(t)

	reply := bot.respond(context.Background(), "hello there")
	assert.Contains(t, reply, "Could not read that transaction")
	assert.Zero(t, fixture.Calls())

	assert.Empty(t, bot.respond(context.Background(), "   "))
}

func TestRespond_SyncOfflineIsNoop(t *testing.T) {
	bot, _, _ := newTestBot(t)

	// no probe has run, so the backend counts as unreachable
	assert.Contains(t, bot.respond(context.Background(), "!sync"), "Offline")
}

func TestRespond_BatchMessage(t *testing.T) {
	bot, fixture, _ := newTestBot(t)

	msg := `TIH5CRR635 Confirmed. Ksh65.00 paid to Anthony Wambua. on 17/9/25 at 6:56 PM.New M-PESA balance is Ksh719.18. Transaction cost, Ksh0.00.
c: food
r: lunch
TIH6CSP6KA Confirmed. Ksh40.00 sent to Divinah Nyabuto on 17/9/25 at 6:59 PM New M-PESA balance is Ksh679.18. Transaction cost, Ksh0.00.
i: nope
TII5I5YNFP Confirmed. Ksh35.00 paid to FELIX KIKOLE. on 18/9/25 at 7:18 PM.New M-PESA balance is Ksh644.18. Transaction cost, Ksh0.00.`

	reply := bot.respond(context.Background(), msg)
	assert.Contains(t, reply, "Saved: 2 transactions")
	assert.Contains(t, reply, "Transaction 2: invalid installments")

	received := fixture.Received()
	require.Len(t, received, 2)
	assert.Equal(t, "M-PESA TIH5CRR635 to Anthony Wambua - lunch", received[0].Description)
	assert.Equal(t, "food", received[0].Category)
	assert.Equal(t, "2025-09-18", received[1].Date)
}

func TestRespond_History(t *testing.T) {
	bot, fixture, _ := newTestBot(t)
	ctx := context.Background()

	assert.Equal(t, "No transactions found.", bot.respond(ctx, "!history"))

	fixture.SetDown(true)
	bot.respond(ctx, "expense 10 Coffee")
	bot.respond(ctx, "expense 12 Bus")

	reply := bot.respond(ctx, "!history 1")
	assert.Contains(t, reply, "Bus")
	assert.NotContains(t, reply, "Coffee")
	assert.Contains(t, reply, "... and 1 older")

	assert.Equal(t, "Usage: !history [n]", bot.respond(ctx, "!history x"))
	assert.Contains(t, bot.respond(ctx, "!nope"), "Unknown command")
}

func TestStop_CancelsAndWaitsForHandlers(t *testing.T) {
	bot, fixture, store := newTestBot(t)

	started := make(chan struct{})
	fixture.SetResponder(func(ctx context.Context, p model.Payload) error {
		close(started)
		<-ctx.Done()
		return apperr.NewTransient(ctx.Err(), 0)
	})

	done := make(chan string, 1)
	go func() {
		reply, _ := bot.process("expense 10 Coffee")
		done <- reply
	}()
	<-started

	require.NoError(t, bot.Stop())

	// the interrupted submission was queued before Stop returned
	st, err := store.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Pending)
	assert.Contains(t, <-done, "Saved offline")

	_, ok := bot.process("!status")
	assert.False(t, ok)
}

func TestSplitIntoTransactions(t *testing.T) {
	lines := []string{
		"chatter before",
		"A1 Confirmed. Ksh1.00 sent to X on 1/1/25 at 1:00 PM New M-PESA balance is Ksh1.00. Transaction cost, Ksh0.00.",
		"c: food",
		"",
		"B2 Confirmed. Ksh2.00 paid to Y. on 1/1/25 at 2:00 PM.New M-PESA balance is Ksh1.00. Transaction cost, Ksh0.00.",
	}

	got := splitIntoTransactions(lines)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"c: food"}, got[0].Metadata)
	assert.Empty(t, got[1].Metadata)
}
