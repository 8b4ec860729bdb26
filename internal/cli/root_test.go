package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/finsync/internal/config"
	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/storage"
)

func fixtureOptions(t *testing.T) (*RootOptions, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cli.db")
	return &RootOptions{
		LoadConfig: func() (*config.Config, error) {
			return &config.Config{
				Transport:        config.TransportFixture,
				DBPath:           dbPath,
				OwnerEmail:       "ana@example.com",
				RequestTimeout:   time.Second,
				MaxRetryAttempts: 1,
				RetryBackoff:     time.Millisecond,
				MaxSyncAttempts:  10,
				ProbeInterval:    time.Minute,
				ProbeTimeout:     time.Second,
				LogLevel:         "error",
			}, nil
		},
	}, dbPath
}

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, dbPath string, descs ...string) []string {
	t.Helper()

	db, err := storage.NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ids := make([]string, 0, len(descs))
	for _, d := range descs {
		id, err := db.Enqueue(context.Background(), model.Payload{
			Owner:       "ana@example.com",
			Type:        model.TxTypeExpense,
			Description: d,
			Value:       decimal.NewFromInt(10),
			Date:        "2024-03-01",
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "finsync", cmd.Use)

	for _, name := range []string{"serve", "submit", "sync", "status", "list", "prune", "requeue"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	opts, _ := fixtureOptions(t)

	_, err := run(t, opts, "status", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSubmitCommand(t *testing.T) {
	opts, _ := fixtureOptions(t)

	out, err := run(t, opts, "submit", "--type", "expense", "--value", "25.50", "--description", "Lunch", "--date", "01/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "fixture")
}

func TestSubmitCommand_Validation(t *testing.T) {
	opts, _ := fixtureOptions(t)

	_, err := run(t, opts, "submit", "--type", "transfer", "--value", "1", "--description", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, opts, "submit", "--type", "expense", "--value", "-3", "--description", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueueCommands(t *testing.T) {
	opts, dbPath := fixtureOptions(t)
	ids := seed(t, dbPath, "Coffee", "Bus")

	db, err := storage.NewDatabase(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.RecordFailure(context.Background(), ids[1], "rejected", true, 0))
	require.NoError(t, db.Close())

	out, err := run(t, opts, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending: 2")
	assert.Contains(t, out, "Stalled: 1")

	out, err = run(t, opts, "sync", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string         `json:"status"`
		Data   offline.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Synced)
	assert.Equal(t, 1, resp.Data.Skipped)

	out, err = run(t, opts, "list", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Bus")
	assert.Contains(t, out, "stalled")
	assert.NotContains(t, out, "Coffee")

	_, err = run(t, opts, "requeue", ids[1])
	require.NoError(t, err)

	_, err = run(t, opts, "requeue", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = run(t, opts, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced:    1")

	out, err = run(t, opts, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 2 synced transactions.")

	out, err = run(t, opts, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions found.")
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, "json", NewExitError(ExitFailure, "backend unreachable"))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "backend unreachable", resp.Error)
}
