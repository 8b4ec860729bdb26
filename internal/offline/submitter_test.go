package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
	"github.com/NgigiN/finsync/internal/remote"
)

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, model.Payload) (string, error) {
	return "", apperr.NewStorage(errors.New("disk full"))
}

func newTestSubmitter(creator Creator, queue Enqueuer) (*Submitter, *noSleep) {
	s := NewSubmitter(creator, queue, SubmitterConfig{})
	sleeper := &noSleep{}
	s.sleep = sleeper.sleep
	return s, sleeper
}

func TestSubmitter_DirectSuccess(t *testing.T) {
	db := openQueue(t)
	fixture := remote.NewFixture()
	s, _ := newTestSubmitter(fixture, db)

	res, err := s.Submit(context.Background(), payload("Lunch"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.UsedOffline)
	assert.Len(t, fixture.Received(), 1)

	rows, err := db.ListAll(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmitter_RetriesThenEnqueues(t *testing.T) {
	db := openQueue(t)
	fixture := remote.NewFixture()
	fixture.SetDown(true)
	s, sleeper := newTestSubmitter(fixture, db)

	res, err := s.Submit(context.Background(), payload("Lunch"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.UsedOffline)
	assert.NotEmpty(t, res.LocalID)

	assert.Equal(t, 3, fixture.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.waits)

	rows, err := db.ListUnsynced(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, res.LocalID, rows[0].LocalID)
}

func TestSubmitter_RecoversOnSecondAttempt(t *testing.T) {
	db := openQueue(t)
	calls := 0
	creator := creatorFunc(func(ctx context.Context, p model.Payload) (remote.Receipt, error) {
		calls++
		if calls == 1 {
			return remote.Receipt{}, apperr.NewTransient(errors.New("timeout"), 0)
		}
		return remote.Receipt{Message: "ok"}, nil
	})
	s, _ := newTestSubmitter(creator, db)

	res, err := s.Submit(context.Background(), payload("Lunch"))
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, Message: "ok"}, res)
	assert.Equal(t, 2, calls)
}

func TestSubmitter_ValidationNotRetried(t *testing.T) {
	db := openQueue(t)
	fixture := remote.NewFixture()
	fixture.SetResponder(func(ctx context.Context, p model.Payload) error {
		return apperr.NewValidation("valor inválido", 400)
	})
	s, sleeper := newTestSubmitter(fixture, db)

	res, err := s.Submit(context.Background(), payload("Lunch"))
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.False(t, res.Success)
	assert.Equal(t, "valor inválido", res.Message)
	assert.Equal(t, 1, fixture.Calls())
	assert.Empty(t, sleeper.waits)

	rows, err := db.ListAll(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmitter_AuthRejectionIsQueued(t *testing.T) {
	db := openQueue(t)
	fixture := remote.NewFixture()
	fixture.SetResponder(func(ctx context.Context, p model.Payload) error {
		return apperr.NewAuth("token inválido", 401)
	})
	s, sleeper := newTestSubmitter(fixture, db)

	res, err := s.Submit(context.Background(), payload("Lunch"))
	require.NoError(t, err)
	assert.True(t, res.UsedOffline)
	assert.NotEmpty(t, res.LocalID)
	assert.Equal(t, 1, fixture.Calls())
	assert.Empty(t, sleeper.waits)
}

func TestSubmitter_LocalValidation(t *testing.T) {
	fixture := remote.NewFixture()
	s, _ := newTestSubmitter(fixture, failingQueue{})

	bad := payload("")
	res, err := s.Submit(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.False(t, res.Success)
	assert.Zero(t, fixture.Calls())
}

func TestSubmitter_EnqueueFailure(t *testing.T) {
	fixture := remote.NewFixture()
	fixture.SetDown(true)
	s, _ := newTestSubmitter(fixture, failingQueue{})

	res, err := s.Submit(context.Background(), payload("Lunch"))
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
	assert.False(t, res.Success)
	assert.False(t, res.UsedOffline)
}

func TestSubmitter_CanceledCallerStillSaves(t *testing.T) {
	db := openQueue(t)
	fixture := remote.NewFixture()
	fixture.SetDown(true)
	s, _ := newTestSubmitter(fixture, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Submit(ctx, payload("Lunch"))
	require.NoError(t, err)
	assert.True(t, res.UsedOffline)

	rows, err := db.ListUnsynced(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
