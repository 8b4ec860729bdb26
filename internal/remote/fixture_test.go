package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/model"
)

func TestFixture_RecordsAcceptedPayloads(t *testing.T) {
	f := NewFixture()

	receipt, err := f.CreateTransaction(context.Background(), expense())
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Message)
	require.Len(t, f.Received(), 1)
	assert.Equal(t, "Lunch", f.Received()[0].Description)
	require.NoError(t, f.Ping(context.Background()))
}

func TestFixture_Down(t *testing.T) {
	f := NewFixture()
	f.SetDown(true)

	_, err := f.CreateTransaction(context.Background(), expense())
	assert.True(t, apperr.IsTransient(err))
	assert.True(t, apperr.IsTransient(f.Ping(context.Background())))
	assert.Empty(t, f.Received())
	assert.Equal(t, 1, f.Calls())

	f.SetDown(false)
	require.NoError(t, f.Ping(context.Background()))
}

func TestFixture_ValidatesAndResponds(t *testing.T) {
	f := NewFixture()

	bad := expense()
	bad.Description = ""
	_, err := f.CreateTransaction(context.Background(), bad)
	assert.True(t, apperr.IsValidation(err))

	f.SetResponder(func(ctx context.Context, p model.Payload) error {
		return apperr.NewValidation("categoria desconhecida", 400)
	})
	_, err = f.CreateTransaction(context.Background(), expense())
	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, f.Received())
}
