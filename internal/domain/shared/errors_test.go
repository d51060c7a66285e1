package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_WithDetail(t *testing.T) {
	t.Run("returns a copy and leaves the original untouched", func(t *testing.T) {
		base := NewDomainError("RATE_UNAVAILABLE", "No rate")

		detailed := base.WithDetail("from_currency", "USD")

		assert.Empty(t, base.Details)
		require.NotNil(t, detailed.Details)
		assert.Equal(t, "USD", detailed.Details["from_currency"])
	})

	t.Run("does not mutate package sentinels", func(t *testing.T) {
		_ = ErrNotFound.WithDetail("resource", "invoice")
		assert.Empty(t, ErrNotFound.Details)
	})

	t.Run("chained details accumulate on the copy", func(t *testing.T) {
		err := NewDomainError("MISSING_ACCOUNT", "No account").
			WithDetail("role", "ar_control").
			WithDetail("account_code", "1100")

		assert.Equal(t, "ar_control", err.Details["role"])
		assert.Equal(t, "1100", err.Details["account_code"])
	})
}

func TestDomainError_Is(t *testing.T) {
	t.Run("matches by code across detailed copies", func(t *testing.T) {
		detailed := ErrNotFound.WithDetail("resource", "payment")
		assert.True(t, errors.Is(detailed, ErrNotFound))
	})

	t.Run("different codes do not match", func(t *testing.T) {
		assert.False(t, errors.Is(ErrNotFound, ErrConcurrencyConflict))
	})

	t.Run("non-domain errors do not match", func(t *testing.T) {
		assert.False(t, errors.Is(errors.New("plain"), ErrNotFound))
	})
}
