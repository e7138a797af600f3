package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "gone")))
	assert.Equal(t, KindQuotaExceeded, KindOf(QuotaExceeded("limit", "upgrade", true)))

	// Unknown errors are internal, never downgraded.
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindForbidden, "nope")
	wrapped := fmt.Errorf("handling request: %w", inner)

	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindForbidden))
	assert.False(t, IsKind(wrapped, KindNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInternal, "storage failure", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "storage failure")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsMatchesByKind(t *testing.T) {
	assert.ErrorIs(t, New(KindValidation, "a"), New(KindValidation, "b"))
	assert.NotErrorIs(t, New(KindValidation, "a"), New(KindForbidden, "a"))
}

func TestQuotaExceededCarriesUpgradeFlag(t *testing.T) {
	adminErr := QuotaExceeded("Plan limit reached", "upgrade to Pro", true)
	memberErr := QuotaExceeded("Plan limit reached", "ask an admin", false)

	assert.True(t, adminErr.CanUpgrade)
	assert.False(t, memberErr.CanUpgrade)
	assert.Equal(t, KindQuotaExceeded, adminErr.Kind)
}
