package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
)

var (
	alice = id.MustParseIdentity("0x00000000000000000000000000000000000000a1")
	bob   = id.MustParseIdentity("0x00000000000000000000000000000000000000b2")
	now   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestNewNameRecord(t *testing.T) {
	t.Run("valid record expires one year out", func(t *testing.T) {
		rec, err := NewNameRecord(alice, "ab", "hi", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(31536000*time.Second), rec.ExpiresAt)
		assert.Equal(t, alice, rec.Owner)
	})

	t.Run("length limits are bytes", func(t *testing.T) {
		_, err := NewNameRecord(alice, strings.Repeat("a", MaxNameLen), "", now)
		require.NoError(t, err)

		_, err = NewNameRecord(alice, strings.Repeat("a", MaxNameLen+1), "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNameTooLong))

		// 11 runes, 33 bytes
		_, err = NewNameRecord(alice, strings.Repeat("€", 11), "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNameTooLong))

		_, err = NewNameRecord(alice, "ab", strings.Repeat("x", MaxMetadataLen+1), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMetadataTooLong))
	})

	t.Run("rejects empty name and zero owner", func(t *testing.T) {
		_, err := NewNameRecord(alice, "", "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewNameRecord(id.ZeroIdentity, "ab", "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestRequireOwner(t *testing.T) {
	rec, err := NewNameRecord(alice, "ab", "", now)
	require.NoError(t, err)

	assert.NoError(t, RequireOwner(alice, rec))
	assert.True(t, dErrors.HasCode(RequireOwner(bob, rec), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(RequireOwner(alice, nil), dErrors.CodeUnauthorized))
}

func TestRenewal(t *testing.T) {
	rec, err := NewNameRecord(alice, "ab", "", now)
	require.NoError(t, err)

	t.Run("resets from now rather than extending", func(t *testing.T) {
		later := now.Add(24 * time.Hour)
		require.NoError(t, rec.CanRenew(later))
		rec.ApplyRenewal(later)
		assert.Equal(t, later.Add(OneYear), rec.ExpiresAt)
	})

	t.Run("same instant renewal would not extend", func(t *testing.T) {
		at := rec.ExpiresAt.Add(-OneYear)
		err := rec.CanRenew(at)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("expired names remain renewable", func(t *testing.T) {
		muchLater := rec.ExpiresAt.Add(5 * OneYear)
		assert.True(t, rec.IsExpired(muchLater))
		assert.NoError(t, rec.CanRenew(muchLater))
	})
}

func TestStatus(t *testing.T) {
	rec, err := NewNameRecord(alice, "ab", "", now)
	require.NoError(t, err)

	assert.Equal(t, NameStatusActive, rec.Status(now))
	assert.Equal(t, NameStatusExpiring, rec.Status(rec.ExpiresAt.Add(-24*time.Hour)))
	assert.Equal(t, NameStatusExpired, rec.Status(rec.ExpiresAt.Add(time.Second)))
}

func TestConfig(t *testing.T) {
	treasury := id.MustParseIdentity("0x00000000000000000000000000000000000000c3")
	cfg, err := NewConfig(alice, treasury, 100, 500, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), cfg.MinimumReserve)

	assert.NoError(t, cfg.AuthorizeWithdrawal(alice, treasury))
	assert.True(t, dErrors.HasCode(cfg.AuthorizeWithdrawal(bob, treasury), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(cfg.AuthorizeWithdrawal(alice, bob), dErrors.CodeUnauthorized))

	_, err = NewConfig(id.ZeroIdentity, treasury, 100, 500, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDefaultMinimumReserve(t *testing.T) {
	assert.Equal(t, uint64(1_447_680), DefaultMinimumReserve())
}
