package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *Hasher {
	return NewHasher(bcrypt.MinCost)
}

func TestHasher_Hash_Valid(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"8 characters", "password"},
		{"long password", "this-is-a-very-long-password-123!@#"},
		{"with special chars", "p@ssw0rd!"},
	}

	h := newTestHasher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)
			assert.True(t, h.Check(tt.password, hash))
		})
	}
}

func TestHasher_Hash_TooShort(t *testing.T) {
	h := newTestHasher()

	for _, pw := range []string{"", "1234567"} {
		hash, err := h.Hash(pw)
		assert.ErrorIs(t, err, ErrPasswordTooShort)
		assert.Empty(t, hash)
	}
}

func TestHasher_Check_WrongPassword(t *testing.T) {
	h := newTestHasher()
	hash, err := h.Hash("correct-horse")
	require.NoError(t, err)

	assert.False(t, h.Check("battery-staple", hash))
	assert.False(t, h.Check("correct-horse", "not-a-bcrypt-hash"))
}

func TestNewHasher_DefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
}
