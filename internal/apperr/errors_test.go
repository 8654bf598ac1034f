package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("order %s not found", "o-1")))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("wrapped: %w", Validation("bad"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Conflict("stock changed, please retry"), KindConflict))
	assert.False(t, Is(Conflict("x"), KindValidation))
	assert.False(t, Is(nil, KindInternal))
}

func TestWrap_KeepsCause(t *testing.T) {
	sentinel := errors.New("insufficient stock")
	err := Wrap(KindValidation, sentinel, "Insufficient stock for product: %s", "Mug")

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "Insufficient stock for product: Mug: insufficient stock", err.Error())
}

func TestMessage_HidesInternal(t *testing.T) {
	assert.Equal(t, "internal error", Message(Internal(errors.New("pq: connection refused"), "save order")))
	assert.Equal(t, "internal error", Message(errors.New("boom")))
	assert.Equal(t, "Cart is empty", Message(Validation("Cart is empty")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Conflict("x").Retryable())
	assert.False(t, Validation("x").Retryable())
}
