package pipeerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesOpKindCause(t *testing.T) {
	err := NotFound("carrier.Read", errors.New("boom"))
	assert.Contains(t, err.Error(), "carrier.Read")
	assert.Contains(t, err.Error(), "not_found")
	assert.Contains(t, err.Error(), "boom")
}

func TestErrorWithoutCause(t *testing.T) {
	err := Unsupported("queuecarrier.Seek")
	assert.Equal(t, KindUnsupportedOperation, err.Kind)
	assert.NotEmpty(t, err.Error())
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := NotFound("op1", errors.New("x"))
	b := NotFound("op2", errors.New("y"))
	assert.True(t, errors.Is(a, b))

	c := Network("op3", errors.New("z"))
	assert.False(t, errors.Is(a, c))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Format("zipstep.Preview", cause)
	require.ErrorIs(t, err, cause)
}

func TestKindOfMapsCancellation(t *testing.T) {
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindCancelled, KindOf(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfUnwrapsWrappedPipeerr(t *testing.T) {
	inner := CryptoAuth("crypt4gh.openPacket", errors.New("auth failed"))
	wrapped := fmt.Errorf("add_recipient_crypt4gh: %w", inner)
	assert.Equal(t, KindCryptoAuth, KindOf(wrapped))
}
