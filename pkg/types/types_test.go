package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "main", wantErr: false},
		{name: "max length", input: strings.Repeat("a", MaxNameLen), wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxNameLen+1), wantErr: true},
		{name: "broadcast", input: BroadcastName, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.True(t, IsErrCode(err, ErrCodeInvalidArgument), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToken(t *testing.T) {
	var zero Token
	assert.True(t, zero.IsZero())

	a, b := NewToken(), NewToken()
	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, a)
	assert.Len(t, a.String(), 36)
}

func TestErrorCodes(t *testing.T) {
	base := NewError(ErrCodeNotFound, "identity not found: ghost")
	assert.Equal(t, "NOT_FOUND: identity not found: ghost", base.Error())
	assert.Equal(t, ErrCodeNotFound, GetErrorCode(base))

	wrapped := WrapError(ErrCodeRoutingError, "unknown target", base)
	assert.Equal(t, ErrCodeRoutingError, GetErrorCode(wrapped))
	assert.True(t, errors.Is(wrapped, base))

	// codes survive fmt wrapping
	outer := fmt.Errorf("send: %w", NewError(ErrCodeTimeout, "no message"))
	assert.True(t, IsTimeout(outer))
	assert.False(t, IsErrCode(errors.New("plain"), ErrCodeTimeout))
	assert.Equal(t, "", GetErrorCode(nil))
}

func TestStatsStrings(t *testing.T) {
	s := SlotStats{Name: "main", LocalReceived: 1, RouterSent: 1}
	assert.Contains(t, s.String(), "Name: main")

	f := Frame{Source: "foo", Target: "main", Payload: []byte{0x01, 0x02}}
	require.Equal(t, "Frame{Source: foo, Target: main, Size: 2}", f.String())
}
