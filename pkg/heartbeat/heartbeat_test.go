package heartbeat

import (
	"strings"
	"testing"
	"time"

	"github.com/billm/pezbus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	h := New("foo", "main", 7, "FOOBAR")

	data, err := h.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source":"foo"`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "foo", got.Source)
	assert.Equal(t, "main", got.Target)
	assert.Equal(t, uint64(7), got.Seq)
	assert.Equal(t, "FOOBAR", got.Body)
	assert.True(t, got.SentAt.Equal(h.SentAt.Time))
}

func TestEncodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		hb   Heartbeat
	}{
		{name: "empty source", hb: Heartbeat{Target: "main"}},
		{name: "long source", hb: Heartbeat{Source: strings.Repeat("s", types.MaxNameLen+1), Target: "main"}},
		{name: "empty target", hb: Heartbeat{Source: "foo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.hb.Encode()
			assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid), "got %v", err)
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid))

	_, err = Decode([]byte(`{"source":"","target":"main"}`))
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid))
}

func TestAge(t *testing.T) {
	h := New("foo", "main", 1, "")
	assert.GreaterOrEqual(t, h.Age(h.SentAt.Add(time.Second)), time.Second)
	assert.Contains(t, h.String(), "foo->main")
}
