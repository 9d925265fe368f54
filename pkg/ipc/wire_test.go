package ipc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/billm/pezbus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	payload := []byte{0x01, 0x02}
	segments := EncodeFrame(types.Frame{Source: "foo", Target: "main", Payload: payload})
	require.Len(t, segments, frameSegments)

	// the encoded payload must not alias the caller's buffer
	payload[0] = 0xff

	frame, err := DecodeFrame(segments, types.DefaultMaxPayloadSize)
	require.NoError(t, err)
	assert.Equal(t, "foo", frame.Source)
	assert.Equal(t, "main", frame.Target)
	assert.Equal(t, []byte{0x01, 0x02}, frame.Payload)
}

func TestDecodeFrameErrors(t *testing.T) {
	long := []byte(strings.Repeat("x", types.MaxNameLen+1))

	tests := []struct {
		name     string
		segments [][]byte
	}{
		{name: "no segments", segments: nil},
		{name: "two segments", segments: [][]byte{[]byte("foo"), []byte("main")}},
		{name: "four segments", segments: [][]byte{[]byte("foo"), []byte("main"), {0x01}, {0x02}}},
		{name: "empty source", segments: [][]byte{{}, []byte("main"), {0x01}}},
		{name: "empty target", segments: [][]byte{[]byte("foo"), nil, {0x01}}},
		{name: "long source", segments: [][]byte{long, []byte("main"), {0x01}}},
		{name: "long target", segments: [][]byte{[]byte("foo"), long, {0x01}}},
		{name: "oversized payload", segments: [][]byte{[]byte("foo"), []byte("main"), bytes.Repeat([]byte{0}, 9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.segments, 8)
			require.Error(t, err)
			assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument), err.Error())
		})
	}
}

func TestDecodeFrameMaxNameLen(t *testing.T) {
	name := strings.Repeat("n", types.MaxNameLen)
	frame, err := DecodeFrame(EncodeFrame(types.Frame{Source: name, Target: name, Payload: nil}), 8)
	require.NoError(t, err)
	assert.Equal(t, name, frame.Source)
	assert.Empty(t, frame.Payload)
}

func TestEncodeDecodeDelivery(t *testing.T) {
	d, err := DecodeDelivery(EncodeDelivery(types.Delivery{Target: "main", Payload: []byte("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "main", d.Target)
	assert.Equal(t, []byte("hi"), d.Payload)

	d, err = DecodeDelivery(EncodeDelivery(types.Delivery{Target: "main"}))
	require.NoError(t, err)
	assert.NotNil(t, d.Payload)
	assert.Empty(t, d.Payload)

	_, err = DecodeDelivery([][]byte{[]byte("main")})
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))

	_, err = DecodeDelivery([][]byte{nil, []byte("x")})
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}
