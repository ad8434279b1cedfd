package headercodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("alice"),
		[]byte("Grüße, Peter Lustig"),
		{0x00, 0xff, 0x10, 0x80, 0x7f},
		[]byte("ROLE_ANONYMOUS,ROLE_USER_ALICE"),
	}

	for _, raw := range cases {
		got, err := Decode(Encode(raw))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(raw, got), "round trip of %q", raw)
	}
}

func TestDecodeString(t *testing.T) {
	s, err := DecodeString(EncodeString("Peter Lustig"))
	require.NoError(t, err)
	assert.Equal(t, "Peter Lustig", s)
}

func TestDecodeString_RejectsInvalidBase64(t *testing.T) {
	_, err := DecodeString("not base64!!")
	assert.Error(t, err)
}

func TestDecodeString_RejectsInvalidUTF8(t *testing.T) {
	_, err := DecodeString(Encode([]byte{0xff, 0xfe}))
	assert.Error(t, err)
}

func TestDecodeList(t *testing.T) {
	roles, err := DecodeList(EncodeString("ROLE_ANONYMOUS, ROLE_USER_ALICE ,ROLE_X"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ANONYMOUS", "ROLE_USER_ALICE", "ROLE_X"}, roles)
}
