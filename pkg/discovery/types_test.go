package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTXT(t *testing.T) {
	txt := EncodeTXT(&Info{ID: "srv-1", MutualTLS: true, Name: "lab server"})
	assert.Contains(t, txt, "id=srv-1")
	assert.Contains(t, txt, "tls=1")
	assert.Contains(t, txt, "name=lab server")
}

func TestEncodeTXTOmitsOptional(t *testing.T) {
	txt := EncodeTXT(&Info{ID: "srv-1"})
	assert.Equal(t, []string{"id=srv-1"}, txt)
}

func TestDecodeTXT(t *testing.T) {
	info, err := DecodeTXT([]string{"id=srv-1", "tls=1", "name=lab server"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", info.ID)
	assert.True(t, info.MutualTLS)
	assert.Equal(t, "lab server", info.Name)
}

func TestDecodeTXTDefaults(t *testing.T) {
	info, err := DecodeTXT([]string{"id=srv-1"})
	require.NoError(t, err)
	assert.False(t, info.MutualTLS)
	assert.Empty(t, info.Name)
}

func TestDecodeTXTMissingID(t *testing.T) {
	_, err := DecodeTXT([]string{"name=whatever"})
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestDecodeTXTInvalidTLSFlag(t *testing.T) {
	_, err := DecodeTXT([]string{"id=srv-1", "tls=banana"})
	assert.ErrorIs(t, err, ErrInvalidTXTRecord)
}

func TestDecodeTXTIgnoresUnknownKeys(t *testing.T) {
	info, err := DecodeTXT([]string{"id=srv-1", "future=stuff", "malformed"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", info.ID)
}

func TestRoundTrip(t *testing.T) {
	orig := &Info{ID: "abc123", MutualTLS: true, Name: "test"}
	decoded, err := DecodeTXT(EncodeTXT(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestServiceAddr(t *testing.T) {
	svc := &Service{Host: "server.local.", Port: 4433}
	assert.Equal(t, "server.local.:4433", svc.Addr())

	svc.Addresses = []string{"192.168.1.10"}
	assert.Equal(t, "192.168.1.10:4433", svc.Addr())

	svc.Addresses = []string{"fe80::1"}
	assert.Equal(t, "[fe80::1]:4433", svc.Addr())
}
