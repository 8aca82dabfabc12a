package daemon

import (
	"context"
	"encoding/binary"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPChunkTransport(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	tr := newUDPChunkTransport(port)
	chunk := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, tr.SendChunk(context.Background(), netip.MustParseAddr("127.0.0.1"), 4096, chunk))

	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, 4+len(chunk), n)
	assert.Equal(t, uint32(4096), binary.BigEndian.Uint32(buf[:4]))
	assert.Equal(t, chunk, buf[4:n])
}
