package daemon

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// udpChunkTransport delivers firmware chunks as UDP datagrams to the
// device's firmware port. Each datagram carries a 4-byte big-endian
// offset followed by the chunk payload.
type udpChunkTransport struct {
	port int
}

func newUDPChunkTransport(port int) *udpChunkTransport {
	return &udpChunkTransport{port: port}
}

func (t *udpChunkTransport) SendChunk(ctx context.Context, device netip.Addr, offset int, chunk []byte) error {
	addr := net.JoinHostPort(device.String(), strconv.Itoa(t.port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	buf := make([]byte, 4+len(chunk))
	binary.BigEndian.PutUint32(buf[:4], uint32(offset))
	copy(buf[4:], chunk)
	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("send chunk to %s: %w", addr, err)
	}
	return nil
}
