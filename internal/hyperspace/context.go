package hyperspace

// Context carries the packet-identifier counter consumed by Insert. Each
// processing worker owns one Context; there is no internal locking, and
// sharing a Context across goroutines requires external synchronization.
type Context struct {
	packetID uint16
}

// NewContext returns a Context whose first issued identifier is seed.
func NewContext(seed uint16) *Context {
	return &Context{packetID: seed}
}

// nextPacketID issues the next identifier. The counter wraps at 16 bits,
// so identifiers repeat eventually in a long-running process.
func (c *Context) nextPacketID() uint16 {
	id := c.packetID
	c.packetID++
	return id
}
