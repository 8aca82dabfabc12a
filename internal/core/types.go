// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// Coord is a polar hyperspace coordinate assigned to a mesh node for
// geometric routing. It is independent of the node's physical position.
type Coord struct {
	R float32 `json:"r"`
	T float32 `json:"t"`
}

// DeviceRecord is the per-device registry entry consumed by the dashboard.
type DeviceRecord struct {
	IP        netip.Addr `json:"ip"`
	UpdatedAt time.Time  `json:"updated_at"`
	R         float32    `json:"r"`
	T         float32    `json:"t"`
	Seq       uint8      `json:"seq"`
}

// Coord returns the record's coordinate as a Coord value.
func (d DeviceRecord) Coord() Coord {
	return Coord{R: d.R, T: d.T}
}
