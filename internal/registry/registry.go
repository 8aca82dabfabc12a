// Package registry maintains the per-device coordinate table exposed to
// the dashboard: one record {ip, updated_at, r, t, seq} per mesh device,
// updated from coordinate options observed on the wire.
package registry

import (
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/eventbus"
	"geomesh.io/hyperbr/internal/log"
)

// Registry is the in-memory device table. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	devices map[netip.Addr]core.DeviceRecord

	bus   eventbus.EventBus // nil = no change events
	store *FileStore        // nil = no persistence
}

// New creates a registry. bus and store may be nil.
func New(bus eventbus.EventBus, store *FileStore) *Registry {
	return &Registry{
		devices: make(map[netip.Addr]core.DeviceRecord),
		bus:     bus,
		store:   store,
	}
}

// Restore loads persisted records into the table. Corrupt entries were
// already skipped by the store.
func (r *Registry) Restore() error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.List()
	if err != nil {
		return fmt.Errorf("registry restore: %w", err)
	}
	r.mu.Lock()
	for _, rec := range records {
		r.devices[rec.IP] = rec
	}
	r.mu.Unlock()
	log.GetLogger().Infof("registry restored %d device records", len(records))
	return nil
}

// Upsert records a fresh coordinate observation for ip and returns the
// stored record. Every call bumps updated_at, persists the record, and
// publishes an incremental change event.
func (r *Registry) Upsert(ip netip.Addr, coord core.Coord, seq uint8) core.DeviceRecord {
	rec := core.DeviceRecord{
		IP:        ip,
		UpdatedAt: time.Now().UTC(),
		R:         coord.R,
		T:         coord.T,
		Seq:       seq,
	}

	r.mu.Lock()
	r.devices[ip] = rec
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Save(rec); err != nil {
			log.GetLogger().WithError(err).Warnf("failed to persist device %s", ip)
		}
	}
	if r.bus != nil {
		err := r.bus.Publish(&eventbus.Event{
			Topic:   eventbus.TopicDeviceUpdate,
			Key:     ip.String(),
			Payload: rec,
		})
		if err != nil {
			log.GetLogger().WithError(err).Warnf("failed to publish device update for %s", ip)
		}
	}
	return rec
}

// Get returns the record for ip.
func (r *Registry) Get(ip netip.Addr) (core.DeviceRecord, error) {
	r.mu.RLock()
	rec, ok := r.devices[ip]
	r.mu.RUnlock()
	if !ok {
		return core.DeviceRecord{}, core.ErrDeviceNotFound
	}
	return rec, nil
}

// List returns a snapshot of all records, ordered by address.
func (r *Registry) List() []core.DeviceRecord {
	r.mu.RLock()
	out := make([]core.DeviceRecord, 0, len(r.devices))
	for _, rec := range r.devices {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].IP.Less(out[j].IP)
	})
	return out
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// PruneStale drops devices not updated within maxAge and returns how
// many were removed. Persisted records are deleted as well.
func (r *Registry) PruneStale(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	r.mu.Lock()
	var stale []netip.Addr
	for ip, rec := range r.devices {
		if rec.UpdatedAt.Before(cutoff) {
			stale = append(stale, ip)
		}
	}
	for _, ip := range stale {
		delete(r.devices, ip)
	}
	r.mu.Unlock()

	for _, ip := range stale {
		if r.store != nil {
			if err := r.store.Delete(ip.String()); err != nil {
				log.GetLogger().WithError(err).Warnf("failed to delete persisted device %s", ip)
			}
		}
	}
	if len(stale) > 0 {
		log.GetLogger().WithField("count", len(stale)).Info("pruned stale devices")
	}
	return len(stale)
}
