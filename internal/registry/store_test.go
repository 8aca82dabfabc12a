package registry

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geomesh.io/hyperbr/internal/core"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	rec := core.DeviceRecord{
		IP:        netip.MustParseAddr("fd00::a"),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
		R:         1.25,
		T:         2.5,
		Seq:       3,
	}
	require.NoError(t, store.Save(rec))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec, list[0])
}

func TestStoreSaveOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ip := netip.MustParseAddr("fd00::a")
	require.NoError(t, store.Save(core.DeviceRecord{IP: ip, Seq: 1}))
	require.NoError(t, store.Save(core.DeviceRecord{IP: ip, Seq: 2}))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint8(2), list[0].Seq)
}

func TestStoreSkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(core.DeviceRecord{IP: netip.MustParseAddr("fd00::a")}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{no"), 0o644))

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStoreDeleteIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(core.DeviceRecord{IP: netip.MustParseAddr("fd00::a")}))
	require.NoError(t, store.Delete("fd00::a"))
	require.NoError(t, store.Delete("fd00::a"))

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
