package snapshot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/journal"
	"github.com/ruteri/peer-name-service/registry"
	"github.com/ruteri/peer-name-service/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = interfaces.Identity{0xa0}
	manager  = interfaces.Identity{0x30}
	owner    = interfaces.Identity{0x01}
	resolver = interfaces.Identity{0xf1}
)

type node struct {
	reg     *registry.Registry
	journal *journal.Journal
	mgr     *Manager
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openNode wires a registry to a journal in dir and a file backend in storeDir.
func openNode(t *testing.T, dir, storeDir string, compact bool) *node {
	t.Helper()

	j, err := journal.Open(filepath.Join(dir, "journal.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	reg, err := registry.New(&registry.Config{Admin: admin, Manager: manager, Sink: j, Log: testLogger()})
	require.NoError(t, err)

	backend, err := storage.NewFileBackend(storeDir, testLogger())
	require.NoError(t, err)

	mgr, err := NewManager(&Config{
		Registry:       reg,
		Journal:        j,
		Backend:        backend,
		CompactJournal: compact,
		Log:            testLogger(),
	})
	require.NoError(t, err)

	return &node{reg: reg, journal: j, mgr: mgr}
}

func TestManager_TakeAndLoad(t *testing.T) {
	n := openNode(t, t.TempDir(), t.TempDir(), false)
	require.NoError(t, n.reg.Register(manager, interfaces.Name("shop"), owner, resolver))

	id, err := n.mgr.Take(context.Background())
	require.NoError(t, err)

	snap, err := n.mgr.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, snap.Version)
	assert.Equal(t, "blake2b", snap.Digest)
	assert.Equal(t, int64(3), snap.State.JournalSeq)
	assert.Equal(t, n.reg.Export(n.journal.LastSeq), snap.State)

	ref, ok, err := n.journal.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, ref.ContentID)
}

func TestManager_RecoverFromSnapshotAndJournalTail(t *testing.T) {
	dir, storeDir := t.TempDir(), t.TempDir()
	shop := interfaces.Name("shop")

	first := openNode(t, dir, storeDir, true)
	require.NoError(t, first.reg.Register(manager, shop, owner, resolver))
	_, err := first.mgr.Take(context.Background())
	require.NoError(t, err)

	// Events after the snapshot live only in the journal.
	require.NoError(t, first.reg.RegisterSub(owner, shop, interfaces.Name("us"), resolver))
	require.NoError(t, first.reg.ChangeManager(admin, owner))
	expected := first.reg.Export(nil)
	require.NoError(t, first.journal.Close())

	second := openNode(t, dir, storeDir, true)
	require.NoError(t, second.mgr.Recover(context.Background()))

	assert.Equal(t, expected, second.reg.Export(nil))
	assert.True(t, second.reg.SubExists(shop, interfaces.Name("us")))
	assert.Equal(t, owner, second.reg.Manager())
}

func TestManager_RecoverWithoutSnapshot(t *testing.T) {
	dir, storeDir := t.TempDir(), t.TempDir()

	first := openNode(t, dir, storeDir, false)
	require.NoError(t, first.reg.Register(manager, interfaces.Name("alice"), owner, resolver))
	expected := first.reg.Export(nil)
	require.NoError(t, first.journal.Close())

	second := openNode(t, dir, storeDir, false)
	require.NoError(t, second.mgr.Recover(context.Background()))
	assert.Equal(t, expected, second.reg.Export(nil))
}

func TestManager_RejectsForeignDigest(t *testing.T) {
	dir, storeDir := t.TempDir(), t.TempDir()
	n := openNode(t, dir, storeDir, false)

	id, err := n.mgr.Take(context.Background())
	require.NoError(t, err)

	n.mgr.digest = "keccak"
	_, err = n.mgr.Load(context.Background(), id)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestManager_LoadMissing(t *testing.T) {
	n := openNode(t, t.TempDir(), t.TempDir(), false)

	_, err := n.mgr.Load(context.Background(), interfaces.ComputeID([]byte("nothing")))
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"version":1}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := NewManager(&Config{})
	assert.Error(t, err)
}

func TestManager_CompactionArchivesSegment(t *testing.T) {
	ctx := context.Background()
	n := openNode(t, t.TempDir(), t.TempDir(), true)
	require.NoError(t, n.reg.Register(manager, interfaces.Name("shop"), owner, resolver))

	_, err := n.mgr.Take(ctx)
	require.NoError(t, err)

	var remaining int
	require.NoError(t, n.journal.Replay(ctx, 0, func(int64, interfaces.Event) error {
		remaining++
		return nil
	}))
	assert.Zero(t, remaining, "covered entries are compacted")

	_, ok, err := n.mgr.ArchiveSegment(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to archive")
}

func TestManager_ArchiveSegment(t *testing.T) {
	ctx := context.Background()
	n := openNode(t, t.TempDir(), t.TempDir(), false)
	require.NoError(t, n.reg.Register(manager, interfaces.Name("shop"), owner, resolver))
	require.NoError(t, n.reg.Transfer(owner, interfaces.Name("shop"), manager))

	id, ok, err := n.mgr.ArchiveSegment(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)

	seg, err := n.mgr.LoadSegment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seg.Through)
	assert.Equal(t, "blake2b", seg.Digest)
	require.Len(t, seg.Events, 3)
	for i, env := range seg.Events {
		assert.Equal(t, int64(i+1), env.Seq)
	}
	ev, err := seg.Events[2].Event()
	require.NoError(t, err)
	assert.Equal(t, interfaces.KindRegistered, ev.Kind())

	_, err = n.mgr.Load(ctx, id)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound, "segments do not share the snapshot namespace")
}
