// Package snapshot persists point-in-time copies of a registry to content-addressed
// storage and rebuilds a registry from the latest snapshot plus the journal tail.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/peer-name-service/events"
	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/ruteri/peer-name-service/journal"
	"github.com/ruteri/peer-name-service/registry"
)

// FormatVersion is the current snapshot encoding version.
const FormatVersion = 1

// ErrIncompatible is returned when a snapshot was produced with different node hashing
// or an unknown format version.
var ErrIncompatible = errors.New("incompatible snapshot")

// Snapshot is the stored document.
type Snapshot struct {
	Version   int             `json:"version"`
	Digest    string          `json:"digest"`
	CreatedAt time.Time       `json:"created_at"`
	State     *registry.State `json:"state"`
}

// Encode serializes s deterministically.
func Encode(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a stored snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.State == nil {
		return nil, fmt.Errorf("decoding snapshot: missing state")
	}
	return &s, nil
}

// Config configures a Manager.
type Config struct {
	Registry *registry.Registry
	Journal  *journal.Journal
	Backend  interfaces.StorageBackend

	// Digest names the node digest the registry uses; snapshots with another digest are refused.
	Digest string

	// CompactJournal archives journal entries covered by a successfully stored snapshot
	// as a segment on Backend and then deletes them from the journal.
	CompactJournal bool

	Log *slog.Logger
}

// Manager takes snapshots and performs recovery.
type Manager struct {
	reg     *registry.Registry
	journal *journal.Journal
	backend interfaces.StorageBackend
	digest  string
	compact bool
	log     *slog.Logger
}

// NewManager creates a snapshot manager.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Registry == nil || cfg.Journal == nil || cfg.Backend == nil {
		return nil, errors.New("snapshot manager requires a registry, a journal and a storage backend")
	}
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}
	digest := cfg.Digest
	if digest == "" {
		digest = "blake2b"
	}

	return &Manager{
		reg:     cfg.Registry,
		journal: cfg.Journal,
		backend: cfg.Backend,
		digest:  digest,
		compact: cfg.CompactJournal,
		log:     logger,
	}, nil
}

// Take exports the registry, stores the snapshot and records it in the journal.
func (m *Manager) Take(ctx context.Context) (interfaces.ContentID, error) {
	state := m.reg.Export(m.journal.LastSeq)

	data, err := Encode(&Snapshot{
		Version:   FormatVersion,
		Digest:    m.digest,
		CreatedAt: time.Now().UTC(),
		State:     state,
	})
	if err != nil {
		return interfaces.ContentID{}, err
	}

	id, err := m.backend.Store(ctx, data, interfaces.SnapshotType)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("storing snapshot: %w", err)
	}

	if err := m.journal.RecordSnapshot(ctx, id, state.JournalSeq); err != nil {
		return id, err
	}

	m.log.Info("Stored snapshot",
		slog.String("content_id", id.String()),
		slog.Int64("journal_seq", state.JournalSeq),
		slog.Int("records", len(state.Owners)),
		slog.Int("resolvers", len(state.Resolvers)),
		slog.String("backend", m.backend.Name()))

	if m.compact {
		m.archiveAndCompact(ctx, state.JournalSeq)
	}

	return id, nil
}

// Segment is an archived run of journal events, stored before they are compacted away.
type Segment struct {
	Digest  string            `json:"digest"`
	Events  []events.Envelope `json:"events"`
	Through int64             `json:"through_seq"`
}

// ArchiveSegment stores every journal event up to and including throughSeq as one
// segment. ok is false when there was nothing to archive.
func (m *Manager) ArchiveSegment(ctx context.Context, throughSeq int64) (id interfaces.ContentID, ok bool, err error) {
	seg := &Segment{Digest: m.digest, Through: throughSeq}
	err = m.journal.Replay(ctx, 0, func(seq int64, ev interfaces.Event) error {
		if seq > throughSeq {
			return nil
		}
		env, err := events.Wrap(seq, ev)
		if err != nil {
			return err
		}
		seg.Events = append(seg.Events, *env)
		return nil
	})
	if err != nil {
		return id, false, err
	}
	if len(seg.Events) == 0 {
		return id, false, nil
	}

	data, err := json.Marshal(seg)
	if err != nil {
		return id, false, err
	}
	id, err = m.backend.Store(ctx, data, interfaces.JournalSegmentType)
	if err != nil {
		return id, false, fmt.Errorf("storing journal segment: %w", err)
	}

	m.log.Info("Archived journal segment",
		slog.String("content_id", id.String()),
		slog.Int64("from_seq", seg.Events[0].Seq),
		slog.Int64("through_seq", throughSeq))
	return id, true, nil
}

// LoadSegment fetches an archived journal segment.
func (m *Manager) LoadSegment(ctx context.Context, id interfaces.ContentID) (*Segment, error) {
	data, err := m.backend.Fetch(ctx, id, interfaces.JournalSegmentType)
	if err != nil {
		return nil, fmt.Errorf("fetching journal segment %s: %w", id, err)
	}
	var seg Segment
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, fmt.Errorf("decoding journal segment: %w", err)
	}
	return &seg, nil
}

// archiveAndCompact drops journal entries covered by a snapshot. Entries are only
// dropped once they are archived.
func (m *Manager) archiveAndCompact(ctx context.Context, throughSeq int64) {
	if _, _, err := m.ArchiveSegment(ctx, throughSeq); err != nil {
		m.log.Warn("Journal not compacted, archiving failed", "err", err)
		return
	}
	if _, err := m.journal.Compact(ctx, throughSeq); err != nil {
		m.log.Warn("Failed to compact journal after snapshot", "err", err)
	}
}

// Load fetches and validates the snapshot id.
func (m *Manager) Load(ctx context.Context, id interfaces.ContentID) (*Snapshot, error) {
	data, err := m.backend.Fetch(ctx, id, interfaces.SnapshotType)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %s: %w", id, err)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrIncompatible, snap.Version)
	}
	if snap.Digest != m.digest {
		return nil, fmt.Errorf("%w: snapshot digest %q, registry digest %q", ErrIncompatible, snap.Digest, m.digest)
	}
	return snap, nil
}

// Recover restores the latest recorded snapshot, if any, and replays the journal after it.
// It must run before the registry serves requests.
func (m *Manager) Recover(ctx context.Context) error {
	start := time.Now()
	var after int64

	ref, ok, err := m.journal.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if ok {
		snap, err := m.Load(ctx, ref.ContentID)
		if err != nil {
			return err
		}
		if err := m.reg.Restore(snap.State); err != nil {
			return fmt.Errorf("restoring snapshot %s: %w", ref.ContentID, err)
		}
		after = snap.State.JournalSeq
		m.log.Info("Restored snapshot",
			slog.String("content_id", ref.ContentID.String()),
			slog.Int64("journal_seq", after))
	}

	replayed := 0
	err = m.journal.Replay(ctx, after, func(seq int64, ev interfaces.Event) error {
		if err := m.reg.Apply(ev); err != nil {
			return fmt.Errorf("applying journal entry %d: %w", seq, err)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	records, resolvers := m.reg.Stats()
	m.log.Info("Recovered registry",
		slog.Int("replayed_events", replayed),
		slog.Int("records", records),
		slog.Int("resolvers", resolvers),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Run takes a snapshot every interval until ctx is done. Failures are logged and retried
// on the next tick.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := m.journal.LastSeq()
			if seq == lastSeq {
				continue
			}
			if _, err := m.Take(ctx); err != nil {
				m.log.Error("Periodic snapshot failed", "err", err)
				continue
			}
			lastSeq = seq
		}
	}
}
