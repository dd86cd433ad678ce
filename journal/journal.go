// Package journal persists registry events to an append-only SQLite log so that a
// registry can be rebuilt after restart by replaying them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ruteri/peer-name-service/events"
	"github.com/ruteri/peer-name-service/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	node TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	content_id TEXT PRIMARY KEY,
	journal_seq INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal closed")

// Journal is an append-only event log. It implements interfaces.EventSink.
type Journal struct {
	db  *sql.DB
	log *slog.Logger

	mu      sync.Mutex
	lastSeq int64
	err     error
	closed  bool
}

// Open opens or creates the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	j := &Journal{db: db, log: logger}
	if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&j.lastSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading journal head: %w", err)
	}

	logger.Info("Opened journal", slog.String("path", path), slog.Int64("last_seq", j.lastSeq))
	return j, nil
}

// Emit appends ev. Emit cannot report failure to the registry, so the first write error
// is retained and reported by Err; later events are still attempted.
func (j *Journal) Emit(ev interfaces.Event) {
	if _, err := j.Append(context.Background(), ev); err != nil {
		j.log.Error("Failed to journal event",
			slog.String("kind", string(ev.Kind())),
			slog.String("node", ev.Node().String()),
			"err", err)

		j.mu.Lock()
		if j.err == nil {
			j.err = err
		}
		j.mu.Unlock()
	}
}

// Append writes ev and returns its sequence number.
func (j *Journal) Append(ctx context.Context, ev interfaces.Event) (int64, error) {
	env, err := events.Wrap(0, ev)
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrClosed
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO events (kind, node, data, created_at) VALUES (?, ?, ?, ?)`,
		string(env.Kind), ev.Node().String(), string(env.Data), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("appending %s event: %w", env.Kind, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	j.lastSeq = seq
	return seq, nil
}

// LastSeq returns the sequence number of the most recently appended event.
func (j *Journal) LastSeq() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

// Err returns the first error encountered by Emit, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Replay calls fn for every event with a sequence number greater than afterSeq, in order.
func (j *Journal) Replay(ctx context.Context, afterSeq int64, fn func(seq int64, ev interfaces.Event) error) error {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, kind, data FROM events WHERE seq > ? ORDER BY seq`, afterSeq)
	if err != nil {
		return fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	// Collect first so fn may append without deadlocking on the single connection.
	var envs []events.Envelope
	for rows.Next() {
		var (
			env  events.Envelope
			kind string
			data string
		)
		if err := rows.Scan(&env.Seq, &kind, &data); err != nil {
			return fmt.Errorf("scanning journal row: %w", err)
		}
		env.Kind = interfaces.EventKind(kind)
		env.Data = []byte(data)
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for i := range envs {
		ev, err := envs[i].Event()
		if err != nil {
			return fmt.Errorf("decoding journal entry %d: %w", envs[i].Seq, err)
		}
		if err := fn(envs[i].Seq, ev); err != nil {
			return err
		}
	}
	return nil
}

// Compact deletes every event with a sequence number up to and including throughSeq.
// Sequence numbers are never reused.
func (j *Journal) Compact(ctx context.Context, throughSeq int64) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE seq <= ?`, throughSeq)
	if err != nil {
		return 0, fmt.Errorf("compacting journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	j.log.Info("Compacted journal", slog.Int64("through_seq", throughSeq), slog.Int64("removed", n))
	return n, nil
}

// SnapshotRef points at a stored snapshot and the journal position it covers.
type SnapshotRef struct {
	ContentID  interfaces.ContentID
	JournalSeq int64
	CreatedAt  time.Time
}

// RecordSnapshot remembers that the snapshot id reflects every event up to journalSeq.
func (j *Journal) RecordSnapshot(ctx context.Context, id interfaces.ContentID, journalSeq int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (content_id, journal_seq, created_at) VALUES (?, ?, ?)`,
		id.String(), journalSeq, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the snapshot covering the most events.
// The boolean is false if no snapshot was recorded.
func (j *Journal) LatestSnapshot(ctx context.Context) (SnapshotRef, bool, error) {
	var (
		ref       SnapshotRef
		idHex     string
		createdAt int64
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT content_id, journal_seq, created_at FROM snapshots ORDER BY journal_seq DESC, created_at DESC LIMIT 1`,
	).Scan(&idHex, &ref.JournalSeq, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRef{}, false, nil
	}
	if err != nil {
		return SnapshotRef{}, false, fmt.Errorf("reading latest snapshot: %w", err)
	}

	ref.ContentID, err = interfaces.NewContentIDFromHex(idHex)
	if err != nil {
		return SnapshotRef{}, false, fmt.Errorf("corrupt snapshot reference %q: %w", idHex, err)
	}
	ref.CreatedAt = time.Unix(createdAt, 0)
	return ref, true, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
