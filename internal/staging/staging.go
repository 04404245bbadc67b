// Package staging is the local buffer an ingest writes parsed nodes and
// edges (and resolved cross-reference results) into before they are
// upserted to the graph store in batches, rather than round-tripping to
// Neo4j once per hierarchy-builder/resolver call. Grounded on the teacher's
// internal/database/staging.go StagingClient: same "raw JSON payload plus a
// few indexed columns, upsert on conflict" table shape, same sql.DB-over-
// driver construction — but backed by github.com/mattn/go-sqlite3 and
// queried through github.com/jmoiron/sqlx instead of lib/pq, since this
// buffer is a local single-process cache rather than a shared Postgres
// staging schema fed by the GitHub API.
package staging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	blarerrors "github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/graphstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS staged_nodes (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	repo_id TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS staged_edges (
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (from_id, to_id, kind)
);
`

// Store buffers parsed graphmodel.Node/Edge values in a local SQLite
// database ahead of a batched Flush to the graph store.
type Store struct {
	db *sqlx.DB
}

// Open creates (if needed) and connects to the SQLite database at path.
// path may be ":memory:" for a process-local, non-persistent buffer.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, blarerrors.StoreErrorOf(err, "open staging database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, blarerrors.StoreErrorOf(err, "ping staging database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, blarerrors.StoreErrorOf(err, "create staging schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BufferNode upserts one parsed node into the local buffer, replacing any
// previous staged payload for the same id (a node rebuilt within the same
// ingest run overwrites its earlier staged copy rather than duplicating it).
func (s *Store) BufferNode(n *graphmodel.Node) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return blarerrors.StoreErrorOf(err, "marshal staged node")
	}
	_, err = s.db.Exec(
		`INSERT INTO staged_nodes (id, kind, entity_id, repo_id, payload) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		n.ID, string(n.Kind), n.EntityID, n.RepoID, string(payload),
	)
	if err != nil {
		return blarerrors.StoreErrorOf(err, "buffer node")
	}
	return nil
}

// BufferEdge upserts one parsed edge into the local buffer.
func (s *Store) BufferEdge(e *graphmodel.Edge) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return blarerrors.StoreErrorOf(err, "marshal staged edge")
	}
	_, err = s.db.Exec(
		`INSERT INTO staged_edges (from_id, to_id, kind, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, kind) DO UPDATE SET payload = excluded.payload`,
		e.FromID, e.ToID, string(e.Kind), string(payload),
	)
	if err != nil {
		return blarerrors.StoreErrorOf(err, "buffer edge")
	}
	return nil
}

// Counts reports how many staged rows are waiting to be flushed, mirroring
// the teacher's StagingClient.GetDataCounts shape (a cheap visibility check
// before an expensive batch operation).
type Counts struct {
	Nodes int
	Edges int
}

func (s *Store) Counts() (Counts, error) {
	var c Counts
	if err := s.db.Get(&c.Nodes, `SELECT COUNT(*) FROM staged_nodes`); err != nil {
		return c, blarerrors.StoreErrorOf(err, "count staged nodes")
	}
	if err := s.db.Get(&c.Edges, `SELECT COUNT(*) FROM staged_edges`); err != nil {
		return c, blarerrors.StoreErrorOf(err, "count staged edges")
	}
	return c, nil
}

type stagedRow struct {
	Payload string `db:"payload"`
}

// Flush upserts every staged node then every staged edge into dst (nodes
// first, since UpsertEdges' MATCH ... MATCH requires both endpoints to
// already exist), then clears the buffer on success.
func (s *Store) Flush(ctx context.Context, dst graphstore.Store) (Counts, error) {
	nodes, err := s.loadNodes()
	if err != nil {
		return Counts{}, err
	}
	if err := dst.UpsertNodes(ctx, nodes); err != nil {
		return Counts{}, err
	}

	edges, err := s.loadEdges()
	if err != nil {
		return Counts{}, err
	}
	if err := dst.UpsertEdges(ctx, edges); err != nil {
		return Counts{}, err
	}

	if _, err := s.db.Exec(`DELETE FROM staged_nodes`); err != nil {
		return Counts{}, blarerrors.StoreErrorOf(err, "clear staged nodes")
	}
	if _, err := s.db.Exec(`DELETE FROM staged_edges`); err != nil {
		return Counts{}, blarerrors.StoreErrorOf(err, "clear staged edges")
	}
	return Counts{Nodes: len(nodes), Edges: len(edges)}, nil
}

func (s *Store) loadNodes() ([]*graphmodel.Node, error) {
	var rows []stagedRow
	if err := s.db.Select(&rows, `SELECT payload FROM staged_nodes`); err != nil {
		return nil, blarerrors.StoreErrorOf(err, "load staged nodes")
	}
	out := make([]*graphmodel.Node, 0, len(rows))
	for _, r := range rows {
		var n graphmodel.Node
		if err := json.Unmarshal([]byte(r.Payload), &n); err != nil {
			return nil, blarerrors.StoreErrorOf(err, fmt.Sprintf("unmarshal staged node: %v", err))
		}
		out = append(out, &n)
	}
	return out, nil
}

func (s *Store) loadEdges() ([]*graphmodel.Edge, error) {
	var rows []stagedRow
	if err := s.db.Select(&rows, `SELECT payload FROM staged_edges`); err != nil {
		return nil, blarerrors.StoreErrorOf(err, "load staged edges")
	}
	out := make([]*graphmodel.Edge, 0, len(rows))
	for _, r := range rows {
		var e graphmodel.Edge
		if err := json.Unmarshal([]byte(r.Payload), &e); err != nil {
			return nil, blarerrors.StoreErrorOf(err, fmt.Sprintf("unmarshal staged edge: %v", err))
		}
		out = append(out, &e)
	}
	return out, nil
}
