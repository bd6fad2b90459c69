// Package store is the sqlite-backed retrieval layer. Documents are chunked,
// embedded and written into named collections inside one database file.
// Search embeds the query and ranks candidate chunks by cosine distance in
// Go; the optional sqlite_vec build swaps in the cgo driver with the
// sqlite-vec extension for the same schema.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adoptsim/internal/chunker"
	"adoptsim/internal/embedding"
	"adoptsim/internal/logging"
)

// Known collection names. Callers may create others; these are the ones the
// query router targets.
const (
	CollectionProfiles  = "profiles"
	CollectionMetrics   = "metrics"
	CollectionEvents    = "events"
	CollectionPlaybooks = "playbooks"
	CollectionHistory   = "history"
	CollectionUserDocs  = "user_frameworks"
)

// Filter restricts search to chunks whose metadata key matches any of the
// listed values. Keys combine with AND, values within a key with OR.
type Filter map[string][]string

// SearchResult is one ranked chunk. Distance is 1 - cosine similarity;
// lower is better.
type SearchResult struct {
	DocumentID string            `json:"document_id"`
	ChunkID    string            `json:"chunk_id"`
	Collection string            `json:"collection"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Distance   float64           `json:"distance"`
}

// Stats summarizes store contents per collection.
type Stats struct {
	Collections map[string]int `json:"collections"`
	Documents   int            `json:"documents"`
	Chunks      int            `json:"chunks"`
}

// Store is the retrieval store. The sqlite connection opens lazily on first
// use so construction never touches the filesystem.
type Store struct {
	path   string
	engine embedding.Engine

	mu sync.Mutex
	db *sql.DB
}

// New creates a store over the database at path. The file is created on
// first operation.
func New(path string, engine embedding.Engine) *Store {
	return &Store{path: path, engine: engine}
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	doc_id     TEXT NOT NULL,
	chunk_id   TEXT NOT NULL UNIQUE,
	content    TEXT NOT NULL,
	embedding  TEXT,
	metadata   TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_doc ON documents(doc_id);
`

// conn opens the database on first use and applies the schema.
func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open(driverName, s.path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", s.path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logging.StoreDebug("WAL pragma failed: %v", err)
	}

	logging.Store("opened %s (driver=%s)", s.path, driverName)
	s.db = db
	return db, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// =============================================================================
// INDEXING
// =============================================================================

// IndexDocument chunks content, embeds every chunk and writes them into the
// collection. Returns the document id (generated when empty) and chunk count.
func (s *Store) IndexDocument(ctx context.Context, collection, docID, content string, metadata map[string]string) (string, int, error) {
	if collection == "" {
		return "", 0, fmt.Errorf("collection is required")
	}
	if docID == "" {
		docID = uuid.NewString()
	}

	res, err := chunker.ChunkDocument(content)
	if err != nil {
		return "", 0, fmt.Errorf("chunk document: %w", err)
	}

	texts := make([]string, len(res.Chunks))
	for i, c := range res.Chunks {
		texts[i] = c.Content
	}
	vectors, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return "", 0, fmt.Errorf("embed chunks: %w", err)
	}

	db, err := s.conn()
	if err != nil {
		return "", 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Reindexing replaces the document wholesale.
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID); err != nil {
		return "", 0, fmt.Errorf("clear previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (collection, doc_id, chunk_id, content, embedding, metadata) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return "", 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range res.Chunks {
		meta := map[string]string{
			"title":   res.Title,
			"section": c.Section,
			"page":    fmt.Sprintf("%d", c.Page),
		}
		if len(c.Keywords) > 0 {
			meta["keywords"] = strings.Join(c.Keywords, ",")
		}
		for k, v := range metadata {
			meta[k] = v
		}

		embJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return "", 0, fmt.Errorf("serialize embedding: %w", err)
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return "", 0, fmt.Errorf("serialize metadata: %w", err)
		}

		chunkID := fmt.Sprintf("%s:%d", docID, c.Index)
		if _, err := stmt.ExecContext(ctx, collection, docID, chunkID, c.Content, string(embJSON), string(metaJSON)); err != nil {
			return "", 0, fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("commit: %w", err)
	}

	logging.Store("indexed %s into %s: %d chunks", docID, collection, len(res.Chunks))
	return docID, len(res.Chunks), nil
}

// IndexRecord writes a single pre-formatted record (no chunking) into a
// collection. Used for fixtures and turn summaries, which are already
// retrieval-sized.
func (s *Store) IndexRecord(ctx context.Context, collection, docID, content string, metadata map[string]string) error {
	if docID == "" {
		docID = uuid.NewString()
	}

	vec, err := s.engine.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("serialize metadata: %w", err)
	}

	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO documents (collection, doc_id, chunk_id, content, embedding, metadata) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET content=excluded.content, embedding=excluded.embedding, metadata=excluded.metadata`,
		collection, docID, docID+":0", content, string(embJSON), string(metaJSON))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk of a document across collections.
func (s *Store) DeleteDocument(ctx context.Context, docID string) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	n, _ := res.RowsAffected()
	logging.Store("deleted %s (%d chunks)", docID, n)
	return int(n), nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search ranks a collection's chunks against the query, lowest distance
// first, truncated to topK. The filter compiles to json_extract predicates
// so non-matching rows never leave sqlite.
func (s *Store) Search(ctx context.Context, collection, query string, topK int, filter Filter) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	sqlQuery, args := buildSearchQuery(collection, filter)
	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	defer rows.Close()

	var candidates []SearchResult
	var vectors [][]float32
	for rows.Next() {
		var r SearchResult
		var embJSON, metaJSON sql.NullString
		if err := rows.Scan(&r.DocumentID, &r.ChunkID, &r.Collection, &r.Content, &embJSON, &metaJSON); err != nil {
			logging.StoreDebug("scan failure, skipping row: %v", err)
			continue
		}
		if !embJSON.Valid {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embJSON.String), &vec); err != nil {
			continue
		}
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
		}
		candidates = append(candidates, r)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}

	ranked := embedding.FindTopK(queryVec, vectors, topK)
	results := make([]SearchResult, 0, len(ranked))
	for _, hit := range ranked {
		r := candidates[hit.Index]
		r.Distance = 1 - hit.Similarity
		results = append(results, r)
	}
	return results, nil
}

// HybridSearch fans out across collections, merges all hits ascending by
// distance and truncates to a single global topK.
func (s *Store) HybridSearch(ctx context.Context, query string, collections []string, topK int, filter Filter) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if len(collections) == 0 {
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategoryRetrieval, "HybridSearch")
	defer timer.Stop()

	var merged []SearchResult
	for _, col := range collections {
		// Per-collection topK keeps each source represented before the
		// global cut.
		hits, err := s.Search(ctx, col, query, topK, filter)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", col, err)
		}
		merged = append(merged, hits...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Distance < merged[j].Distance })
	if len(merged) > topK {
		merged = merged[:topK]
	}

	logging.Retrieval("hybrid search over %v: %d results", collections, len(merged))
	return merged, nil
}

// buildSearchQuery compiles the collection constraint plus metadata filter
// into SQL. Filter keys are sorted for deterministic statements.
func buildSearchQuery(collection string, filter Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT doc_id, chunk_id, collection, content, embedding, metadata FROM documents WHERE collection = ?")
	args := []any{collection}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := filter[key]
		if len(values) == 0 {
			continue
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		fmt.Fprintf(&sb, " AND json_extract(metadata, '$.%s') IN (%s)", key, placeholders)
		for _, v := range values {
			args = append(args, v)
		}
	}
	return sb.String(), args
}

// =============================================================================
// CONTEXT AND STATS
// =============================================================================

// GenerateContext formats search results into the context block persona and
// consolidation prompts embed.
func GenerateContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("=== RETRIEVED CONTEXT ===\n")
	for i, r := range results {
		source := r.Collection
		if title := r.Metadata["title"]; title != "" {
			source = fmt.Sprintf("%s / %s", r.Collection, title)
		}
		fmt.Fprintf(&sb, "[%d] (%s, distance %.3f)\n%s\n\n", i+1, source, r.Distance, strings.TrimSpace(r.Content))
	}
	sb.WriteString("=== END CONTEXT ===")
	return sb.String()
}

// CollectStats counts documents and chunks per collection.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Collections: make(map[string]int)}

	rows, err := db.QueryContext(ctx, "SELECT collection, COUNT(*) FROM documents GROUP BY collection")
	if err != nil {
		return nil, fmt.Errorf("collection counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		var n int
		if err := rows.Scan(&col, &n); err != nil {
			return nil, err
		}
		stats.Collections[col] = n
		stats.Chunks += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT doc_id) FROM documents").Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("document count: %w", err)
	}
	return stats, nil
}

// Touch verifies the store is reachable, opening it if needed.
func (s *Store) Touch(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
