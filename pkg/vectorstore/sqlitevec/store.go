// Package sqlitevec is the embedded vector store backend: a local SQLite file
// with the sqlite-vec extension. Records live in a vec0 virtual table and KNN
// queries use vec_distance_cosine, so the metric is fixed when the table is
// created.
package sqlitevec

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sync"

	"ai-triage-be/pkg/embedding"
	"ai-triage-be/pkg/vectorstore"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	path       string
	collection string
	db         *sql.DB
	mu         sync.RWMutex
}

var _ vectorstore.Store = &Store{}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if s.path == "" {
		return vectorstore.ErrMissingConfig
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open vector database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("verify vector database: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return vectorstore.ErrNotInitialized
	}
	s.collection = name

	query := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
		embedding float[%d],
		id text,
		user_input text,
		expert_response text,
		original_index integer,
		token_count integer,
		truncated integer
	)`, name, embedding.Dimensions)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return 0, vectorstore.ErrNotInitialized
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.collection)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	return count, nil
}

func (s *Store) Add(ctx context.Context, ids []string, embeddings [][]float32, metadatas []vectorstore.Metadata) error {
	if err := vectorstore.ValidateAdd(ids, embeddings, metadatas); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return vectorstore.ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s(embedding, id, user_input, expert_response, original_index, token_count, truncated) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.collection,
	)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range ids {
		meta := metadatas[i]
		truncated := 0
		if meta.Truncated {
			truncated = 1
		}
		_, err := stmt.ExecContext(ctx,
			encodeFloat32SliceToBlob(embeddings[i]),
			ids[i],
			meta.UserInput,
			meta.ExpertResponse,
			meta.OriginalIndex,
			meta.TokenCount,
			truncated,
		)
		if err != nil {
			// Atomic per call: one bad row aborts the whole batch.
			tx.Rollback()
			return fmt.Errorf("add record %s: %w", ids[i], err)
		}
	}

	return tx.Commit()
}

func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, vectorstore.ErrNotInitialized
	}
	if topK <= 0 {
		topK = 3
	}

	queryBlob := encodeFloat32SliceToBlob(queryEmbedding)

	query := fmt.Sprintf(`
		SELECT
			id,
			user_input,
			expert_response,
			original_index,
			token_count,
			truncated,
			vec_distance_cosine(embedding, ?) AS distance
		FROM %s
		ORDER BY distance ASC
		LIMIT ?
	`, s.collection)

	rows, err := s.db.QueryContext(ctx, query, queryBlob, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []vectorstore.SearchResult
	for rows.Next() {
		var (
			r         vectorstore.SearchResult
			truncated int
			distance  float64
		)
		if err := rows.Scan(
			&r.ID,
			&r.Metadata.UserInput,
			&r.Metadata.ExpertResponse,
			&r.Metadata.OriginalIndex,
			&r.Metadata.TokenCount,
			&truncated,
			&distance,
		); err != nil {
			return nil, err
		}
		r.Metadata.Truncated = truncated != 0
		// Cosine distance is 1 - similarity.
		r.Similarity = 1.0 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func encodeFloat32SliceToBlob(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		// Should never happen with bytes.Buffer
		return nil
	}
	return buf.Bytes()
}
