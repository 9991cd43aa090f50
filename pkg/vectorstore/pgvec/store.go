// Package pgvec is the networked vector store backend: Postgres with the
// pgvector extension, accessed through GORM. Nearest-neighbor queries use the
// cosine distance operator (<=>), fixed per collection at creation.
package pgvec

import (
	"context"
	"log"
	"os"
	"time"

	"ai-triage-be/pkg/vectorstore"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Store struct {
	dsn        string
	collection string
	db         *gorm.DB
}

var _ vectorstore.Store = &Store{}

func NewStore(dsn string) *Store {
	return &Store{dsn: dsn}
}

// conversationEmbedding mirrors one retrieval record. The table name comes
// from the collection, so the struct carries no TableName.
type conversationEmbedding struct {
	Id             string          `gorm:"type:uuid;primaryKey"`
	Embedding      pgvector.Vector `gorm:"type:vector(768)"` // Gemini text-embedding-004 uses 768 dimensions
	UserInput      string          `gorm:"type:text"`
	ExpertResponse string          `gorm:"type:text"`
	OriginalIndex  int
	TokenCount     int
	Truncated      bool
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (s *Store) Initialize(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	if s.dsn == "" {
		return vectorstore.ErrMissingConfig
	}

	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
				ParameterizedQueries:      true,
			},
		),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s.db = db
	return nil
}

func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	if s.db == nil {
		return vectorstore.ErrNotInitialized
	}
	s.collection = name

	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Table(name).AutoMigrate(&conversationEmbedding{})
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, vectorstore.ErrNotInitialized
	}
	var count int64
	err := s.db.WithContext(ctx).Table(s.collection).Count(&count).Error
	return count, err
}

func (s *Store) Add(ctx context.Context, ids []string, embeddings [][]float32, metadatas []vectorstore.Metadata) error {
	if s.db == nil {
		return vectorstore.ErrNotInitialized
	}
	if err := vectorstore.ValidateAdd(ids, embeddings, metadatas); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	rows := make([]conversationEmbedding, len(ids))
	for i := range ids {
		rows[i] = conversationEmbedding{
			Id:             ids[i],
			Embedding:      pgvector.NewVector(embeddings[i]),
			UserInput:      metadatas[i].UserInput,
			ExpertResponse: metadatas[i].ExpertResponse,
			OriginalIndex:  metadatas[i].OriginalIndex,
			TokenCount:     metadatas[i].TokenCount,
			Truncated:      metadatas[i].Truncated,
		}
	}

	// GORM wraps the batch insert in a transaction; the call is atomic.
	return s.db.WithContext(ctx).Table(s.collection).Create(&rows).Error
}

func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]vectorstore.SearchResult, error) {
	if s.db == nil {
		return nil, vectorstore.ErrNotInitialized
	}
	if topK <= 0 {
		topK = 3
	}

	// Cosine distance in pgvector is 1 - cosine_similarity.
	type row struct {
		conversationEmbedding
		Similarity float64
	}
	var rows []row

	queryVector := pgvector.NewVector(queryEmbedding)
	err := s.db.WithContext(ctx).
		Table(s.collection).
		Select("*, 1 - (embedding <=> ?) as similarity", queryVector).
		Order("similarity DESC").
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]vectorstore.SearchResult, len(rows))
	for i, r := range rows {
		results[i] = vectorstore.SearchResult{
			ID:         r.Id,
			Similarity: r.Similarity,
			Metadata: vectorstore.Metadata{
				UserInput:      r.UserInput,
				ExpertResponse: r.ExpertResponse,
				OriginalIndex:  r.OriginalIndex,
				TokenCount:     r.TokenCount,
				Truncated:      r.Truncated,
			},
		}
	}
	return results, nil
}
