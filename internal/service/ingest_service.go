package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ai-triage-be/internal/pkg/logger"
	"ai-triage-be/pkg/embedding"
	"ai-triage-be/pkg/vectorstore"

	"github.com/google/uuid"
)

const (
	embedBatchSize = 7
	addChunkSize   = 100
	batchPause     = 3 * time.Second
)

// datasetRow matches one line of the counseling conversations JSONL export.
type datasetRow struct {
	Context  string `json:"Context"`
	Response string `json:"Response"`
}

type IIngestService interface {
	Run(ctx context.Context) error
}

type ingestService struct {
	store       vectorstore.Store
	embedder    embedding.Provider
	counter     embedding.TokenCounter
	collection  string
	datasetPath string
	maxSamples  int
	tokenBudget int
	logger      logger.ILogger
	sleep       func(time.Duration)
}

func NewIngestService(
	store vectorstore.Store,
	embedder embedding.Provider,
	counter embedding.TokenCounter,
	collection, datasetPath string,
	maxSamples, tokenBudget int,
	sysLogger logger.ILogger,
) IIngestService {
	return &ingestService{
		store:       store,
		embedder:    embedder,
		counter:     counter,
		collection:  collection,
		datasetPath: datasetPath,
		maxSamples:  maxSamples,
		tokenBudget: tokenBudget,
		logger:      sysLogger,
		sleep:       time.Sleep,
	}
}

// Run populates the vector store from the dataset. Population is idempotent
// at collection granularity: a non-empty collection is left untouched.
// Individual rows that fail token counting or embedding are skipped; a failed
// write aborts the run.
func (s *ingestService) Run(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	if err := s.store.EnsureCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count collection: %w", err)
	}
	if count > 0 {
		s.logger.Info("INGEST", "Collection already populated, skipping", map[string]interface{}{
			"collection": s.collection,
			"count":      count,
		})
		return nil
	}

	rows, err := s.readDataset()
	if err != nil {
		return err
	}
	s.logger.Info("INGEST", "Starting ingestion", map[string]interface{}{
		"collection": s.collection,
		"samples":    len(rows),
	})

	var (
		pendingIDs     []string
		pendingVectors [][]float32
		pendingMetas   []vectorstore.Metadata
		written        int
		skipped        int
	)

	flush := func() error {
		if len(pendingIDs) == 0 {
			return nil
		}
		if err := s.store.Add(ctx, pendingIDs, pendingVectors, pendingMetas); err != nil {
			return fmt.Errorf("add to vector store: %w", err)
		}
		written += len(pendingIDs)
		pendingIDs, pendingVectors, pendingMetas = nil, nil, nil
		return nil
	}

	for start := 0; start < len(rows); start += embedBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + embedBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		texts := make([]string, 0, end-start)
		metas := make([]vectorstore.Metadata, 0, end-start)
		for i := start; i < end; i++ {
			// Only the user side is embedded; the expert response rides along
			// as metadata for prompt augmentation.
			tr, err := embedding.TruncateToBudget(ctx, rows[i].Context, s.tokenBudget, s.counter)
			if err != nil {
				s.logger.Warn("INGEST", "Token counting failed, skipping sample", map[string]interface{}{
					"index": i,
					"error": err.Error(),
				})
				skipped++
				continue
			}
			texts = append(texts, tr.Text)
			metas = append(metas, vectorstore.Metadata{
				UserInput:      tr.Text,
				ExpertResponse: rows[i].Response,
				OriginalIndex:  i,
				TokenCount:     tr.TokenCount,
				Truncated:      tr.Truncated,
			})
		}
		if len(texts) == 0 {
			continue
		}

		results := s.embedder.EmbedBatch(ctx, texts)
		for i, res := range results {
			if res.Err != nil {
				s.logger.Warn("INGEST", "Embedding failed, skipping sample", map[string]interface{}{
					"index": metas[i].OriginalIndex,
					"error": res.Err.Error(),
				})
				skipped++
				continue
			}
			pendingIDs = append(pendingIDs, uuid.NewString())
			pendingVectors = append(pendingVectors, res.Vector)
			pendingMetas = append(pendingMetas, metas[i])
		}

		if len(pendingIDs) >= addChunkSize {
			if err := flush(); err != nil {
				return err
			}
		}

		if end < len(rows) {
			s.sleep(batchPause)
		}
	}

	if err := flush(); err != nil {
		return err
	}

	s.logger.Info("INGEST", "Ingestion complete", map[string]interface{}{
		"collection": s.collection,
		"written":    written,
		"skipped":    skipped,
	})
	return nil
}

func (s *ingestService) readDataset() ([]datasetRow, error) {
	file, err := os.Open(s.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	var rows []datasetRow
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row datasetRow
		if err := json.Unmarshal(raw, &row); err != nil {
			s.logger.Warn("INGEST", "Malformed dataset line, skipping", map[string]interface{}{
				"line":  line,
				"error": err.Error(),
			})
			continue
		}
		if row.Context == "" {
			continue
		}
		rows = append(rows, row)
		if s.maxSamples > 0 && len(rows) >= s.maxSamples {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return rows, nil
}
