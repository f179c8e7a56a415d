package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/core/chunker"
	"github.com/lacunalabs/lacuna/internal/core/common"
	"github.com/lacunalabs/lacuna/internal/core/graph"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/core/topics"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/store"
)

// ErrIngestRunning is returned when an ingestion batch is requested while a
// previous batch is still in flight.
var ErrIngestRunning = errors.New("extraction: ingestion already in progress")

// IngestFile is one uploaded source. Content is plain text; PDF sources are
// expected to arrive already text-extracted.
type IngestFile struct {
	Name    string
	Content []byte
}

// IngestResult reports the per-file outcome of a batch.
type IngestResult struct {
	DocumentID ids.DocumentID `json:"document_id,omitempty"`
	Name       string         `json:"name"`
	Skipped    bool           `json:"skipped,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Ingestor runs the document pipeline: hash dedup, chunking, concurrent
// claim extraction, topic upsert, and co-occurrence edge building. Only one
// batch runs at a time.
type Ingestor struct {
	Store     store.Store
	Extractor *Extractor
	Log       *zap.Logger

	ChunkSize    int
	ChunkOverlap int
	Workers      int

	running atomic.Bool
}

func NewIngestor(st store.Store, ex *Extractor, log *zap.Logger, settings *model.Settings) *Ingestor {
	return &Ingestor{
		Store:        st,
		Extractor:    ex,
		Log:          log,
		ChunkSize:    settings.ChunkSize,
		ChunkOverlap: settings.ChunkOverlap,
		Workers:      settings.ExtractionConcurrency,
	}
}

// Ingest processes a batch of files sequentially. A file that fails leaves
// its document in the error state and does not stop the rest of the batch.
// Files whose content hash matches an existing document are skipped.
func (in *Ingestor) Ingest(ctx context.Context, files []IngestFile) ([]IngestResult, error) {
	if !in.running.CompareAndSwap(false, true) {
		return nil, ErrIngestRunning
	}
	defer in.running.Store(false)

	results := make([]IngestResult, 0, len(files))
	for _, file := range files {
		res := in.ingestOne(ctx, file)
		results = append(results, res)
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, file IngestFile) IngestResult {
	sum := sha256.Sum256(file.Content)
	hash := hex.EncodeToString(sum[:])

	existing, err := in.Store.GetDocumentByHash(ctx, hash)
	if err == nil {
		in.Log.Info("skipping duplicate document",
			zap.String("name", file.Name),
			zap.String("existing_id", string(existing.ID)))
		return IngestResult{DocumentID: existing.ID, Name: file.Name, Skipped: true}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return IngestResult{Name: file.Name, Error: err.Error()}
	}

	doc := &model.Document{
		ID:          ids.NewDocumentID(),
		Name:        file.Name,
		ContentHash: hash,
		Size:        len(file.Content),
		Kind:        kindForName(file.Name),
		Status:      model.StatusUploading,
		Progress:    0,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := in.Store.PutDocument(ctx, doc); err != nil {
		return IngestResult{Name: file.Name, Error: err.Error()}
	}

	if err := in.process(ctx, doc, string(file.Content)); err != nil {
		in.Log.Error("document ingestion failed",
			zap.String("document_id", string(doc.ID)),
			zap.String("name", doc.Name),
			zap.Error(err))
		doc.Status = model.StatusError
		doc.ErrorMessage = err.Error()
		doc.UpdatedAt = time.Now().UTC()
		if putErr := in.Store.PutDocument(ctx, doc); putErr != nil {
			in.Log.Error("failed to record document error state", zap.Error(putErr))
		}
		return IngestResult{DocumentID: doc.ID, Name: file.Name, Error: err.Error()}
	}
	return IngestResult{DocumentID: doc.ID, Name: file.Name}
}

func (in *Ingestor) process(ctx context.Context, doc *model.Document, text string) error {
	if err := in.setStatus(ctx, doc, model.StatusExtracting, 10); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("document has no extractable text")
	}

	if err := in.setStatus(ctx, doc, model.StatusChunking, 30); err != nil {
		return err
	}
	chunks := chunker.Chunk(text, doc.ID, chunker.Options{
		ChunkSize:    in.ChunkSize,
		ChunkOverlap: in.ChunkOverlap,
	})
	if err := in.Store.PutChunks(ctx, chunks); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}
	if err := in.setStatus(ctx, doc, model.StatusChunking, 40); err != nil {
		return err
	}

	if err := in.setStatus(ctx, doc, model.StatusAnalyzing, 45); err != nil {
		return err
	}
	if err := in.extractAll(ctx, doc, chunks); err != nil {
		return err
	}

	if err := in.setStatus(ctx, doc, model.StatusAnalyzing, 95); err != nil {
		return err
	}
	if err := graph.BuildRelationships(ctx, in.Store, doc.ID); err != nil {
		return fmt.Errorf("building topic relationships: %w", err)
	}

	return in.setStatus(ctx, doc, model.StatusComplete, 100)
}

// extractAll fans chunk extraction out over the worker pool. Topic upserts
// and progress updates are serialized under one mutex. Unparseable oracle
// replies already degraded to zero claims inside the extractor; an error
// here means the oracle or the store is down, which fails the document.
func (in *Ingestor) extractAll(ctx context.Context, doc *model.Document, chunks []*model.TextChunk) error {
	var (
		mu       sync.Mutex
		done     int
		firstErr error
		seenDoc  = map[ids.TopicID]bool{}
	)

	common.RunIndexed(ctx, len(chunks), in.Workers, func(ctx context.Context, i int) {
		chunk := chunks[i]
		extracted, err := in.Extractor.ExtractClaims(ctx, chunk.Content)

		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			in.Log.Warn("chunk extraction failed",
				zap.String("document_id", string(doc.ID)),
				zap.Int("chunk_index", chunk.ChunkIndex),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		} else {
			for _, ec := range extracted {
				if err := in.persistClaim(ctx, doc, chunk, ec, seenDoc); err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("persisting claim: %w", err)
					}
					return
				}
			}
		}

		done++
		doc.Progress = 45 + int(math.Round(50*float64(done)/float64(len(chunks))))
		doc.UpdatedAt = time.Now().UTC()
		if err := in.Store.PutDocument(ctx, doc); err != nil && firstErr == nil {
			firstErr = err
		}
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

// persistClaim resolves the claim's topic labels to topic records (creating
// them on first sight), updates topic counts, and stores the claim. Caller
// holds the ingest mutex.
func (in *Ingestor) persistClaim(ctx context.Context, doc *model.Document, chunk *model.TextChunk, ec model.ExtractedClaim, seenDoc map[ids.TopicID]bool) error {
	claimTopics := make([]ids.TopicID, 0, len(ec.Topics))
	seenClaim := map[ids.TopicID]bool{}

	for _, label := range ec.Topics {
		normalized := topics.Normalize(label)
		if normalized == "" {
			continue
		}

		topic, err := in.Store.GetTopicByNormalizedLabel(ctx, normalized)
		if errors.Is(err, store.ErrNotFound) {
			topic = &model.Topic{
				ID:              ids.NewTopicID(),
				Label:           strings.TrimSpace(label),
				NormalizedLabel: normalized,
			}
		} else if err != nil {
			return err
		}
		if seenClaim[topic.ID] {
			continue
		}
		seenClaim[topic.ID] = true

		topic.ClaimCount++
		if !seenDoc[topic.ID] {
			seenDoc[topic.ID] = true
			topic.DocumentCount++
		}
		if err := in.Store.PutTopic(ctx, topic); err != nil {
			return err
		}
		claimTopics = append(claimTopics, topic.ID)
	}

	claim := &model.Claim{
		ID:         ids.NewClaimID(),
		DocumentID: doc.ID,
		ChunkID:    chunk.ID,
		Text:       ec.Text,
		Type:       model.ClaimType(ec.Type),
		Confidence: ec.Confidence,
		TopicIDs:   claimTopics,
		CreatedAt:  time.Now().UTC(),
	}
	return in.Store.PutClaim(ctx, claim)
}

func (in *Ingestor) setStatus(ctx context.Context, doc *model.Document, status model.DocumentStatus, progress int) error {
	doc.Status = status
	doc.Progress = progress
	doc.UpdatedAt = time.Now().UTC()
	return in.Store.PutDocument(ctx, doc)
}

func kindForName(name string) model.DocumentKind {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return model.KindPDF
	}
	return model.KindText
}
