// Package ingest runs the write side: chunk, embed, then persist and link one
// document per transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/domain"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/logger"
	"github.com/kailas-cloud/clinrag/internal/metrics"
)

// Limits for batch ingestion.
const (
	MaxBatchSize   = 100
	DefaultWorkers = 4
)

// documentNamespace seeds ids for documents submitted without one.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://clinrag/document"))

// Input is one document to ingest.
type Input struct {
	ID     string
	Title  string
	Source string
	Type   document.Type
	Text   string
}

// Report describes a stored document.
type Report struct {
	DocumentID string
	Type       document.Type
	Assembler  string
	Chunks     int
	Oversized  int
	FellBack   bool
	Warnings   []string
	Duration   time.Duration
}

// Service ingests documents.
type Service struct {
	chunker      Chunker
	embed        ChunkEmbedder
	store        Store
	logger       *zap.Logger
	workers      int
	maxBatchSize int
}

// New creates an ingestion service.
func New(chunker Chunker, embed ChunkEmbedder, store Store, logger *zap.Logger) *Service {
	return &Service{
		chunker:      chunker,
		embed:        embed,
		store:        store,
		logger:       logger,
		workers:      DefaultWorkers,
		maxBatchSize: MaxBatchSize,
	}
}

// WithWorkers sets how many documents of a batch are ingested concurrently.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// DocumentID returns in.ID, or an id derived from the text when it is empty, so
// resubmitting the same text replaces the same document.
func DocumentID(in Input) string {
	if in.ID != "" {
		return in.ID
	}
	return uuid.NewSHA1(documentNamespace, []byte(in.Text)).String()
}

func (s *Service) validate(in Input) (document.Document, error) {
	if strings.TrimSpace(in.Text) == "" {
		return document.Document{}, fmt.Errorf("text is required: %w", domain.ErrInvalidDocument)
	}
	if len(in.Text) > document.MaxTextSize {
		return document.Document{}, fmt.Errorf("text exceeds %d bytes: %w", document.MaxTextSize, domain.ErrInvalidDocument)
	}
	doc, err := document.New(DocumentID(in), in.Title, in.Source, in.Type)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
	}
	return doc, nil
}

// Preview chunks a document without embedding or storing it.
func (s *Service) Preview(ctx context.Context, in Input) (chunking.Result, error) {
	doc, err := s.validate(in)
	if err != nil {
		return chunking.Result{}, err
	}
	return s.chunker.Chunk(ctx, doc, in.Text), nil
}

// Ingest chunks, embeds and stores one document, replacing any previous version.
// An embedding failure abandons the document before anything is written.
func (s *Service) Ingest(ctx context.Context, in Input) (Report, error) {
	start := time.Now()

	doc, err := s.validate(in)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(string(in.Type), "invalid").Inc()
		return Report{}, err
	}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("document_id", doc.ID()))

	res := s.chunker.Chunk(ctx, doc, in.Text)
	doc = doc.WithType(res.Type)
	typ := string(res.Type)

	embedded, err := s.embed.EmbedChunks(ctx, res.Chunks)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(typ, "embedding_failed").Inc()
		log.Error("Embedding failed, document abandoned", zap.Int("chunks", len(res.Chunks)), zap.Error(err))
		return Report{}, fmt.Errorf("embed document %s: %w", doc.ID(), err)
	}

	if err := s.store.WithDocument(ctx, doc, func(w graph.Writer) error {
		return write(ctx, w, doc, embedded)
	}); err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(typ, "storage_failed").Inc()
		log.Error("Document write failed", zap.Error(err))
		return Report{}, fmt.Errorf("store document %s: %w", doc.ID(), err)
	}

	report := Report{
		DocumentID: doc.ID(),
		Type:       res.Type,
		Assembler:  res.Assembler,
		Chunks:     len(embedded),
		FellBack:   res.FellBack,
		Warnings:   res.Warnings,
		Duration:   time.Since(start),
	}
	for _, c := range embedded {
		if c.Oversized() {
			report.Oversized++
		}
	}

	metrics.IngestDocumentsTotal.WithLabelValues(typ, "ok").Inc()
	metrics.IngestDuration.WithLabelValues(typ).Observe(report.Duration.Seconds())
	log.Info("Document ingested",
		zap.String("document_type", typ),
		zap.String("assembler", report.Assembler),
		zap.Int("chunks", report.Chunks),
		zap.Int("oversized", report.Oversized),
		zap.Bool("fell_back", report.FellBack),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func write(ctx context.Context, w graph.Writer, doc document.Document, chunks []chunk.Chunk) error {
	for _, c := range chunks {
		if _, err := w.StoreChunk(ctx, c, c.Embedding(), doc); err != nil {
			return fmt.Errorf("store chunk %d: %w", c.Ordinal(), err)
		}
	}
	if err := w.LinkSequential(ctx, chunks); err != nil {
		return fmt.Errorf("link sequential: %w", err)
	}
	if err := w.LinkHierarchy(ctx, chunks); err != nil {
		return fmt.Errorf("link hierarchy: %w", err)
	}
	return nil
}

// IngestBatch ingests items concurrently and reports per item. A failed document
// never affects the others.
func (s *Service) IngestBatch(ctx context.Context, items []Input) []dombatch.Result {
	results := make([]dombatch.Result, len(items))

	if len(items) > s.maxBatchSize {
		for i, item := range items {
			results[i] = dombatch.NewError(i, item.ID,
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidDocument))
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, item := range items {
		g.Go(func() error {
			id := DocumentID(item)
			if err := gctx.Err(); err != nil {
				results[i] = dombatch.NewError(i, id, err)
				return nil
			}
			report, err := s.Ingest(gctx, item)
			if err != nil {
				results[i] = dombatch.NewError(i, id, err)
				return nil
			}
			results[i] = dombatch.NewOK(i, report.DocumentID, report.Chunks)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Delete removes a document with all its chunks and edges.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required: %w", domain.ErrInvalidDocument)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return err
		}
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	logger.FromContextOr(ctx, s.logger).Info("Document deleted", zap.String("document_id", id))
	return nil
}
