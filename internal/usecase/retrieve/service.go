// Package retrieve runs the query side: vector and keyword candidates, fusion,
// cross-encoder reranking, MMR diversification and graph expansion.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/logger"
	"github.com/kailas-cloud/clinrag/internal/metrics"
)

// Service answers retrieval requests.
type Service struct {
	store   Store
	embed   QueryEmbedder
	ce      domain.CrossEncoder
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a retrieval service. A nil cross-encoder disables reranking.
func New(store Store, embed QueryEmbedder, ce domain.CrossEncoder, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, ce: ce, logger: logger}
}

// WithTimeout bounds every query; zero means no bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Retrieve returns at most k hits for req. Hitting the query timeout is not an
// error: the result is empty.
func (s *Service) Retrieve(ctx context.Context, req request.Request) ([]result.Hit, error) {
	log := logger.FromContextOr(ctx, s.logger)

	qctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	hits, err := s.retrieve(qctx, log, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			metrics.RetrievalTimeoutsTotal.Inc()
			log.Warn("Retrieval timed out",
				zap.Duration("timeout", s.timeout),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return []result.Hit{}, nil
		}
		return nil, err
	}

	metrics.RetrievalResults.Observe(float64(len(hits)))
	log.Debug("Retrieval completed",
		zap.Int("hits", len(hits)),
		zap.String("mode", string(req.Options().Mode)),
		zap.Duration("duration", time.Since(start)),
	)
	return hits, nil
}

func (s *Service) retrieve(ctx context.Context, log *zap.Logger, req request.Request) ([]result.Hit, error) {
	opts := req.Options()

	vec, kw, err := s.candidates(ctx, log, req)
	if err != nil {
		return nil, err
	}

	stage := time.Now()
	var hits []result.Hit
	switch {
	case opts.Mode == mode.Hybrid && opts.Fusion == request.RRF:
		hits = fuseRRF(vec, kw)
	case opts.Mode == mode.Hybrid:
		hits = fuseWeighted(vec, kw, opts.VectorWeight, opts.KeywordWeight)
	case opts.Mode == mode.Keyword:
		hits = single(kw, result.SourceKeyword)
	default:
		hits = single(vec, result.SourceVector)
	}
	observe("fusion", stage)
	if len(hits) == 0 {
		return []result.Hit{}, nil
	}

	if opts.Rerank && s.ce != nil {
		if len(hits) > opts.RerankCandidates {
			hits = hits[:opts.RerankCandidates]
		}
		stage = time.Now()
		reranked, err := rerank(ctx, s.ce, req.Query(), hits)
		observe("rerank", stage)
		switch {
		case err == nil:
			hits = reranked
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
			return nil, err
		default:
			metrics.RerankFailuresTotal.Inc()
			log.Warn("Rerank failed, keeping fused order", zap.Error(err))
		}
	}

	if opts.MMR && len(hits) > opts.K {
		stage = time.Now()
		hits = mmr(hits, opts.K, opts.Lambda)
		observe("mmr", stage)
	}
	if len(hits) > opts.K {
		hits = hits[:opts.K]
	}

	if opts.Expand {
		stage = time.Now()
		hits, err = expand(ctx, s.store, hits, opts.ExpansionHops, req.Filters())
		observe("expand", stage)
		if err != nil {
			return nil, fmt.Errorf("expand: %w", err)
		}
		if len(hits) > opts.K {
			hits = hits[:opts.K]
		}
	}
	return hits, nil
}

// candidates runs vector and keyword search concurrently, as the mode requires.
func (s *Service) candidates(ctx context.Context, log *zap.Logger, req request.Request) (vec, kw []graph.Scored, err error) {
	opts := req.Options()
	g, gctx := errgroup.WithContext(ctx)

	if opts.Mode.UsesVector() {
		g.Go(func() error {
			stage := time.Now()
			v, err := s.embed.EmbedQuery(gctx, req.Query())
			observe("embed", stage)
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			stage = time.Now()
			vec, err = s.store.VectorSearch(gctx, v, req.VectorCandidates(), opts.SimilarityThreshold, req.Filters())
			observe("vector", stage)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			return nil
		})
	}
	if opts.Mode.UsesKeyword() {
		g.Go(func() error {
			stage := time.Now()
			res, err := s.store.KeywordSearch(gctx, req.Query(), req.KeywordCandidates(), req.Filters())
			observe("keyword", stage)
			switch {
			case err == nil:
				kw = res
			case errors.Is(err, domain.ErrKeywordSearchNotSupported) && opts.Mode == mode.Hybrid:
				log.Warn("Keyword search not supported, continuing with vector only")
			default:
				return fmt.Errorf("keyword search: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vec, kw, nil
}

func observe(stage string, start time.Time) {
	metrics.RetrievalStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
