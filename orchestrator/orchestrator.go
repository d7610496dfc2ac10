package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/serisow/docqa/citation"
	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/scoring"
	"github.com/serisow/docqa/selfcorrect"
	"github.com/serisow/docqa/services/embedding_service"
	"github.com/serisow/docqa/services/generation_service"
	"github.com/serisow/docqa/services/index_service"
)

// Message returned when retrieval finds nothing worth answering from.
const noAnswerMessage = "I couldn't find any relevant information to answer your question."

// Options carries the retrieval and budget configuration for the
// orchestrator. Zero request parameters fall back to these values.
type Options struct {
	TopK                 int
	ConfidenceThreshold  float64
	MaxRetries           int
	TopKMultiplier       int
	TopKCeiling          int
	ThresholdDecrement   float64
	ConfidenceFloor      float64
	AcceptOnMinCitations bool
	MinCitations         int

	QueryTimeout      time.Duration
	PerAttemptTimeout time.Duration
	GenerationTimeout time.Duration
	ContextCharLimit  int
}

// QueryParams are the per-request knobs exposed to callers.
type QueryParams struct {
	Query               string
	TopK                int
	ConfidenceThreshold float64
	IncludeCitations    bool
	MaxRetries          int
}

// Orchestrator composes embedding, retrieval, scoring, self-correction,
// citation assembly and generation into the end-to-end query flow. It is
// the only component that decides whether generation runs.
type Orchestrator struct {
	embedder  embedding_service.Embedder
	index     index_service.VectorIndex
	generator generation_service.Generator
	scorer    *scoring.Scorer
	assembler *citation.Assembler
	opts      Options
	logger    *slog.Logger

	// Backoff before the single rate-limit retry of generation.
	rateLimitDelay time.Duration
}

func New(
	embedder embedding_service.Embedder,
	index index_service.VectorIndex,
	generator generation_service.Generator,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		embedder:       embedder,
		index:          index,
		generator:      generator,
		scorer:         scoring.NewScorer(index.Scale()),
		assembler:      citation.NewAssembler(),
		opts:           opts,
		logger:         logger,
		rateLimitDelay: 2 * time.Second,
	}
}

// Query answers a question against the corpus, with confidence scoring,
// bounded self-correction and citations.
func (o *Orchestrator) Query(ctx context.Context, p QueryParams) (*qa_types.QueryResponse, error) {
	if p.Query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}
	topK := p.TopK
	if topK <= 0 {
		topK = o.opts.TopK
	}
	threshold := p.ConfidenceThreshold
	if threshold <= 0 {
		threshold = o.opts.ConfidenceThreshold
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.opts.MaxRetries
	}

	if o.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.QueryTimeout)
		defer cancel()
	}

	queryVector, err := o.embedder.Embed(ctx, p.Query)
	if err != nil {
		return nil, fmt.Errorf("query embedding stage: %w", err)
	}

	controller := selfcorrect.New(selfcorrect.Policy{
		TopK:                 topK,
		ConfidenceThreshold:  threshold,
		MaxRetries:           maxRetries,
		TopKMultiplier:       o.opts.TopKMultiplier,
		TopKCeiling:          o.opts.TopKCeiling,
		ThresholdDecrement:   o.opts.ThresholdDecrement,
		ConfidenceFloor:      o.opts.ConfidenceFloor,
		AcceptOnMinCitations: o.opts.AcceptOnMinCitations,
		MinCitations:         o.opts.MinCitations,
	}, o.logger)

	outcome, err := controller.Run(ctx, o.searchRound(queryVector))
	if err != nil {
		return nil, fmt.Errorf("retrieval stage: %w", err)
	}

	resp := &qa_types.QueryResponse{
		Query:           p.Query,
		ConfidenceScore: outcome.OverallConfidence,
		Citations:       []qa_types.Citation{},
		RetrievalMetadata: qa_types.RetrievalMetadata{
			Attempts:       outcome.Attempts,
			FinalTopK:      outcome.FinalTopK,
			ThresholdUsed:  outcome.FinalThreshold,
			TotalRetrieved: outcome.TotalRetrieved,
			AcceptedCount:  len(outcome.Accepted),
			LowConfidence:  outcome.LowConfidence,
		},
		Timestamp: time.Now().UTC(),
	}

	// Exhausted with nothing accepted: short-circuit without generation
	// rather than fabricating an answer from empty context.
	if len(outcome.Accepted) == 0 {
		resp.Answer = noAnswerMessage
		resp.AnswerUnavailable = true
		return resp, nil
	}

	citations, err := o.assembler.Assemble(outcome.Accepted)
	if err != nil {
		return nil, fmt.Errorf("citation stage: %w", err)
	}
	if p.IncludeCitations {
		resp.Citations = citations
	}

	contexts, dropped := o.buildContexts(outcome.Accepted)
	resp.RetrievalMetadata.CitationsDropped = dropped

	answer, err := o.generate(ctx, p.Query, contexts, p.IncludeCitations)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// Deadline hit during generation: fall back to a
			// retrieval-only result instead of failing the query.
			o.logger.Warn("Generation cancelled by deadline, returning retrieval-only response",
				slog.String("error", err.Error()))
			resp.AnswerUnavailable = true
			return resp, nil
		}
		return nil, fmt.Errorf("generation stage: %w", err)
	}
	resp.Answer = answer
	return resp, nil
}

// searchRound adapts one index query plus scoring into the controller's
// round function. Each round gets its own per-attempt timeout.
func (o *Orchestrator) searchRound(queryVector []float32) selfcorrect.SearchFunc {
	return func(ctx context.Context, topK int, threshold float64) ([]qa_types.ScoredMatch, float64, error) {
		if o.opts.PerAttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.opts.PerAttemptTimeout)
			defer cancel()
		}
		matches, err := o.index.Query(ctx, queryVector, topK, nil)
		if err != nil {
			return nil, 0, err
		}
		scored, overall := o.scorer.Score(matches)
		return scored, overall, nil
	}
}

// buildContexts returns the accepted chunks' full text ordered by
// descending confidence, dropping the lowest-confidence entries while the
// total exceeds the generation input limit. At least one chunk is always
// kept.
func (o *Orchestrator) buildContexts(accepted []qa_types.ScoredMatch) ([]string, int) {
	ordered := make([]qa_types.ScoredMatch, len(accepted))
	copy(ordered, accepted)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		return ordered[i].Rank < ordered[j].Rank
	})

	total := 0
	contexts := make([]string, 0, len(ordered))
	for _, m := range ordered {
		contexts = append(contexts, m.Metadata.Text)
		total += len(m.Metadata.Text)
	}

	dropped := 0
	if o.opts.ContextCharLimit > 0 {
		for len(contexts) > 1 && total > o.opts.ContextCharLimit {
			last := contexts[len(contexts)-1]
			contexts = contexts[:len(contexts)-1]
			total -= len(last)
			dropped++
		}
	}
	if dropped > 0 {
		o.logger.Info("Dropped low-confidence context chunks to fit generation input limit",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(contexts)))
	}
	return contexts, dropped
}

// generate calls the generation provider under its own timeout. A rate
// limited call is retried with backoff exactly once; this retry is separate
// from the self-correction budget.
func (o *Orchestrator) generate(ctx context.Context, query string, contexts []string, includeCitations bool) (string, error) {
	gctx := ctx
	if o.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, o.opts.GenerationTimeout)
		defer cancel()
	}

	answer, err := o.generator.Complete(gctx, query, contexts, includeCitations)
	var rateLimited *generation_service.RateLimitedError
	if errors.As(err, &rateLimited) {
		o.logger.Warn("Generation rate limited, retrying once",
			slog.Duration("backoff", o.rateLimitDelay))
		select {
		case <-time.After(o.rateLimitDelay):
		case <-gctx.Done():
			return "", gctx.Err()
		}
		answer, err = o.generator.Complete(gctx, query, contexts, includeCitations)
	}
	return answer, err
}
