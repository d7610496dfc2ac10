package selfcorrect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/scoring"
)

// State of the retry machine. ACCEPTED and EXHAUSTED are terminal and never
// revisited for a given query.
type State string

const (
	StateInitial   State = "INITIAL"
	StateSearching State = "SEARCHING"
	StateRetrying  State = "RETRYING"
	StateAccepted  State = "ACCEPTED"
	StateExhausted State = "EXHAUSTED"
)

// Policy holds the escalation parameters for one query. Escalation is
// deterministic: identical inputs and configuration produce identical
// attempt sequences.
type Policy struct {
	TopK                int
	ConfidenceThreshold float64
	MaxRetries          int
	TopKMultiplier      int
	TopKCeiling         int
	ThresholdDecrement  float64
	ConfidenceFloor     float64

	// AcceptOnMinCitations turns the minimum-citations rule into an
	// acceptance condition: a round with at least MinCitations accepted
	// matches terminates the machine even when the overall confidence is
	// below the threshold. Off by default so retries are driven purely by
	// overall confidence.
	AcceptOnMinCitations bool
	MinCitations         int
}

// SearchFunc performs one retrieval-plus-scoring round with the given
// parameters and returns the scored matches (index ranking order) together
// with the overall confidence.
type SearchFunc func(ctx context.Context, topK int, threshold float64) ([]qa_types.ScoredMatch, float64, error)

// Outcome is the terminal result of a controller run.
type Outcome struct {
	State             State
	Accepted          []qa_types.ScoredMatch
	Scored            []qa_types.ScoredMatch
	OverallConfidence float64
	FinalTopK         int
	FinalThreshold    float64
	TotalRetrieved    int
	Attempts          []qa_types.AttemptRecord
	LowConfidence     bool
}

// Controller is a bounded retry state machine over retrieval rounds.
// Attempts are strictly sequential: each escalation depends on the scored
// outcome of the previous round.
type Controller struct {
	policy Policy
	logger *slog.Logger
}

func New(policy Policy, logger *slog.Logger) *Controller {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if policy.TopKMultiplier < 1 {
		policy.TopKMultiplier = 1
	}
	if policy.MinCitations < 1 {
		policy.MinCitations = 1
	}
	return &Controller{policy: policy, logger: logger}
}

// Run drives the machine until a terminal state. Low-confidence exhaustion
// is a valid outcome, not an error: the best-scoring attempt's results are
// returned with LowConfidence set.
func (c *Controller) Run(ctx context.Context, search SearchFunc) (*Outcome, error) {
	topK := c.policy.TopK
	threshold := c.policy.ConfidenceThreshold

	out := &Outcome{
		State:          StateInitial,
		FinalTopK:      topK,
		FinalThreshold: threshold,
		LowConfidence:  true,
	}

	var best *round

	for attempt := 1; attempt <= c.policy.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			c.logger.Warn("Query deadline elapsed before retrieval round, settling with best attempt",
				slog.Int("attempt", attempt))
			return c.exhaust(out, best), nil
		}

		out.State = StateSearching
		scored, overall, err := search(ctx, topK, threshold)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					c.logger.Warn("Query deadline elapsed during retrieval round, settling with best attempt",
						slog.Int("attempt", attempt),
						slog.String("error", err.Error()))
					return c.exhaust(out, best), nil
				}
				// Only the per-attempt budget expired. The round still
				// consumed an attempt; escalation continues.
				out.Attempts = append(out.Attempts, qa_types.AttemptRecord{
					AttemptNumber: attempt,
					TopKUsed:      topK,
					ThresholdUsed: threshold,
				})
				c.logger.Warn("Retrieval round timed out, escalating",
					slog.Int("attempt", attempt),
					slog.Int("top_k", topK))
				if attempt == c.policy.MaxRetries {
					break
				}
				out.State = StateRetrying
				topK = escalateTopK(topK, c.policy.TopKMultiplier, c.policy.TopKCeiling)
				threshold = escalateThreshold(threshold, c.policy.ThresholdDecrement, c.policy.ConfidenceFloor)
				continue
			}
			return nil, err
		}

		accepted, _ := scoring.Accept(scored, threshold)
		out.Attempts = append(out.Attempts, qa_types.AttemptRecord{
			AttemptNumber:     attempt,
			TopKUsed:          topK,
			ThresholdUsed:     threshold,
			OverallConfidence: overall,
		})

		c.logger.Debug("Retrieval round scored",
			slog.Int("attempt", attempt),
			slog.Int("top_k", topK),
			slog.Float64("threshold", threshold),
			slog.Float64("overall_confidence", overall),
			slog.Int("accepted", len(accepted)),
			slog.Int("retrieved", len(scored)))

		cur := &round{
			scored:    scored,
			accepted:  accepted,
			overall:   overall,
			topK:      topK,
			threshold: threshold,
		}
		if best == nil || cur.overall > best.overall {
			best = cur
		}

		if c.accepts(cur) {
			out.State = StateAccepted
			out.LowConfidence = false
			cur.fill(out)
			return out, nil
		}

		if attempt == c.policy.MaxRetries {
			break
		}

		// Escalate: widen the search first, then relax the threshold.
		// Both moves are monotonic across attempts.
		out.State = StateRetrying
		topK = escalateTopK(topK, c.policy.TopKMultiplier, c.policy.TopKCeiling)
		threshold = escalateThreshold(threshold, c.policy.ThresholdDecrement, c.policy.ConfidenceFloor)
	}

	return c.exhaust(out, best), nil
}

func (c *Controller) accepts(r *round) bool {
	if r.overall >= r.threshold && len(r.scored) > 0 {
		return true
	}
	if c.policy.AcceptOnMinCitations && len(r.accepted) >= c.policy.MinCitations {
		return true
	}
	return false
}

func (c *Controller) exhaust(out *Outcome, best *round) *Outcome {
	out.State = StateExhausted
	out.LowConfidence = true
	if best != nil {
		best.fill(out)
	}
	c.logger.Info("Retrieval attempts exhausted",
		slog.Int("attempts", len(out.Attempts)),
		slog.Float64("best_confidence", out.OverallConfidence),
		slog.Int("accepted", len(out.Accepted)))
	return out
}

type round struct {
	scored    []qa_types.ScoredMatch
	accepted  []qa_types.ScoredMatch
	overall   float64
	topK      int
	threshold float64
}

func (r *round) fill(out *Outcome) {
	out.Scored = r.scored
	out.Accepted = r.accepted
	out.OverallConfidence = r.overall
	out.FinalTopK = r.topK
	out.FinalThreshold = r.threshold
	out.TotalRetrieved = len(r.scored)
}

func escalateTopK(topK, multiplier, ceiling int) int {
	next := topK * multiplier
	if ceiling > 0 && next > ceiling {
		next = ceiling
	}
	if next < topK {
		return topK
	}
	return next
}

func escalateThreshold(threshold, decrement, floor float64) float64 {
	next := threshold - decrement
	if next < floor {
		next = floor
	}
	if next > threshold {
		return threshold
	}
	return next
}
