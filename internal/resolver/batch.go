package resolver

import (
	"context"
)

// Result pairs a submission with its outcome.
type Result struct {
	Submission Submission `json:"submission"`
	Outcome    Outcome    `json:"outcome"`
}

// BatchResult summarizes one ProcessBatch run.
type BatchResult struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`

	// Unplanned lists submissions that did not reach an outcome: the one
	// that hit a storage failure and everything after it, plus anything
	// left when the context was cancelled. Callers mark them so they are
	// excluded from the next run.
	Unplanned []Submission `json:"unplanned"`
}

// Counts tallies outcomes by kind.
func (b BatchResult) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, r := range b.Results {
		counts[r.Outcome.Kind]++
	}
	return counts
}

// ProcessBatch resolves submissions one at a time in order.
//
// Rejections never stop the batch. A storage failure stops it: the failing
// submission and the rest are returned as Unplanned together with the error.
func (r *Resolver) ProcessBatch(ctx context.Context, subs []Submission) (BatchResult, error) {
	res := BatchResult{
		RunID:     r.ids.Generate(),
		Results:   make([]Result, 0, len(subs)),
		Unplanned: []Submission{},
	}
	logger := r.logger.With("run_id", res.RunID)
	logger.Info("batch started", "submissions", len(subs))

	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			res.Unplanned = append(res.Unplanned, subs[i:]...)
			logger.Warn("batch interrupted", "error", err, "unplanned", len(res.Unplanned))
			return res, err
		}

		out, err := r.Resolve(ctx, sub)
		if err != nil {
			res.Unplanned = append(res.Unplanned, subs[i:]...)
			logger.Error("batch aborted on storage failure",
				"user_id", sub.UserID,
				"question_key", sub.QuestionKey,
				"error", err,
				"unplanned", len(res.Unplanned),
			)
			return res, err
		}

		logger.Info("submission resolved",
			"user_id", sub.UserID,
			"question_key", sub.QuestionKey,
			"ref", sub.Ref,
			"outcome", string(out.Kind),
			"correct", out.Correct,
			"points", out.PointsEarned,
			"reason", string(out.Reason),
		)
		res.Results = append(res.Results, Result{Submission: sub, Outcome: out})
	}

	counts := res.Counts()
	logger.Info("batch finished",
		"accepted", counts[KindAccepted],
		"duplicate", counts[KindDuplicate],
		"rejected", counts[KindInvalidUser]+counts[KindInvalidLabel]+counts[KindUnknownQuestion],
	)
	return res, nil
}

// MarkUnplanned appends submissions that never reached the resolver, such
// as ones whose label could not be parsed, to the batch's unplanned list.
func (b *BatchResult) MarkUnplanned(subs ...Submission) {
	b.Unplanned = append(b.Unplanned, subs...)
}
