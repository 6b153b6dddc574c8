package resolver

import (
	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/scoring"
)

// Kind classifies the result of resolving one submission.
type Kind string

const (
	// KindAccepted means the answer was credited, correct or not.
	KindAccepted Kind = "accepted"

	// KindDuplicate means the user was already credited for this question
	// or answered within the grace window earlier the same day.
	KindDuplicate Kind = "duplicate"

	// KindInvalidUser means the user id failed the format check.
	KindInvalidUser Kind = "invalid_user"

	// KindInvalidLabel means the submitted label is not A, B or C.
	KindInvalidLabel Kind = "invalid_label"

	// KindUnknownQuestion means no question exists for the submitted key.
	KindUnknownQuestion Kind = "unknown_question"
)

// DuplicateReason explains a KindDuplicate outcome.
type DuplicateReason string

const (
	ReasonAlreadyAnswered DuplicateReason = "already_answered"
	ReasonGraceWindow     DuplicateReason = "grace_window"

	// ReasonSuperseded marks a key dated before the user's last credited
	// question. Keys older than the retained history fall under this rule.
	ReasonSuperseded DuplicateReason = "superseded"
)

// Submission is one inbound answer event.
type Submission struct {
	UserID      string      `json:"user_id" yaml:"user_id"`
	Label       model.Label `json:"label" yaml:"label"`
	QuestionKey string      `json:"question_key" yaml:"question_key"`

	// Ref identifies the submission in the external tracker (an issue
	// number, for instance). Opaque to the resolver.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Outcome is the resolver's verdict for one submission. Rejections are
// outcomes, not errors.
type Outcome struct {
	Kind        Kind   `json:"kind"`
	UserID      string `json:"user_id"`
	QuestionKey string `json:"question_key"`

	// Set for KindAccepted.
	Correct      bool               `json:"correct,omitempty"`
	PointsEarned int                `json:"points_earned,omitempty"`
	Streak       int                `json:"streak,omitempty"`
	TotalPoints  int                `json:"total_points,omitempty"`
	Bonus        *scoring.BonusInfo `json:"bonus,omitempty"`

	// Set for KindDuplicate.
	Reason DuplicateReason `json:"reason,omitempty"`
}

// Accepted reports whether the submission changed the leaderboard.
func (o Outcome) Accepted() bool {
	return o.Kind == KindAccepted
}

// Terminal reports whether the submission is finished and should not be
// offered again. Every outcome kind is terminal.
func (o Outcome) Terminal() bool {
	switch o.Kind {
	case KindAccepted, KindDuplicate, KindInvalidUser, KindInvalidLabel, KindUnknownQuestion:
		return true
	}
	return false
}
