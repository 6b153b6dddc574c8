// Package intake validates data arriving from outside the core before it
// reaches the store or the resolver.
//
// Generated questions are checked against an embedded CUE schema. Answer
// submissions are parsed from tracker issue text or YAML batch files.
// Free text is NFC-normalized here so that stored records compare equal
// regardless of how the producer composed its characters.
package intake

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/trivia/internal/model"
)

//go:embed question.cue
var questionSchema string

// ValidationError reports why input was rejected. Pos is set when the
// failure came from the CUE schema and carries a position.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() && e.Pos.Line() > 0 {
		return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator checks raw question JSON against the schema.
// It is safe for concurrent use.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(questionSchema, cue.Filename("question.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile question schema: %w", err)
	}
	schema := v.LookupPath(cue.ParsePath("#Question"))
	if !schema.Exists() {
		return nil, fmt.Errorf("compile question schema: #Question not defined")
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

var (
	defaultValidatorOnce sync.Once
	defaultValidator     *Validator
	defaultValidatorErr  error
)

// DefaultValidator returns a shared Validator.
func DefaultValidator() (*Validator, error) {
	defaultValidatorOnce.Do(func() {
		defaultValidator, defaultValidatorErr = NewValidator()
	})
	return defaultValidator, defaultValidatorErr
}

// Validate unifies data with the schema and requires a concrete result.
func (v *Validator) Validate(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.ctx.CompileBytes(data, cue.Filename("question.json"))
	if err := value.Err(); err != nil {
		return &ValidationError{Field: "json", Message: firstCUEMessage(err)}
	}
	if err := v.schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// questionWire is the JSON layout the completion service returns.
type questionWire struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
}

// ParseQuestion turns a completion response into a TriviaQuestion stored
// under key. Markdown code fences around the JSON are stripped.
func (v *Validator) ParseQuestion(raw []byte, key string, at time.Time) (model.TriviaQuestion, error) {
	if strings.TrimSpace(key) == "" {
		return model.TriviaQuestion{}, &ValidationError{Field: "key", Message: "key is required"}
	}
	body := StripCodeFence(string(raw))
	if err := v.Validate([]byte(body)); err != nil {
		return model.TriviaQuestion{}, err
	}

	var w questionWire
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return model.TriviaQuestion{}, &ValidationError{Field: "json", Message: err.Error()}
	}

	q := model.TriviaQuestion{
		Key:           key,
		Question:      normalize(w.Question),
		Options:       make(map[model.Label]string, len(model.Labels)),
		CorrectAnswer: model.Label(w.CorrectAnswer),
		Explanation:   normalize(w.Explanation),
		Timestamp:     at.UTC(),
	}
	for _, l := range model.Labels {
		q.Options[l] = normalize(w.Options[string(l)])
	}
	if err := q.Validate(); err != nil {
		return model.TriviaQuestion{}, &ValidationError{Field: "question", Message: err.Error()}
	}
	return q, nil
}

// ParseQuestion validates with the shared Validator.
func ParseQuestion(raw []byte, key string, at time.Time) (model.TriviaQuestion, error) {
	v, err := DefaultValidator()
	if err != nil {
		return model.TriviaQuestion{}, err
	}
	return v.ParseQuestion(raw, key, at)
}

// NewFact builds a DailyFact with normalized, trimmed text.
func NewFact(key, text string, at time.Time) (model.DailyFact, error) {
	if strings.TrimSpace(key) == "" {
		return model.DailyFact{}, &ValidationError{Field: "key", Message: "key is required"}
	}
	text = strings.TrimSpace(normalize(text))
	if text == "" {
		return model.DailyFact{}, &ValidationError{Field: "fact", Message: "fact text is required"}
	}
	return model.DailyFact{Key: key, Fact: text, Timestamp: at.UTC()}, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string, if any, up to the first newline.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		if info := strings.TrimSpace(s[:i]); info == "" || !strings.ContainsAny(info, "{[") {
			s = s[i+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalize(s string) string {
	return norm.NFC.String(s)
}

func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Field: "schema", Message: err.Error()}
	}
	first := errs[0]
	field := "schema"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	ve := &ValidationError{Field: field, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}

func firstCUEMessage(err error) string {
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		return errs[0].Error()
	}
	return err.Error()
}
