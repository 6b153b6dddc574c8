package intake

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/resolver"
)

// ParseAnswerLabel extracts the chosen label from a tracker issue.
// The title is checked for "Trivia Answer X" first, then the body for
// "I choose X". Returns false when neither names A, B or C.
func ParseAnswerLabel(title, body string) (model.Label, bool) {
	for _, l := range model.Labels {
		if strings.Contains(title, "Trivia Answer "+string(l)) {
			return l, true
		}
	}
	for _, l := range model.Labels {
		if strings.Contains(body, "I choose "+string(l)) {
			return l, true
		}
	}
	return "", false
}

// SubmissionFile is a YAML batch of pending answers.
//
//	question_key: "2024-03-01"
//	submissions:
//	  - user_id: octocat
//	    title: "Trivia Answer B"
//	    ref: "#42"
//	  - user_id: hubot
//	    label: C
type SubmissionFile struct {
	// QuestionKey applies to entries that do not name their own.
	QuestionKey string            `yaml:"question_key,omitempty"`
	Submissions []SubmissionEntry `yaml:"submissions"`
}

// SubmissionEntry is one pending answer. Label, if set, wins over any
// label parsed from Title or Body.
type SubmissionEntry struct {
	UserID      string `yaml:"user_id"`
	Label       string `yaml:"label,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Body        string `yaml:"body,omitempty"`
	QuestionKey string `yaml:"question_key,omitempty"`
	Ref         string `yaml:"ref,omitempty"`
}

// Batch is the result of reading a SubmissionFile.
type Batch struct {
	// Ready holds submissions to hand to the resolver.
	Ready []resolver.Submission

	// Unparseable holds entries with no recognizable label. Callers mark
	// them unplanned without resolving them.
	Unparseable []resolver.Submission
}

// ReadSubmissions decodes a YAML batch with strict field checking.
// defaultKey is used when neither the file nor the entry names a question.
func ReadSubmissions(r io.Reader, defaultKey string) (Batch, error) {
	var f SubmissionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return Batch{}, fmt.Errorf("parse submissions: %w", err)
	}

	fileKey := f.QuestionKey
	if fileKey == "" {
		fileKey = defaultKey
	}

	b := Batch{Ready: []resolver.Submission{}, Unparseable: []resolver.Submission{}}
	for i, e := range f.Submissions {
		sub := resolver.Submission{
			UserID:      strings.TrimSpace(e.UserID),
			QuestionKey: e.QuestionKey,
			Ref:         e.Ref,
		}
		if sub.QuestionKey == "" {
			sub.QuestionKey = fileKey
		}
		if sub.QuestionKey == "" {
			return Batch{}, fmt.Errorf("parse submissions: entry %d: no question key", i)
		}

		switch {
		case e.Label != "":
			sub.Label = model.Label(strings.ToUpper(strings.TrimSpace(e.Label)))
		default:
			l, ok := ParseAnswerLabel(e.Title, e.Body)
			if !ok {
				b.Unparseable = append(b.Unparseable, sub)
				continue
			}
			sub.Label = l
		}
		b.Ready = append(b.Ready, sub)
	}
	return b, nil
}

// LoadSubmissions reads a YAML batch from path.
func LoadSubmissions(path, defaultKey string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read submissions: %w", err)
	}
	return ReadSubmissions(bytes.NewReader(data), defaultKey)
}
