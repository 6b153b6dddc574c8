package intake

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/resolver"
)

var at = time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC)

const validQuestion = `{
  "question": "Which planet has the shortest day?",
  "options": {"A": "Jupiter", "B": "Earth", "C": "Venus"},
  "correct_answer": "A",
  "explanation": "Jupiter rotates in under ten hours.",
  "category": "space"
}`

func TestParseQuestion_Valid(t *testing.T) {
	q, err := ParseQuestion([]byte(validQuestion), "2024-03-01", at)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", q.Key)
	assert.Equal(t, "Which planet has the shortest day?", q.Question)
	assert.Equal(t, map[model.Label]string{
		model.LabelA: "Jupiter", model.LabelB: "Earth", model.LabelC: "Venus",
	}, q.Options)
	assert.Equal(t, model.LabelA, q.CorrectAnswer)
	assert.Equal(t, at, q.Timestamp)
	assert.NoError(t, q.Validate())
}

func TestParseQuestion_CodeFence(t *testing.T) {
	for _, raw := range []string{
		"```json\n" + validQuestion + "\n```",
		"```\n" + validQuestion + "\n```",
		"  " + validQuestion + "  ",
	} {
		q, err := ParseQuestion([]byte(raw), "2024-03-01", at)
		require.NoError(t, err, raw)
		assert.Equal(t, model.LabelA, q.CorrectAnswer)
	}
}

func TestParseQuestion_ExplanationDefaults(t *testing.T) {
	raw := `{"question": "q?", "options": {"A": "a", "B": "b", "C": "c"}, "correct_answer": "C"}`
	q, err := ParseQuestion([]byte(raw), "2024-03-01", at)
	require.NoError(t, err)
	assert.Equal(t, "", q.Explanation)
}

func TestParseQuestion_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `the model refused`},
		{"missing option", `{"question": "q?", "options": {"A": "a", "B": "b"}, "correct_answer": "A"}`},
		{"extra option", `{"question": "q?", "options": {"A": "a", "B": "b", "C": "c", "D": "d"}, "correct_answer": "A"}`},
		{"bad answer", `{"question": "q?", "options": {"A": "a", "B": "b", "C": "c"}, "correct_answer": "D"}`},
		{"missing answer", `{"question": "q?", "options": {"A": "a", "B": "b", "C": "c"}}`},
		{"blank question", `{"question": "  ", "options": {"A": "a", "B": "b", "C": "c"}, "correct_answer": "A"}`},
		{"numeric option", `{"question": "q?", "options": {"A": 1, "B": "b", "C": "c"}, "correct_answer": "A"}`},
		{"unknown field", `{"question": "q?", "options": {"A": "a", "B": "b", "C": "c"}, "correct_answer": "A", "difficulty": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestion([]byte(tt.raw), "2024-03-01", at)
			require.Error(t, err)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "want ValidationError, got %T: %v", err, err)
		})
	}
}

func TestParseQuestion_RequiresKey(t *testing.T) {
	_, err := ParseQuestion([]byte(validQuestion), " ", at)
	assert.Error(t, err)
}

func TestParseQuestion_NormalizesNFC(t *testing.T) {
	// "e" followed by a combining acute accent
	decomposed := "Cafe\u0301?"
	raw := `{"question": "` + decomposed + `", "options": {"A": "a", "B": "b", "C": "c"}, "correct_answer": "B"}`

	q, err := ParseQuestion([]byte(raw), "2024-03-01", at)
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9?", q.Question)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`{"a":1}`))
}

func TestNewFact(t *testing.T) {
	f, err := NewFact("2024-03-01T06:00:00Z", "  Honey never spoils.\n", at)
	require.NoError(t, err)
	assert.Equal(t, "Honey never spoils.", f.Fact)
	assert.Equal(t, "2024-03-01T06:00:00Z", f.Key)

	_, err = NewFact("2024-03-01", "   ", at)
	assert.Error(t, err)
	_, err = NewFact("", "text", at)
	assert.Error(t, err)
}

func TestParseAnswerLabel(t *testing.T) {
	tests := []struct {
		title, body string
		want        model.Label
		ok          bool
	}{
		{"Trivia Answer A", "", model.LabelA, true},
		{"Re: Trivia Answer C please", "", model.LabelC, true},
		{"my answer", "I choose B because", model.LabelB, true},
		{"Trivia Answer A", "I choose C", model.LabelA, true},
		{"Trivia Answer D", "", "", false},
		{"trivia answer a", "i choose a", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAnswerLabel(tt.title, tt.body)
		assert.Equal(t, tt.ok, ok, "%q / %q", tt.title, tt.body)
		assert.Equal(t, tt.want, got, "%q / %q", tt.title, tt.body)
	}
}

func TestReadSubmissions(t *testing.T) {
	doc := `
question_key: "2024-03-01"
submissions:
  - user_id: octocat
    title: "Trivia Answer B"
    ref: "#1"
  - user_id: hubot
    label: c
    question_key: "2024-02-29"
  - user_id: lurker
    title: "hello"
    ref: "#3"
  - user_id: " spaced "
    body: "I choose A"
`
	b, err := ReadSubmissions(strings.NewReader(doc), "")
	require.NoError(t, err)

	assert.Equal(t, []resolver.Submission{
		{UserID: "octocat", Label: model.LabelB, QuestionKey: "2024-03-01", Ref: "#1"},
		{UserID: "hubot", Label: model.LabelC, QuestionKey: "2024-02-29"},
		{UserID: "spaced", Label: model.LabelA, QuestionKey: "2024-03-01"},
	}, b.Ready)
	assert.Equal(t, []resolver.Submission{
		{UserID: "lurker", QuestionKey: "2024-03-01", Ref: "#3"},
	}, b.Unparseable)
}

func TestReadSubmissions_DefaultKey(t *testing.T) {
	b, err := ReadSubmissions(strings.NewReader("submissions:\n  - user_id: a\n    label: A\n"), "2024-05-05")
	require.NoError(t, err)
	require.Len(t, b.Ready, 1)
	assert.Equal(t, "2024-05-05", b.Ready[0].QuestionKey)

	_, err = ReadSubmissions(strings.NewReader("submissions:\n  - user_id: a\n    label: A\n"), "")
	assert.Error(t, err)
}

func TestReadSubmissions_UnknownField(t *testing.T) {
	_, err := ReadSubmissions(strings.NewReader("submissions:\n  - user: a\n"), "2024-01-01")
	assert.Error(t, err)
}

func TestReadSubmissions_Empty(t *testing.T) {
	b, err := ReadSubmissions(strings.NewReader(""), "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, b.Ready)
	assert.Empty(t, b.Unparseable)
}

func TestLoadSubmissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("submissions:\n  - user_id: a\n    label: B\n"), 0o644))

	b, err := LoadSubmissions(path, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, b.Ready, 1)

	_, err = LoadSubmissions(filepath.Join(t.TempDir(), "missing.yaml"), "2024-01-01")
	assert.Error(t, err)
}
