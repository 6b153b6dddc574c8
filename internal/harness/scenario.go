package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/resolver"
)

// Scenario is a sequence of timed submissions with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timezone defines calendar days. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// GraceWindow overrides the resolver's grace window, e.g. "90m".
	GraceWindow string `yaml:"grace_window,omitempty"`

	// HistoryLimit overrides the answer history bound.
	HistoryLimit int `yaml:"history_limit,omitempty"`

	// Questions are stored before the first step.
	Questions []QuestionFixture `yaml:"questions"`

	// Steps are resolved in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final leaderboard.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QuestionFixture seeds one question. Option text is filler.
type QuestionFixture struct {
	Key           string `yaml:"key"`
	CorrectAnswer string `yaml:"correct_answer"`
}

// Step submits one answer at a fixed instant.
type Step struct {
	// At is an RFC 3339 timestamp.
	At          string  `yaml:"at"`
	UserID      string  `yaml:"user_id"`
	Label       string  `yaml:"label"`
	QuestionKey string  `yaml:"question_key"`
	Expect      *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match against the step's outcome.
type Expect struct {
	Kind   string `yaml:"kind"`
	Reason string `yaml:"reason,omitempty"`
	Points *int   `yaml:"points,omitempty"`
	Streak *int   `yaml:"streak,omitempty"`
}

// Assertion checks one user's final leaderboard entry. Nil fields are not
// checked. Exists defaults to true.
type Assertion struct {
	User          string `yaml:"user"`
	Exists        *bool  `yaml:"exists,omitempty"`
	Streak        *int   `yaml:"streak,omitempty"`
	TotalCorrect  *int   `yaml:"total_correct,omitempty"`
	TotalAnswered *int   `yaml:"total_answered,omitempty"`
	TotalPoints   *int   `yaml:"total_points,omitempty"`
	HistoryLength *int   `yaml:"history_length,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if s.GraceWindow != "" {
		if _, err := time.ParseDuration(s.GraceWindow); err != nil {
			return fmt.Errorf("grace_window: %w", err)
		}
	}

	for i, q := range s.Questions {
		if q.Key == "" {
			return fmt.Errorf("questions[%d]: key is required", i)
		}
		if !model.Label(q.CorrectAnswer).Valid() {
			return fmt.Errorf("questions[%d]: correct_answer must be A, B or C", i)
		}
	}

	for i, step := range s.Steps {
		if _, err := time.Parse(time.RFC3339Nano, step.At); err != nil {
			return fmt.Errorf("steps[%d]: at: %w", i, err)
		}
		if step.Expect != nil {
			if err := validateKind(step.Expect.Kind); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required", i)
		}
	}
	return nil
}

func validateKind(kind string) error {
	switch resolver.Kind(kind) {
	case resolver.KindAccepted, resolver.KindDuplicate, resolver.KindInvalidUser,
		resolver.KindInvalidLabel, resolver.KindUnknownQuestion:
		return nil
	case "":
		return fmt.Errorf("kind is required")
	}
	return fmt.Errorf("unknown kind %q", kind)
}
