package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/trivia/internal/config"
	"github.com/roach88/trivia/internal/testutil"
)

// testSalt is base64 of "saltsaltsaltsalt".
const testSalt = "c2FsdHNhbHRzYWx0c2FsdA=="

// cliFixture runs commands against a temp database and artifact.
type cliFixture struct {
	dir          string
	configPath   string
	dbPath       string
	artifactPath string
	env          map[string]string
	clock        *testutil.Clock
	stdin        string
	stderr       *bytes.Buffer
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	f := &cliFixture{
		dir:          dir,
		configPath:   filepath.Join(dir, "trivia.yaml"),
		dbPath:       filepath.Join(dir, "trivia.db"),
		artifactPath: filepath.Join(dir, "trivia_database.db.gz"),
		env: map[string]string{
			config.EnvSecret: "hunter2",
			config.EnvSalt:   testSalt,
		},
		clock: testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	body := fmt.Sprintf("database_path: %q\nartifact_path: %q\nkdf_iterations: 100000\n", f.dbPath, f.artifactPath)
	require.NoError(t, os.WriteFile(f.configPath, []byte(body), 0o644))
	return f
}

// run executes the root command and returns stdout.
func (f *cliFixture) run(args ...string) (string, error) {
	opts := &RootOptions{
		Getenv: func(k string) string { return f.env[k] },
		Clock:  f.clock,
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	f.stderr = &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(f.stderr)
	cmd.SetIn(strings.NewReader(f.stdin))
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))
	err := cmd.Execute()
	f.stdin = ""
	return out.String(), err
}

// runJSON executes a command with --format json and decodes the data payload.
func (f *cliFixture) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := f.run(append(args, "--format", "json")...)
	require.NoError(t, err, "stderr: %s", f.stderr)
	decodeData(t, out, v)
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func (f *cliFixture) writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const jupiterQuestion = "```json\n" + `{
  "question": "Which planet is the largest?",
  "options": {"A": "Mars", "B": "Jupiter", "C": "Venus"},
  "correct_answer": "B",
  "explanation": "Jupiter is more than twice as massive as the other planets combined."
}` + "\n```\n"

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
