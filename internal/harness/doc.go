// Package harness runs answer-resolution scenarios described in YAML and
// compares their traces against golden files.
//
// # Scenario Format
//
//	name: grace_window
//	description: "Second answer inside the grace window is a duplicate"
//	timezone: UTC          # optional
//	grace_window: 2h       # optional
//	questions:
//	  - key: "2024-03-01"
//	    correct_answer: B
//	steps:
//	  - at: "2024-03-01T10:00:00Z"
//	    user_id: octocat
//	    label: B
//	    question_key: "2024-03-01"
//	    expect:
//	      kind: accepted
//	      points: 1
//	assertions:
//	  - user: octocat
//	    streak: 1
//	    total_points: 1
//
// Each step moves a manual clock to its timestamp and resolves one
// submission against a fresh in-memory store, so runs are deterministic.
//
// # Golden Files
//
// The trace is rendered as canonical JSON, one object per line, and stored in
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
