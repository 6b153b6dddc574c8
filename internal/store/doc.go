// Package store provides SQLite-backed durable storage for the trivia feed.
//
// The store holds three record tables plus a schema version record:
//   - leaderboard: per-user scoring state, replaced wholesale per write cycle
//   - daily_facts: first-write-wins by key, deleted only by retention
//   - trivia_questions: first-write-wins by key, deleted only by retention
//   - schema_meta: a single row carrying the schema version
//
// # Write Semantics
//
// Every mutating method runs in its own transaction, so a reader never sees a
// partially rewritten table. No cross-table transaction is offered.
//
// InsertFactIfAbsent and InsertQuestionIfAbsent are the first-write-wins
// primitive: an existing key is left untouched and the call reports
// inserted=false.
//
// # Ordering
//
// Keyed-by-timestamp tables are returned newest-first (ORDER BY key DESC).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single open connection: the store assumes one writer process
//
// Timestamps are stored as fixed-width UTC text (see timeLayout) so that
// lexicographic comparison in SQL matches chronological order.
package store
