// Package model defines the record types shared by the store, the archive,
// and the resolver.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - Timestamps are UTC time.Time values; nullable ones are pointers
//   - Question and fact keys are opaque strings whose first ten characters
//     are an ISO date (YYYY-MM-DD)
package model
