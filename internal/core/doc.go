// Package core provides the analysis service behind the web UI and the CLI.
//
// The package holds the run lifecycle and nothing transport-specific, so web
// handlers, the datacrew command and tests use it the same way.
//
// # Runs
//
// A run is one uploaded dataset analyzed by the default crew. The flow is:
//
//  1. The client calls [Service.StartAnalysis] with the upload reader
//  2. The file is parsed synchronously; parse errors are returned directly
//  3. The crew runs in the background once [AnalysisLimiter] grants a slot
//  4. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//  5. The outcome is written to the [HistoryStore] and the report file is
//     left under the report directory
//
// Finished runs stay in memory for [RunEvictionDelay] so their preview and
// cleaned data remain available; after that only history is consulted.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - RUN001-RUN007: Run errors (cancelled, busy, not found, timeout)
//   - FILE001-FILE006: File errors (size, format, empty)
//   - LLM001-LLM005: Language model provider errors
//   - DB001-DB003: History database errors
//   - RATE001: Rate limiting
//
// # Retention
//
// [Service.StartRetentionScheduler] deletes history and report directories
// older than the configured retention.
package core
