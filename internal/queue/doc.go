// Package queue persists transcription jobs.
//
// Two layers of durability back the pipeline: a SQLite ledger that keeps the
// queued backlog and job history across restarts, and one atomically-written
// JSON snapshot per job that serves status queries and crash recovery even
// when the ledger is unavailable. The worker mutates jobs exclusively; all
// writes here are plain persistence with no business logic.
package queue
