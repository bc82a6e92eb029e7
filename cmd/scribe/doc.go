// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into job
// submissions against the shared SQLite ledger, status lookups across the
// ledger, snapshot, and result tiers, result rendering, and configuration
// scaffolding. The daemon owns all processing; submission commands only
// record work and let its poll loop pick it up.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
