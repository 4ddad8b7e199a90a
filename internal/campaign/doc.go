package campaign

// Package campaign implements the reminder engine: the idempotent opt-in
// tally, the size-bounded reminder builder, the paced batch sender, and the
// due-campaign runner.
//
// Delivery semantics
//
// Sending is best-effort per chunk: a failed chunk is recorded and the run
// continues. A campaign is only marked completed when every chunk of a run
// went out cleanly; otherwise it stays active and a later run re-sends all
// chunks. Chunk-level resume is intentionally not supported.
//
// Safety
//
// SendReminder defaults to preview mode. A live send requires both the
// caller's live flag and dry-run mode being off in the engine config.
