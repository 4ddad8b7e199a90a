package storage

// Package storage provides the persistence layer for the reminder engine.
//
// It owns three tables:
//   - campaigns: one row per tracked reaction-to-reminder workflow
//   - optins: deduplicated participants, unique per (campaign_id, user_id)
//   - reminders_log: append-only history of send attempts
//
// Schema creation is idempotent; Open can be pointed at an already
// initialized database file.
