// Package record persists the four-field step accounting state.
//
// The record is a flat key/value document (daily_steps, total_steps,
// initial_count, last_date). Every save replaces the whole record so a
// reader never observes fields from two different saves. Backends are a
// JSON file, SQLite, a NATS JetStream key/value bucket, and memory.
//
// Writer serializes saves off the sample delivery path.
package record
