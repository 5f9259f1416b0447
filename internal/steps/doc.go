// Package steps implements the step accounting state machine.
//
// A hardware step counter reports a cumulative count since boot. The Engine
// turns that stream into today's step delta by anchoring a raw value as
// "zero", re-anchoring when the counter drops below the anchor (a reboot) and
// when the local calendar date moves on (a rollover).
//
// The Engine is not safe for concurrent use; its owner serializes calls.
package steps
