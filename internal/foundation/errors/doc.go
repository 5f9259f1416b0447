// Package errors provides the classified error primitives shared by stepd.
//
// A ClassifiedError carries a category (source, persist, config, ...), a
// severity and a retry strategy next to the message and cause, so that the
// HTTP command surface and the CLI can map failures to status and exit codes
// without string matching.
//
//	err := errors.PersistError("save step record").
//		WithContext("backend", "sqlite").
//		WithCause(ioErr).
//		Build()
package errors
