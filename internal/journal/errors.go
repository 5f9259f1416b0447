package journal

import (
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// Sentinel errors for journal operations. Callers attach the underlying
// failure with WithCause and match with errors.Is.
var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.JournalError("could not open journal database").Build()

	// ErrInitializeSchemaFailed indicates the schema could not be created.
	ErrInitializeSchemaFailed = ferrors.JournalError("failed to initialize journal schema").Build()

	ErrAppendFailed = ferrors.JournalError("failed to append journal entry").Build()
	ErrQueryFailed  = ferrors.JournalError("failed to query journal entries").Build()

	// ErrMarshalPayloadFailed indicates an event could not be encoded.
	ErrMarshalPayloadFailed = ferrors.JournalError("failed to marshal entry payload").Build()

	// ErrRebuildFailed indicates a projection could not be rebuilt from the store.
	ErrRebuildFailed = ferrors.JournalError("failed to rebuild history projection").Build()
)
