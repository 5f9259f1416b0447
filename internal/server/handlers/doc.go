// Package handlers contains HTTP handlers for the stepd command surface:
// health, snapshot, availability and history reads, and the start, stop and
// reset commands.
//
// Errors are classified foundation errors rendered through the
// HTTPErrorAdapter, so status codes follow the error category.
package handlers
