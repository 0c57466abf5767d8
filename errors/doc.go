// Package errors provides the structured error type used across streamkit.
// Every error carries a machine-readable code, so callers can match a kind
// of failure with errors.Is without depending on message text.
package errors
