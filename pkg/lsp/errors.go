package lsp

import "errors"

var (
	// ErrStaleEdit rejects a change notification whose version is not newer
	// than the stored document's. The document is left unchanged; the client
	// is expected to resend from a known version.
	ErrStaleEdit = errors.New("stale document edit")

	// ErrOutOfRange rejects a change whose declared range falls outside the
	// current text bounds. Nothing from the notification is applied.
	ErrOutOfRange = errors.New("edit range out of bounds")

	// ErrUnknownDocument reports an operation against a document identity
	// that is not open in the store.
	ErrUnknownDocument = errors.New("document not open")
)
