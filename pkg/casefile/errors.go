package casefile

import "errors"

var (
	// ErrNoActiveResource is returned when a handle is bound to neither a
	// case file nor a document.
	ErrNoActiveResource = errors.New("casefile: no active case file or document")
	ErrNotCaseFile      = errors.New("casefile: handle is not bound to a case file")
	ErrNotDocument      = errors.New("casefile: handle is not bound to a document")
	// ErrNotDraft is returned when documents, signers or signature lines would
	// be attached to a case file that has already been sent.
	ErrNotDraft     = errors.New("casefile: case file is no longer a draft")
	ErrNotPersisted = errors.New("casefile: case file has not been persisted")
	ErrInvalidPDF   = errors.New("casefile: invalid pdf")
)
