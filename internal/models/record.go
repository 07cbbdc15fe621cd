package models

import "time"

// Ledger statuses, in the order a successful request passes through them.
const (
	StatusCreating = "CREATING"
	StatusDraft    = "DRAFT"
	StatusSent     = "SENT"
	StatusFailed   = "FAILED"
)

// CaseFileRecord is the Firestore ledger entry for one case file request.
// It tracks how far the request got and where to find the remote case file.
type CaseFileRecord struct {
	RequestID           string    `firestore:"requestId,omitempty"`
	CaseFileID          int       `firestore:"caseFileId,omitempty"`
	Title               string    `firestore:"title,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	RemoteStatus        string    `firestore:"remoteStatus,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	DocumentCount       int       `firestore:"documentCount,omitempty"`
	SignerCount         int       `firestore:"signerCount,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"` // For traceability
	// WorkflowError is set when the hand-off failed after the case file was
	// sent. The record stays SENT so a redelivery only retries the hand-off.
	WorkflowError string `firestore:"workflowError,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}
