package models

// These structs define the JSON payloads of the Cloud Functions: the Pub/Sub
// message that asks for a case file, and the HTTP request and response of the
// archiver called from the follow-up workflow.

// PubSubMessage is the CloudEvent data of a Pub/Sub push.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// CaseFileRequest is the input of the casefile-sender function. CaseFileID
// reuses an existing draft; zero creates a new case file.
type CaseFileRequest struct {
	RequestID    string            `json:"requestId"`
	CaseFileID   int               `json:"caseFileId"`
	Title        string            `json:"title"`
	Language     string            `json:"language,omitempty"`
	TemplateID   int               `json:"templateId,omitempty"`
	TemplateName string            `json:"templateName,omitempty"`
	FolderID     int               `json:"folderId,omitempty"`
	FolderTitle  string            `json:"folderTitle,omitempty"`
	Documents    []DocumentPayload `json:"documents"`
	Signers      []SignerPayload   `json:"signers"`
	DraftOnly    bool              `json:"draftOnly,omitempty"`
}

type DocumentPayload struct {
	Title string `json:"title"`
	// Filename is a local path or a gs://bucket/object URI.
	Filename     string `json:"filename"`
	DocumentType int    `json:"documentType,omitempty"`
}

type SignerPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Representing string `json:"representing,omitempty"`
	// ReminderInterval in days. Absent means one day, zero disables reminders.
	ReminderInterval *int `json:"reminderInterval,omitempty"`
	SignerType       int  `json:"signerType,omitempty"`
}

// CaseFileResult is the output of the casefile-sender function.
type CaseFileResult struct {
	Status              string `json:"status"`
	LedgerID            string `json:"ledgerId"`
	CaseFileID          int    `json:"caseFileId"`
	RemoteStatus        string `json:"remoteStatus,omitempty"`
	WorkflowExecutionID string `json:"workflowExecutionId,omitempty"`
}

// ArchiveRequest is the input for the document-archiver function.
type ArchiveRequest struct {
	DocumentID  int    `json:"documentId"`
	ExecutionID string `json:"executionId"`
}

// ArchiveResponse is the output of the document-archiver function.
type ArchiveResponse struct {
	Status    string `json:"status"`
	GCSUri    string `json:"gcsUri"`
	PageCount int    `json:"pageCount"`
}
