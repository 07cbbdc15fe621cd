package esign

import "time"

// Status is the lifecycle state the remote service reports for case files,
// documents and signing requests.
type Status string

const (
	StatusNew         Status = "new"
	StatusPending     Status = "pending"
	StatusRejected    Status = "rejected"
	StatusDeleted     Status = "deleted"
	StatusSigned      Status = "signed"
	StatusCompleted   Status = "completed"
	StatusQuarantined Status = "quarantined"
	StatusFailed      Status = "failed"
	StatusExpired     Status = "expired"
)

// IsDraft reports whether the resource can still be edited. Signature lines
// may only be attached while a case file is a draft.
func (s Status) IsDraft() bool {
	return s == StatusNew || s == ""
}

// SignatureRole is the only role this package assigns to signature lines.
const SignatureRole = "Signer"

// CaseFile is the signing envelope grouping documents and signers.
// Documents and signers are fetched through the Client, not embedded.
type CaseFile struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Language   string    `json:"language"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created"`
	TemplateID int       `json:"caseFileTemplateId,omitempty"`
}

// Document is a PDF attached to exactly one case file.
type Document struct {
	ID             int       `json:"id"`
	CaseFileID     int       `json:"caseFileId"`
	Title          string    `json:"title"`
	PDFPath        string    `json:"-"`
	Signable       bool      `json:"signable"`
	DocumentTypeID int       `json:"documentTypeId,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created"`
}

// MakeSignable flags the document so signature lines can be attached.
func (d *Document) MakeSignable() {
	d.Signable = true
}

// Signer is a party required to sign. Its delivery configuration lives in
// the SigningRequest the remote service creates alongside it.
type Signer struct {
	ID            int    `json:"id"`
	CaseFileID    int    `json:"caseFileId"`
	Name          string `json:"name"`
	OnBehalfOf    string `json:"onBehalfOf"`
	SignerTypeIDs []int  `json:"signerTypeIds,omitempty"`
}

type SigningRequest struct {
	ID                    int    `json:"id"`
	SignerID              int    `json:"signerId"`
	Email                 string `json:"email"`
	EmailSubject          string `json:"emailSubject"`
	EmailText             string `json:"emailText"`
	ReminderEmailSubject  string `json:"reminderEmailSubject"`
	ReminderEmailText     string `json:"reminderEmailText"`
	ReminderInterval      int    `json:"reminderInterval"`
	EnableInsecureSigning bool   `json:"enableInsecureSigning"`
	Status                Status `json:"status"`
	RejectReason          string `json:"rejectReason"`
	Link                  string `json:"link"`
}

// SignatureLine binds one document to one signer.
type SignatureLine struct {
	ID         int    `json:"id"`
	DocumentID int    `json:"documentId"`
	Role       string `json:"role"`
	SignerID   int    `json:"signerId,omitempty"`
}

type CaseFileTemplate struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	DocumentTypes []DocumentType `json:"documentTypes"`
}

type DocumentType struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	SignerTypes []SignerType `json:"signerTypes,omitempty"`
}

type SignerType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Folder struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}
