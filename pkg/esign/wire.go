package esign

import (
	"fmt"
	"time"
)

// The remote API reports timestamps as unix seconds and states as integer
// codes. These types mirror the JSON it returns.

var caseFileStatusCodes = map[int]Status{
	0: StatusNew,
	1: StatusPending,
	2: StatusRejected,
	3: StatusDeleted,
	4: StatusSigned,
	5: StatusCompleted,
	6: StatusQuarantined,
	7: StatusFailed,
	8: StatusExpired,
}

var signingRequestStatusCodes = map[int]Status{
	0: StatusNew,
	1: StatusPending,
	2: StatusRejected,
	3: StatusDeleted,
	4: StatusSigned,
	5: StatusFailed, // undeliverable
	6: StatusExpired,
}

func decodeStatus(table map[int]Status, code int) Status {
	if s, ok := table[code]; ok {
		return s
	}
	return Status(fmt.Sprintf("unknown(%d)", code))
}

func decodeTime(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

type caseFileWire struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Language       string `json:"language"`
	Status         int    `json:"status"`
	Created        int64  `json:"created"`
	CaseFileTypeID int    `json:"caseFileTypeId"`
}

func (w caseFileWire) toModel() *CaseFile {
	return &CaseFile{
		ID:         w.ID,
		Title:      w.Title,
		Language:   w.Language,
		Status:     decodeStatus(caseFileStatusCodes, w.Status),
		CreatedAt:  decodeTime(w.Created),
		TemplateID: w.CaseFileTypeID,
	}
}

type documentWire struct {
	ID             int    `json:"id"`
	CaseFileID     int    `json:"caseFileId"`
	Title          string `json:"title"`
	Type           string `json:"type"`
	DocumentTypeID int    `json:"documentTypeId"`
	Status         int    `json:"status"`
	Created        int64  `json:"created"`
}

func (w documentWire) toModel() *Document {
	return &Document{
		ID:             w.ID,
		CaseFileID:     w.CaseFileID,
		Title:          w.Title,
		Signable:       w.Type == "signable",
		DocumentTypeID: w.DocumentTypeID,
		Status:         decodeStatus(caseFileStatusCodes, w.Status),
		CreatedAt:      decodeTime(w.Created),
	}
}

type signerWire struct {
	ID            int    `json:"id"`
	CaseFileID    int    `json:"caseFileId"`
	Name          string `json:"name"`
	OnBehalfOf    string `json:"onBehalfOf"`
	SignerTypeIDs []int  `json:"signerTypeIds"`
}

func (w signerWire) toModel() *Signer {
	return &Signer{
		ID:            w.ID,
		CaseFileID:    w.CaseFileID,
		Name:          w.Name,
		OnBehalfOf:    w.OnBehalfOf,
		SignerTypeIDs: w.SignerTypeIDs,
	}
}

type signingRequestWire struct {
	ID                    int    `json:"id"`
	SignerID              int    `json:"signerId"`
	Email                 string `json:"email"`
	EmailSubject          string `json:"emailSubject"`
	EmailText             string `json:"emailText"`
	ReminderEmailSubject  string `json:"reminderEmailSubject"`
	ReminderEmailText     string `json:"reminderEmailText"`
	ReminderInterval      int    `json:"reminderInterval"`
	EnableInsecureSigning bool   `json:"enableInsecureSigning"`
	Status                int    `json:"status"`
	RejectReason          string `json:"rejectReason"`
	Link                  string `json:"link"`
}

func (w signingRequestWire) toModel() *SigningRequest {
	return &SigningRequest{
		ID:                    w.ID,
		SignerID:              w.SignerID,
		Email:                 w.Email,
		EmailSubject:          w.EmailSubject,
		EmailText:             w.EmailText,
		ReminderEmailSubject:  w.ReminderEmailSubject,
		ReminderEmailText:     w.ReminderEmailText,
		ReminderInterval:      w.ReminderInterval,
		EnableInsecureSigning: w.EnableInsecureSigning,
		Status:                decodeStatus(signingRequestStatusCodes, w.Status),
		RejectReason:          w.RejectReason,
		Link:                  w.Link,
	}
}

type signatureLineWire struct {
	ID         int    `json:"id"`
	DocumentID int    `json:"documentId"`
	Role       string `json:"role"`
	SignerID   int    `json:"signerId"`
}

func (w signatureLineWire) toModel() SignatureLine {
	return SignatureLine{ID: w.ID, DocumentID: w.DocumentID, Role: w.Role, SignerID: w.SignerID}
}
