// Package esign is the typed boundary to the remote e-signature service.
//
// Client lists every remote capability the orchestration layer relies on.
// RESTClient implements it over HTTP; esigntest.Fake implements it in memory.
package esign

import "context"

type Client interface {
	FindCaseFile(ctx context.Context, id int) (*CaseFile, error)
	// PersistCaseFile creates the case file when its ID is zero and updates it
	// otherwise. ID, Status and CreatedAt are refreshed from the response.
	PersistCaseFile(ctx context.Context, cf *CaseFile) error
	DeleteCaseFile(ctx context.Context, id int) error
	SendCaseFile(ctx context.Context, id int) error
	CaseFileDocuments(ctx context.Context, caseFileID int) ([]Document, error)
	CaseFileSigners(ctx context.Context, caseFileID int) ([]Signer, error)
	CaseFileDocumentTypes(ctx context.Context, caseFileID int) ([]DocumentType, error)
	CaseFileSignerTypes(ctx context.Context, caseFileID int) ([]SignerType, error)
	CaseFileTemplates(ctx context.Context) ([]CaseFileTemplate, error)

	FindDocument(ctx context.Context, id int) (*Document, error)
	// PersistDocument uploads pdf with the document. A nil pdf updates
	// metadata only.
	PersistDocument(ctx context.Context, doc *Document, pdf []byte) error
	DeleteDocument(ctx context.Context, id int) error
	DocumentPDF(ctx context.Context, id int) ([]byte, error)

	PersistSigner(ctx context.Context, s *Signer) error
	DeleteSigner(ctx context.Context, id int) error
	AddSignerType(ctx context.Context, signerID, signerTypeID int) error
	SigningRequest(ctx context.Context, signerID int) (*SigningRequest, error)
	PersistSigningRequest(ctx context.Context, req *SigningRequest) error

	PersistSignatureLine(ctx context.Context, line *SignatureLine) error
	SetSignatureLineSigner(ctx context.Context, line *SignatureLine, signerID int) error
	SignatureLines(ctx context.Context, documentID int) ([]SignatureLine, error)

	Folders(ctx context.Context) ([]Folder, error)
	FindFolder(ctx context.Context, id int) (*Folder, error)
	FindFoldersByTitle(ctx context.Context, title string) ([]Folder, error)
	AddCaseFileToFolder(ctx context.Context, folderID, caseFileID int) error
}
