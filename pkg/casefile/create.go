package casefile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

const DefaultLanguage = "en"

// DefaultReminderInterval is used when SignerInput.ReminderInterval is nil.
const DefaultReminderInterval = 1

// Messages sent with every signing request. The {{...}} placeholders are
// filled in by the remote service.
var (
	RequestSubject  = "Document ready for signing: {{casefile.name}}"
	RequestText     = "Dear {{recipient.name}},\n\nPlease read and sign the following document(s):\n\n{{documents.list}}"
	ReminderSubject = "We are missing your signature."
	ReminderText    = "Dear {{recipient.name}},\n\nWe are still missing your signature."
)

// DocumentInput describes one PDF to attach.
type DocumentInput struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	// DocumentType indexes the case file's document types. Out of range
	// values leave the document unclassified.
	DocumentType int `json:"documentTypeId"`
}

// SignerInput describes one signer to attach.
type SignerInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Representing string `json:"representing"`
	// ReminderInterval is in days; nil means DefaultReminderInterval and 0
	// disables reminders.
	ReminderInterval *int `json:"reminderInterval,omitempty"`
	// SignerType indexes the case file's signer types. Out of range values
	// are ignored.
	SignerType int `json:"signerTypeId"`
}

// Days returns a pointer suitable for SignerInput.ReminderInterval.
func Days(n int) *int { return &n }

func (s SignerInput) reminderInterval() int {
	if s.ReminderInterval == nil {
		return DefaultReminderInterval
	}
	return *s.ReminderInterval
}

// Ref points at a template or folder by id or by exact name.
type Ref struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func RefID(id int) Ref       { return Ref{ID: id} }
func RefName(name string) Ref { return Ref{Name: name} }

func (r Ref) IsZero() bool { return r.ID <= 0 && r.Name == "" }

type createSettings struct {
	language string
	template Ref
	folder   Ref
}

type CreateOption func(*createSettings)

func WithLanguage(lang string) CreateOption {
	return func(s *createSettings) {
		if lang != "" {
			s.language = lang
		}
	}
}

func WithTemplate(ref Ref) CreateOption {
	return func(s *createSettings) { s.template = ref }
}

func WithFolder(ref Ref) CreateOption {
	return func(s *createSettings) { s.folder = ref }
}

// Create sets up the case file with the given documents and signers,
// replacing whatever documents and signers it had, and attaches one signature
// line per (document, signer) pair. A failing step aborts the call and leaves
// the remote case file as the previous step left it.
func (h *Handle) Create(ctx context.Context, title string, documents []DocumentInput, signers []SignerInput, opts ...CreateOption) (*Handle, error) {
	cf, err := h.caseFile()
	if err != nil {
		return nil, err
	}
	if cf.ID > 0 && !cf.Status.IsDraft() {
		return nil, fmt.Errorf("case file %d is %s: %w", cf.ID, cf.Status, ErrNotDraft)
	}

	settings := createSettings{language: DefaultLanguage}
	for _, opt := range opts {
		opt(&settings)
	}
	logCtx := h.o.logger.With("title", title)

	pdfs, err := h.o.loadPDFs(ctx, documents)
	if err != nil {
		logCtx.Error("Failed to load documents", "caseFileId", cf.ID, "error", err)
		return nil, err
	}

	cf.Title = title
	cf.Language = settings.language
	if err := h.o.client.PersistCaseFile(ctx, cf); err != nil {
		return nil, fmt.Errorf("persist case file: %w", err)
	}
	logCtx = logCtx.With("caseFileId", cf.ID)
	logCtx.Info("Case file persisted.")

	if !settings.template.IsZero() {
		tpl, err := h.o.resolveTemplate(ctx, settings.template)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			logCtx.Warn("Template not found, skipping.", "template", settings.template)
		} else if _, err := h.SetTemplate(*tpl); err != nil {
			return nil, err
		}
	}

	if !settings.folder.IsZero() {
		folder, err := h.o.resolveFolder(ctx, settings.folder)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			logCtx.Warn("Folder not found, skipping.", "folder", settings.folder)
		} else if _, err := h.SetFolder(ctx, *folder); err != nil {
			return nil, err
		}
	}

	if err := h.purge(ctx, cf); err != nil {
		return nil, err
	}

	if err := h.o.client.PersistCaseFile(ctx, cf); err != nil {
		return nil, fmt.Errorf("persist case file %d: %w", cf.ID, err)
	}

	if err := h.addDocuments(ctx, cf, documents, pdfs); err != nil {
		return nil, err
	}
	if err := h.addSigners(ctx, cf, signers); err != nil {
		return nil, err
	}

	lines, err := h.attachSignatureLines(ctx, cf)
	if err != nil {
		return nil, err
	}
	logCtx.Info("Case file created.", "documentCount", len(documents), "signerCount", len(signers), "signatureLineCount", lines)
	return h, nil
}

// purge deletes every document and signer currently on the case file.
func (h *Handle) purge(ctx context.Context, cf *esign.CaseFile) error {
	docs, err := h.o.client.CaseFileDocuments(ctx, cf.ID)
	if err != nil {
		return fmt.Errorf("list documents of case file %d: %w", cf.ID, err)
	}
	for _, doc := range docs {
		if err := h.o.client.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document %d: %w", doc.ID, err)
		}
	}
	signers, err := h.o.client.CaseFileSigners(ctx, cf.ID)
	if err != nil {
		return fmt.Errorf("list signers of case file %d: %w", cf.ID, err)
	}
	for _, s := range signers {
		if err := h.o.client.DeleteSigner(ctx, s.ID); err != nil {
			return fmt.Errorf("delete signer %d: %w", s.ID, err)
		}
	}
	if len(docs) > 0 || len(signers) > 0 {
		h.o.logger.Info("Removed previous documents and signers.", "caseFileId", cf.ID, "documentCount", len(docs), "signerCount", len(signers))
	}
	return nil
}

// SetTemplate binds tpl to the case file. It is stored on the next persist.
func (h *Handle) SetTemplate(tpl esign.CaseFileTemplate) (*Handle, error) {
	cf, err := h.caseFile()
	if err != nil {
		return nil, err
	}
	cf.TemplateID = tpl.ID
	return h, nil
}

// SetFolder adds the persisted case file to folder.
func (h *Handle) SetFolder(ctx context.Context, folder esign.Folder) (*Handle, error) {
	cf, err := h.persistedCaseFile()
	if err != nil {
		return nil, err
	}
	if err := h.o.client.AddCaseFileToFolder(ctx, folder.ID, cf.ID); err != nil {
		return nil, fmt.Errorf("add case file %d to folder %d: %w", cf.ID, folder.ID, err)
	}
	return h, nil
}

// AddDocuments loads, validates and attaches documents in order.
func (h *Handle) AddDocuments(ctx context.Context, documents []DocumentInput) (*Handle, error) {
	cf, err := h.persistedCaseFile()
	if err != nil {
		return nil, err
	}
	pdfs, err := h.o.loadPDFs(ctx, documents)
	if err != nil {
		return nil, err
	}
	if err := h.addDocuments(ctx, cf, documents, pdfs); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) AddDocument(ctx context.Context, doc DocumentInput) (*Handle, error) {
	return h.AddDocuments(ctx, []DocumentInput{doc})
}

func (h *Handle) addDocuments(ctx context.Context, cf *esign.CaseFile, documents []DocumentInput, pdfs [][]byte) error {
	if len(documents) == 0 {
		return nil
	}
	types, err := h.o.client.CaseFileDocumentTypes(ctx, cf.ID)
	if err != nil {
		return fmt.Errorf("list document types of case file %d: %w", cf.ID, err)
	}
	for i, in := range documents {
		doc := &esign.Document{
			CaseFileID: cf.ID,
			Title:      in.Title,
			PDFPath:    in.Filename,
		}
		doc.MakeSignable()
		if in.DocumentType >= 0 && in.DocumentType < len(types) {
			doc.DocumentTypeID = types[in.DocumentType].ID
		}
		if err := h.o.client.PersistDocument(ctx, doc, pdfs[i]); err != nil {
			return fmt.Errorf("persist document %q: %w", in.Title, err)
		}
	}
	return nil
}

// AddSigners attaches signers in order and configures their signing
// requests.
func (h *Handle) AddSigners(ctx context.Context, signers []SignerInput) (*Handle, error) {
	cf, err := h.persistedCaseFile()
	if err != nil {
		return nil, err
	}
	if err := h.addSigners(ctx, cf, signers); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) AddSigner(ctx context.Context, signer SignerInput) (*Handle, error) {
	return h.AddSigners(ctx, []SignerInput{signer})
}

func (h *Handle) addSigners(ctx context.Context, cf *esign.CaseFile, signers []SignerInput) error {
	if len(signers) == 0 {
		return nil
	}
	types, err := h.o.client.CaseFileSignerTypes(ctx, cf.ID)
	if err != nil {
		return fmt.Errorf("list signer types of case file %d: %w", cf.ID, err)
	}
	for _, in := range signers {
		if err := h.addSigner(ctx, cf, types, in); err != nil {
			return fmt.Errorf("signer %q: %w", in.Name, err)
		}
	}
	return nil
}

func (h *Handle) addSigner(ctx context.Context, cf *esign.CaseFile, types []esign.SignerType, in SignerInput) error {
	signer := &esign.Signer{
		CaseFileID: cf.ID,
		Name:       in.Name,
		OnBehalfOf: in.Representing,
	}
	if err := h.o.client.PersistSigner(ctx, signer); err != nil {
		return fmt.Errorf("persist signer: %w", err)
	}
	if in.SignerType >= 0 && in.SignerType < len(types) {
		if err := h.o.client.AddSignerType(ctx, signer.ID, types[in.SignerType].ID); err != nil {
			return fmt.Errorf("add signer type: %w", err)
		}
	}

	req, err := h.o.client.SigningRequest(ctx, signer.ID)
	if err != nil {
		return fmt.Errorf("get signing request: %w", err)
	}
	req.Email = strings.TrimSpace(in.Email)
	req.EmailSubject = RequestSubject
	req.EmailText = RequestText
	if interval := in.reminderInterval(); interval != 0 {
		req.ReminderInterval = interval
		req.ReminderEmailSubject = ReminderSubject
		req.ReminderEmailText = ReminderText
	}
	req.EnableInsecureSigning = true
	if err := h.o.client.PersistSigningRequest(ctx, req); err != nil {
		return fmt.Errorf("persist signing request: %w", err)
	}
	return nil
}

// attachSignatureLines binds every current signer to every current document
// and returns the number of lines created.
func (h *Handle) attachSignatureLines(ctx context.Context, cf *esign.CaseFile) (int, error) {
	docs, err := h.o.client.CaseFileDocuments(ctx, cf.ID)
	if err != nil {
		return 0, fmt.Errorf("list documents of case file %d: %w", cf.ID, err)
	}
	signers, err := h.o.client.CaseFileSigners(ctx, cf.ID)
	if err != nil {
		return 0, fmt.Errorf("list signers of case file %d: %w", cf.ID, err)
	}

	count := 0
	for _, doc := range docs {
		for _, signer := range signers {
			line := &esign.SignatureLine{DocumentID: doc.ID, Role: esign.SignatureRole}
			if err := h.o.client.PersistSignatureLine(ctx, line); err != nil {
				return count, fmt.Errorf("persist signature line for document %d: %w", doc.ID, err)
			}
			if err := h.o.client.SetSignatureLineSigner(ctx, line, signer.ID); err != nil {
				return count, fmt.Errorf("bind signer %d to signature line %d: %w", signer.ID, line.ID, err)
			}
			count++
		}
	}
	return count, nil
}

func (o *Orchestrator) resolveTemplate(ctx context.Context, ref Ref) (*esign.CaseFileTemplate, error) {
	if ref.ID > 0 {
		return o.TemplateByID(ctx, ref.ID)
	}
	return o.TemplateByName(ctx, ref.Name)
}

func (o *Orchestrator) resolveFolder(ctx context.Context, ref Ref) (*esign.Folder, error) {
	if ref.ID > 0 {
		return o.FolderByID(ctx, ref.ID)
	}
	return o.FolderByTitle(ctx, ref.Name)
}

// LogValue keeps refs readable in structured logs.
func (r Ref) LogValue() slog.Value {
	if r.ID > 0 {
		return slog.IntValue(r.ID)
	}
	return slog.StringValue(r.Name)
}
