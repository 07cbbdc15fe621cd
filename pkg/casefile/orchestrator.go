// Package casefile orchestrates signing envelopes on the remote e-signature
// service: it opens or creates a case file, replaces its documents and
// signers, wires a signature line between every document and every signer,
// and sends it. It also flattens case files and documents into the summary
// records other services consume.
//
// All remote work goes through an esign.Client; the package keeps no state
// beyond the resource a Handle is bound to.
package casefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

const defaultConcurrency = 4

// Orchestrator holds the collaborators shared by every Handle it opens.
type Orchestrator struct {
	client      esign.Client
	logger      *slog.Logger
	source      PDFSource
	concurrency int
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPDFSource replaces the local filesystem as the origin of document
// files.
func WithPDFSource(source PDFSource) Option {
	return func(o *Orchestrator) {
		if source != nil {
			o.source = source
		}
	}
}

// WithConcurrency bounds how many PDFs are loaded at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func New(client esign.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:      client,
		logger:      slog.Default(),
		source:      FileSource{},
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle is bound to one Element and carries out operations on it.
type Handle struct {
	o       *Orchestrator
	element Element
}

// Element returns the resource the handle is bound to.
func (h *Handle) Element() Element { return h.element }

// OpenCaseFile returns a handle on case file id. A non-positive id, or an id
// the remote service does not know, yields a new unsaved case file. Any other
// lookup failure is returned.
func (o *Orchestrator) OpenCaseFile(ctx context.Context, id int) (*Handle, error) {
	if id <= 0 {
		return &Handle{o: o, element: CaseFileElement(&esign.CaseFile{})}, nil
	}
	cf, err := o.client.FindCaseFile(ctx, id)
	if errors.Is(err, esign.ErrNotFound) {
		o.logger.Warn("Case file not found, starting a new one.", "caseFileId", id)
		return &Handle{o: o, element: CaseFileElement(&esign.CaseFile{})}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find case file %d: %w", id, err)
	}
	return &Handle{o: o, element: CaseFileElement(cf)}, nil
}

// OpenDocument returns a handle on document id, or a handle bound to nothing
// when the document does not exist.
func (o *Orchestrator) OpenDocument(ctx context.Context, id int) (*Handle, error) {
	if id <= 0 {
		return &Handle{o: o}, nil
	}
	doc, err := o.client.FindDocument(ctx, id)
	if errors.Is(err, esign.ErrNotFound) {
		o.logger.Info("Document not found.", "documentId", id)
		return &Handle{o: o}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document %d: %w", id, err)
	}
	return &Handle{o: o, element: DocumentElement(doc)}, nil
}

func (h *Handle) caseFile() (*esign.CaseFile, error) {
	switch h.element.Kind() {
	case KindCaseFile:
		cf, _ := h.element.CaseFile()
		return cf, nil
	case KindDocument:
		return nil, ErrNotCaseFile
	default:
		return nil, ErrNoActiveResource
	}
}

func (h *Handle) persistedCaseFile() (*esign.CaseFile, error) {
	cf, err := h.caseFile()
	if err != nil {
		return nil, err
	}
	if cf.ID == 0 {
		return nil, ErrNotPersisted
	}
	return cf, nil
}

func (h *Handle) Status() (esign.Status, error) { return h.element.Status() }

func (h *Handle) Title() (string, error) { return h.element.Title() }

// Send starts the signing workflow for a case file. Handles bound to anything
// else are returned unchanged.
func (h *Handle) Send(ctx context.Context) (*Handle, error) {
	if h.element.Kind() != KindCaseFile {
		return h, nil
	}
	cf, err := h.persistedCaseFile()
	if err != nil {
		return nil, err
	}
	if err := h.o.client.SendCaseFile(ctx, cf.ID); err != nil {
		return nil, fmt.Errorf("send case file %d: %w", cf.ID, err)
	}
	refreshed, err := h.o.client.FindCaseFile(ctx, cf.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh case file %d: %w", cf.ID, err)
	}
	*cf = *refreshed
	h.o.logger.Info("Case file sent.", "caseFileId", cf.ID, "status", cf.Status)
	return h, nil
}

// Delete removes the case file remotely. The workflow state is not checked.
func (h *Handle) Delete(ctx context.Context) error {
	cf, err := h.persistedCaseFile()
	if err != nil {
		return err
	}
	if err := h.o.client.DeleteCaseFile(ctx, cf.ID); err != nil {
		return fmt.Errorf("delete case file %d: %w", cf.ID, err)
	}
	h.o.logger.Info("Case file deleted.", "caseFileId", cf.ID)
	return nil
}

// Download returns the current PDF of a document handle.
func (h *Handle) Download(ctx context.Context) ([]byte, error) {
	doc, ok := h.element.Document()
	if !ok {
		if h.element.Kind() == KindNone {
			return nil, ErrNoActiveResource
		}
		return nil, ErrNotDocument
	}
	pdf, err := h.o.client.DocumentPDF(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("download document %d: %w", doc.ID, err)
	}
	return pdf, nil
}
