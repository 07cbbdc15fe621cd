package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/casefileflow/internal/config"
	"github.com/Lllllllleong/casefileflow/internal/gcp"
	"github.com/Lllllllleong/casefileflow/internal/models"
	"github.com/Lllllllleong/casefileflow/pkg/casefile"
)

const (
	StatusArchived = "ARCHIVED"
)

// ErrDocumentNotFound is returned when the requested document does not exist
// remotely.
var ErrDocumentNotFound = errors.New("document not found")

// ObjectStore writes objects that must never be overwritten.
type ObjectStore interface {
	PutIfAbsent(ctx context.Context, object string, data []byte) (uri string, created bool, err error)
}

// ArchiverFunction copies a document's current PDF into the archive bucket.
type ArchiverFunction struct {
	orchestrator *casefile.Orchestrator
	store        ObjectStore
}

func NewArchiver(ctx context.Context) (*ArchiverFunction, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.GCP.ArchiveBucket == "" {
		return nil, fmt.Errorf("ARCHIVE_BUCKET environment variable must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	orchestrator, err := newOrchestrator(cfg)
	if err != nil {
		return nil, err
	}
	return NewArchiverFunction(orchestrator, gcp.NewArchive(storageClient, cfg.GCP.ArchiveBucket)), nil
}

func NewArchiverFunction(orchestrator *casefile.Orchestrator, store ObjectStore) *ArchiverFunction {
	return &ArchiverFunction{orchestrator: orchestrator, store: store}
}

// Process writes <caseFileId>/<documentId>.pdf. An object that already exists
// is left alone and reported as skipped.
func (f *ArchiverFunction) Process(ctx context.Context, req models.ArchiveRequest) (*models.ArchiveResponse, error) {
	logCtx := slog.With("documentId", req.DocumentID, "executionId", req.ExecutionID)
	if req.DocumentID <= 0 {
		return nil, fmt.Errorf("invalid document id %d", req.DocumentID)
	}
	logCtx.Info("Starting archive.")

	h, err := f.orchestrator.OpenDocument(ctx, req.DocumentID)
	if err != nil {
		logCtx.Error("Failed to open document", "error", err)
		return nil, err
	}
	doc, ok := h.Element().Document()
	if !ok {
		logCtx.Warn("Document does not exist.")
		return nil, fmt.Errorf("document %d: %w", req.DocumentID, ErrDocumentNotFound)
	}

	pdf, err := h.Download(ctx)
	if err != nil {
		logCtx.Error("Failed to download document", "error", err)
		return nil, err
	}
	pages, err := casefile.ValidatePDF(pdf)
	if err != nil {
		logCtx.Error("Downloaded document is not a valid PDF", "error", err)
		return nil, err
	}

	object := fmt.Sprintf("%d/%d.pdf", doc.CaseFileID, doc.ID)
	uri, created, err := f.store.PutIfAbsent(ctx, object, pdf)
	if err != nil {
		logCtx.Error("Failed to archive document", "error", err, "gcsObject", object)
		return nil, err
	}

	status := StatusArchived
	if !created {
		status = StatusSkipped
	}
	logCtx.Info("Archive complete.", "gcsUri", uri, "status", status, "pageCount", pages)
	return &models.ArchiveResponse{Status: status, GCSUri: uri, PageCount: pages}, nil
}
