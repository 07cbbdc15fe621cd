package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/casefileflow/internal/config"
	"github.com/Lllllllleong/casefileflow/internal/gcp"
	"github.com/Lllllllleong/casefileflow/internal/models"
	"github.com/Lllllllleong/casefileflow/pkg/casefile"
	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

// StatusSkipped is reported for a request the ledger has already completed.
const StatusSkipped = "SKIPPED"

// Ledger records the progress of case file requests.
type Ledger interface {
	FindByRequestID(ctx context.Context, requestID string) (string, *models.CaseFileRecord, error)
	Create(ctx context.Context, rec models.CaseFileRecord) (string, error)
	UpdateStatus(ctx context.Context, id, status string, fields map[string]any) error
}

// WorkflowTrigger starts the follow-up workflow of a sent case file.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, argument any) (string, error)
}

type CaseFileSenderFunction struct {
	orchestrator *casefile.Orchestrator
	ledger       Ledger
	trigger      WorkflowTrigger
	now          func() time.Time
}

// NewCaseFileSender wires the function from the process configuration. The
// workflow trigger is only created when WORKFLOW_ID is set.
func NewCaseFileSender(ctx context.Context) (*CaseFileSenderFunction, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireProjectID(); err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	orchestrator, err := newOrchestrator(cfg, casefile.WithPDFSource(gcp.NewStorageSource(storageClient, casefile.FileSource{})))
	if err != nil {
		return nil, err
	}

	var trigger WorkflowTrigger
	if cfg.GCP.WorkflowID != "" {
		executionsClient, err := executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
		trigger = gcp.NewWorkflowTrigger(executionsClient, cfg.GCP.ProjectID, cfg.GCP.WorkflowLocation, cfg.GCP.WorkflowID)
	}

	f := NewCaseFileSenderFunction(orchestrator, gcp.NewLedger(firestoreClient, cfg.GCP.LedgerCollection), trigger)
	slog.Info("Case file sender initialized.", "collection", cfg.GCP.LedgerCollection, "workflowId", cfg.GCP.WorkflowID)
	return f, nil
}

// NewCaseFileSenderFunction assembles the function from its collaborators.
// trigger may be nil.
func NewCaseFileSenderFunction(orchestrator *casefile.Orchestrator, ledger Ledger, trigger WorkflowTrigger) *CaseFileSenderFunction {
	return &CaseFileSenderFunction{
		orchestrator: orchestrator,
		ledger:       ledger,
		trigger:      trigger,
		now:          time.Now,
	}
}

func newOrchestrator(cfg config.Config, opts ...casefile.Option) (*casefile.Orchestrator, error) {
	client, err := esign.NewRESTClient(cfg.ESign, esign.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to create e-sign client: %w", err)
	}
	opts = append(opts, casefile.WithConcurrency(cfg.Concurrency))
	return casefile.New(client, opts...), nil
}

// Process creates the requested case file, sends it unless DraftOnly is set,
// and hands it to the follow-up workflow. Every stage is recorded in the
// ledger. A redelivered request resumes its ledger record and case file; a
// case file that has left draft is never sent again.
func (f *CaseFileSenderFunction) Process(ctx context.Context, req models.CaseFileRequest) (*models.CaseFileResult, error) {
	logCtx := slog.With("requestId", req.RequestID, "title", req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("case file request %s has no title", req.RequestID)
	}
	logCtx.Info("Processing case file request.", "documentCount", len(req.Documents), "signerCount", len(req.Signers))

	var (
		ledgerID string
		prior    *models.CaseFileRecord
	)
	if req.RequestID != "" {
		id, rec, err := f.ledger.FindByRequestID(ctx, req.RequestID)
		if err != nil {
			logCtx.Error("Failed to check for duplicate", "error", err)
			return nil, err
		}
		ledgerID, prior = id, rec
	}

	switch {
	case prior == nil:
		id, err := f.ledger.Create(ctx, models.CaseFileRecord{
			RequestID:  req.RequestID,
			CaseFileID: req.CaseFileID,
			Title:      req.Title,
			Status:     models.StatusCreating,
			CreatedAt:  f.now(),
		})
		if err != nil {
			logCtx.Error("Failed to create ledger record", "error", err)
			return nil, err
		}
		ledgerID = id
		logCtx = logCtx.With("ledgerId", ledgerID)

	case f.isComplete(prior, req.DraftOnly):
		logCtx.Info("Duplicate request detected. Skipping.", "ledgerId", ledgerID, "caseFileId", prior.CaseFileID)
		return &models.CaseFileResult{
			Status:              StatusSkipped,
			LedgerID:            ledgerID,
			CaseFileID:          prior.CaseFileID,
			RemoteStatus:        prior.RemoteStatus,
			WorkflowExecutionID: prior.WorkflowExecutionID,
		}, nil

	case prior.Status == models.StatusSent:
		logCtx = logCtx.With("ledgerId", ledgerID, "caseFileId", prior.CaseFileID)
		logCtx.Info("Case file already sent. Retrying workflow hand-off.")
		result := &models.CaseFileResult{
			Status:       models.StatusSent,
			LedgerID:     ledgerID,
			CaseFileID:   prior.CaseFileID,
			RemoteStatus: prior.RemoteStatus,
		}
		return f.handOff(ctx, logCtx, result, prior.DocumentCount, prior.SignerCount)

	default:
		logCtx = logCtx.With("ledgerId", ledgerID)
		logCtx.Info("Resuming unfinished request.", "previousStatus", prior.Status, "caseFileId", prior.CaseFileID)
		if req.CaseFileID <= 0 {
			req.CaseFileID = prior.CaseFileID
		}
		if err := f.ledger.UpdateStatus(ctx, ledgerID, models.StatusCreating, map[string]any{"errorDetails": ""}); err != nil {
			logCtx.Error("Failed to reset ledger record", "error", err)
			return nil, err
		}
	}

	h, err := f.orchestrator.OpenCaseFile(ctx, req.CaseFileID)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, ledgerID, "failed to open case file", err, nil)
	}
	documents, signers := toInputs(req)

	// Sent by an earlier delivery whose ledger update did not land.
	if id, _ := h.Element().ID(); id > 0 {
		if status, _ := h.Status(); !status.IsDraft() {
			logCtx = logCtx.With("caseFileId", id)
			logCtx.Warn("Case file has already left draft. Not sending again.", "remoteStatus", status)
			result := &models.CaseFileResult{Status: models.StatusSent, LedgerID: ledgerID, CaseFileID: id, RemoteStatus: string(status)}
			fields := withRemote(countFields(id, len(documents), len(signers)), status)
			if err := f.ledger.UpdateStatus(ctx, ledgerID, models.StatusSent, fields); err != nil {
				logCtx.Error("Failed to update status to SENT", "error", err)
				return nil, err
			}
			return f.handOff(ctx, logCtx, result, len(documents), len(signers))
		}
	}

	created, err := h.Create(ctx, req.Title, documents, signers, createOptions(req)...)
	if err != nil {
		// Keep the case file id so a redelivery reuses the draft.
		var fields map[string]any
		if id, _ := h.Element().ID(); id > 0 {
			fields = map[string]any{"caseFileId": id}
		}
		return nil, f.handleError(ctx, logCtx, ledgerID, "failed to create case file", err, fields)
	}
	h = created

	caseFileID, _ := h.Element().ID()
	status, _ := h.Status()
	logCtx = logCtx.With("caseFileId", caseFileID)
	result := &models.CaseFileResult{
		Status:       models.StatusDraft,
		LedgerID:     ledgerID,
		CaseFileID:   caseFileID,
		RemoteStatus: string(status),
	}
	counts := countFields(caseFileID, len(documents), len(signers))
	if err := f.ledger.UpdateStatus(ctx, ledgerID, models.StatusDraft, withRemote(counts, status)); err != nil {
		return nil, f.handleError(ctx, logCtx, ledgerID, "failed to update status to DRAFT", err, nil)
	}
	if req.DraftOnly {
		logCtx.Info("Draft case file ready.")
		return result, nil
	}

	if _, err := h.Send(ctx); err != nil {
		return nil, f.handleError(ctx, logCtx, ledgerID, "failed to send case file", err, nil)
	}
	status, _ = h.Status()
	result.Status = models.StatusSent
	result.RemoteStatus = string(status)
	if err := f.ledger.UpdateStatus(ctx, ledgerID, models.StatusSent, withRemote(nil, status)); err != nil {
		return nil, f.handleError(ctx, logCtx, ledgerID, "failed to update status to SENT", err, nil)
	}
	logCtx.Info("Case file sent.", "remoteStatus", status)

	return f.handOff(ctx, logCtx, result, len(documents), len(signers))
}

// handOff starts the follow-up workflow for a sent case file. A failure is
// recorded as workflowError and the record stays SENT.
func (f *CaseFileSenderFunction) handOff(ctx context.Context, logCtx *slog.Logger, result *models.CaseFileResult, documentCount, signerCount int) (*models.CaseFileResult, error) {
	if f.trigger == nil {
		return result, nil
	}
	executionID, err := f.trigger.Trigger(ctx, countFields(result.CaseFileID, documentCount, signerCount))
	if err != nil {
		logCtx.Error("failed to trigger workflow execution", "error", err)
		triggerErr := fmt.Errorf("failed to trigger workflow execution: %w", err)
		if uerr := f.ledger.UpdateStatus(ctx, result.LedgerID, models.StatusSent, map[string]any{"workflowError": triggerErr.Error()}); uerr != nil {
			logCtx.Error("CRITICAL: Failed to record workflow error.", "updateError", uerr)
			return nil, errors.Join(triggerErr, uerr)
		}
		return nil, triggerErr
	}

	result.WorkflowExecutionID = executionID
	fields := map[string]any{"workflowExecutionId": executionID, "workflowError": ""}
	if err := f.ledger.UpdateStatus(ctx, result.LedgerID, models.StatusSent, fields); err != nil {
		logCtx.Error("Failed to record workflow execution", "error", err, "workflowExecutionId", executionID)
		return nil, fmt.Errorf("failed to record workflow execution: %w", err)
	}
	logCtx.Info("Hand-off to workflow complete.", "workflowExecutionId", executionID)
	return result, nil
}

// isComplete reports whether a ledger record already satisfies a request.
func (f *CaseFileSenderFunction) isComplete(rec *models.CaseFileRecord, draftOnly bool) bool {
	switch rec.Status {
	case models.StatusSent:
		return f.trigger == nil || rec.WorkflowExecutionID != ""
	case models.StatusDraft:
		return draftOnly
	default:
		return false
	}
}

func countFields(caseFileID, documentCount, signerCount int) map[string]any {
	return map[string]any{
		"caseFileId":    caseFileID,
		"documentCount": documentCount,
		"signerCount":   signerCount,
	}
}

func withRemote(fields map[string]any, status esign.Status) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["remoteStatus"] = string(status)
	return out
}

func toInputs(req models.CaseFileRequest) ([]casefile.DocumentInput, []casefile.SignerInput) {
	documents := make([]casefile.DocumentInput, 0, len(req.Documents))
	for _, d := range req.Documents {
		documents = append(documents, casefile.DocumentInput{
			Title:        d.Title,
			Filename:     d.Filename,
			DocumentType: d.DocumentType,
		})
	}
	signers := make([]casefile.SignerInput, 0, len(req.Signers))
	for _, s := range req.Signers {
		signers = append(signers, casefile.SignerInput{
			Name:             s.Name,
			Email:            s.Email,
			Representing:     s.Representing,
			ReminderInterval: s.ReminderInterval,
			SignerType:       s.SignerType,
		})
	}
	return documents, signers
}

func createOptions(req models.CaseFileRequest) []casefile.CreateOption {
	var opts []casefile.CreateOption
	if req.Language != "" {
		opts = append(opts, casefile.WithLanguage(req.Language))
	}
	switch {
	case req.TemplateID > 0:
		opts = append(opts, casefile.WithTemplate(casefile.RefID(req.TemplateID)))
	case req.TemplateName != "":
		opts = append(opts, casefile.WithTemplate(casefile.RefName(req.TemplateName)))
	}
	switch {
	case req.FolderID > 0:
		opts = append(opts, casefile.WithFolder(casefile.RefID(req.FolderID)))
	case req.FolderTitle != "":
		opts = append(opts, casefile.WithFolder(casefile.RefName(req.FolderTitle)))
	}
	return opts
}

// handleError logs the failure, marks the ledger record FAILED together with
// any extra fields, and returns an error that still wraps the original.
func (f *CaseFileSenderFunction) handleError(ctx context.Context, logCtx *slog.Logger, ledgerID, message string, originalErr error, fields map[string]any) error {
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	updates := map[string]any{"errorDetails": fullError.Error()}
	for k, v := range fields {
		updates[k] = v
	}
	if err := f.ledger.UpdateStatus(ctx, ledgerID, models.StatusFailed, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to update ledger status to FAILED after a processing error.", "updateError", err)
		return errors.Join(fullError, err)
	}
	return fullError
}
