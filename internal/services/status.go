package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/casefileflow/internal/config"
	"github.com/Lllllllleong/casefileflow/pkg/casefile"
)

// StatusFunction serves the rendered summary of a case file or a document.
type StatusFunction struct {
	orchestrator *casefile.Orchestrator
}

func NewStatus() (*StatusFunction, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	orchestrator, err := newOrchestrator(cfg)
	if err != nil {
		return nil, err
	}
	return NewStatusFunction(orchestrator), nil
}

func NewStatusFunction(orchestrator *casefile.Orchestrator) *StatusFunction {
	return &StatusFunction{orchestrator: orchestrator}
}

// ServeHTTP expects exactly one of ?caseFileId= or ?documentId=.
func (f *StatusFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rawCaseFile, rawDocument := query.Get("caseFileId"), query.Get("documentId")
	if (rawCaseFile == "") == (rawDocument == "") {
		http.Error(w, "Bad Request: exactly one of caseFileId or documentId is required", http.StatusBadRequest)
		return
	}

	param, raw := "caseFileId", rawCaseFile
	if rawDocument != "" {
		param, raw = "documentId", rawDocument
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		http.Error(w, fmt.Sprintf("Bad Request: %s must be a positive integer", param), http.StatusBadRequest)
		return
	}
	logCtx := slog.With(param, id)

	ctx := r.Context()
	var h *casefile.Handle
	if param == "caseFileId" {
		h, err = f.orchestrator.OpenCaseFile(ctx, id)
	} else {
		h, err = f.orchestrator.OpenDocument(ctx, id)
	}
	if err != nil {
		logCtx.Error("Failed to open resource", "error", err)
		http.Error(w, "Internal Server Error: lookup failed", http.StatusInternalServerError)
		return
	}

	summary, err := h.Summary(ctx)
	if errors.Is(err, casefile.ErrNoActiveResource) || (err == nil && summary.IsEmpty()) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		logCtx.Error("Failed to build summary", "error", err)
		http.Error(w, "Internal Server Error: summary failed", http.StatusInternalServerError)
		return
	}
	body, err := casefile.RenderJSON(summary)
	if err != nil {
		logCtx.Error("Failed to render summary", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		logCtx.Warn("Failed to write response", "error", err)
	}
}
