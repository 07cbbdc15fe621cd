package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/casefileflow/internal/models"
	"github.com/Lllllllleong/casefileflow/internal/services"
)

var (
	archiverInstance *services.ArchiverFunction
	once             sync.Once
	initErr          error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	// "ArchiveDocument" is the entry point name the workflow calls.
	functions.HTTP("ArchiveDocument", archiveDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func archiveDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		archiverInstance, initErr = services.NewArchiver(context.Background())
	})
	if initErr != nil {
		slog.Error("Archiver initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := archiverInstance.Process(r.Context(), req)
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		http.Error(w, "Not Found: document does not exist", http.StatusNotFound)
		return
	case err != nil:
		// The specific error is already logged inside the Process method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
