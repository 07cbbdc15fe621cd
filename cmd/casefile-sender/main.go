package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/Lllllllleong/casefileflow/internal/models"
	"github.com/Lllllllleong/casefileflow/internal/services"
)

var (
	senderInstance *services.CaseFileSenderFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("SendCaseFile", sendCaseFile)
}

// main is required by the Go Functions Framework.
func main() {}

// sendCaseFile handles a Pub/Sub message carrying a models.CaseFileRequest.
func sendCaseFile(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		senderInstance, initErr = services.NewCaseFileSender(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var msg models.PubSubMessage
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	var req models.CaseFileRequest
	if err := json.Unmarshal(msg.Message.Data, &req); err != nil {
		// Redelivering a malformed message cannot succeed.
		slog.Error("Failed to unmarshal case file request", "error", err, "messageId", msg.Message.MessageID)
		return nil
	}
	if req.RequestID == "" {
		req.RequestID = msg.Message.MessageID
	}

	_, err := senderInstance.Process(ctx, req)
	return err
}
