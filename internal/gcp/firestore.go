package gcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/casefileflow/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// Ledger keeps one CaseFileRecord per request in a Firestore collection.
type Ledger struct {
	client     *firestore.Client
	collection string
}

func NewLedger(client *firestore.Client, collection string) *Ledger {
	return &Ledger{client: client, collection: collection}
}

// LedgerDocID is the document id of the record for requestID. Hashing keeps
// arbitrary request ids within Firestore's id rules, and keying by request
// makes every redelivery land on the same record.
func LedgerDocID(requestID string) string {
	sum := sha256.Sum256([]byte(requestID))
	return hex.EncodeToString(sum[:])
}

// FindByRequestID returns the record created for requestID, or an empty id
// and nil record when there is none.
func (l *Ledger) FindByRequestID(ctx context.Context, requestID string) (string, *models.CaseFileRecord, error) {
	id := LedgerDocID(requestID)
	snap, err := l.client.Collection(l.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read ledger record for request %s: %w", requestID, err)
	}
	var rec models.CaseFileRecord
	if err := snap.DataTo(&rec); err != nil {
		return "", nil, fmt.Errorf("failed to decode ledger record %s: %w", id, err)
	}
	return id, &rec, nil
}

// Create stores rec under its request id, or under a generated id when the
// request has none.
func (l *Ledger) Create(ctx context.Context, rec models.CaseFileRecord) (string, error) {
	coll := l.client.Collection(l.collection)
	if rec.RequestID == "" {
		docRef, _, err := coll.Add(ctx, rec)
		if err != nil {
			return "", fmt.Errorf("failed to create ledger record: %w", err)
		}
		return docRef.ID, nil
	}
	id := LedgerDocID(rec.RequestID)
	if _, err := coll.Doc(id).Create(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to create ledger record for request %s: %w", rec.RequestID, err)
	}
	return id, nil
}

// UpdateStatus sets the status to state, plus any extra fields, on record id.
func (l *Ledger) UpdateStatus(ctx context.Context, id, state string, fields map[string]any) error {
	if _, err := l.client.Collection(l.collection).Doc(id).Update(ctx, statusUpdates(state, fields)); err != nil {
		return fmt.Errorf("failed to update ledger record %s to %s: %w", id, state, err)
	}
	return nil
}

// statusUpdates orders the field paths so writes are deterministic.
func statusUpdates(state string, fields map[string]any) []firestore.Update {
	updates := []firestore.Update{{Path: "status", Value: state}}
	paths := make([]string, 0, len(fields))
	for p := range fields {
		if p != "status" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	for _, p := range paths {
		updates = append(updates, firestore.Update{Path: p, Value: fields[p]})
	}
	return updates
}
