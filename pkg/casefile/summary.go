package casefile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

type DocumentEntry struct {
	ID      int          `json:"id"`
	Status  esign.Status `json:"status"`
	Title   string       `json:"title"`
	Created time.Time    `json:"created"`
}

type SignerEntry struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Status       esign.Status `json:"status"`
	RejectReason string       `json:"rejectReason"`
	Assets       string       `json:"assets"`
}

// DocumentMap is keyed by document id. An empty map encodes as [] to keep
// the established wire format.
type DocumentMap map[int]DocumentEntry

func (m DocumentMap) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(map[int]DocumentEntry(m))
}

// SignerMap is keyed by signer id and encodes like DocumentMap.
type SignerMap map[int]SignerEntry

func (m SignerMap) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(map[int]SignerEntry(m))
}

// Summary is the flattened view of a case file or document. Documents and
// Signers are only set for case files.
type Summary struct {
	ID        int
	Status    esign.Status
	Created   time.Time
	Title     string
	Documents DocumentMap
	Signers   SignerMap

	empty bool
}

// EmptySummary is returned for resources that have never been persisted.
// It encodes as false.
var EmptySummary = &Summary{empty: true}

func (s Summary) IsEmpty() bool { return s.empty }

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.empty {
		return []byte("false"), nil
	}
	out := struct {
		ID        int          `json:"id"`
		Status    esign.Status `json:"status"`
		Created   time.Time    `json:"created"`
		Title     string       `json:"title"`
		Documents *DocumentMap `json:"documents,omitempty"`
		Signers   *SignerMap   `json:"signers,omitempty"`
	}{
		ID:      s.ID,
		Status:  s.Status,
		Created: s.Created,
		Title:   s.Title,
	}
	if s.Documents != nil {
		out.Documents = &s.Documents
	}
	if s.Signers != nil {
		out.Signers = &s.Signers
	}
	return json.Marshal(out)
}

// Documents lists the case file's documents.
func (h *Handle) Documents(ctx context.Context) (DocumentMap, error) {
	cf, err := h.caseFile()
	if err != nil {
		return nil, err
	}
	out := make(DocumentMap)
	if cf.ID == 0 {
		return out, nil
	}
	docs, err := h.o.client.CaseFileDocuments(ctx, cf.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents of case file %d: %w", cf.ID, err)
	}
	for _, doc := range docs {
		out[doc.ID] = DocumentEntry{
			ID:      doc.ID,
			Status:  doc.Status,
			Title:   doc.Title,
			Created: doc.CreatedAt,
		}
	}
	return out, nil
}

// Signers lists the case file's signers together with their signing request
// state.
func (h *Handle) Signers(ctx context.Context) (SignerMap, error) {
	cf, err := h.caseFile()
	if err != nil {
		return nil, err
	}
	out := make(SignerMap)
	if cf.ID == 0 {
		return out, nil
	}
	signers, err := h.o.client.CaseFileSigners(ctx, cf.ID)
	if err != nil {
		return nil, fmt.Errorf("list signers of case file %d: %w", cf.ID, err)
	}
	for _, s := range signers {
		req, err := h.o.client.SigningRequest(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("get signing request of signer %d: %w", s.ID, err)
		}
		out[s.ID] = SignerEntry{
			ID:           s.ID,
			Name:         s.Name,
			Email:        req.Email,
			Status:       req.Status,
			RejectReason: req.RejectReason,
			Assets:       req.Link,
		}
	}
	return out, nil
}

// Summary flattens the bound resource. It returns EmptySummary when the
// resource has no id yet.
func (h *Handle) Summary(ctx context.Context) (*Summary, error) {
	id, err := h.element.ID()
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return EmptySummary, nil
	}

	s := &Summary{ID: id}
	s.Status, _ = h.element.Status()
	s.Title, _ = h.element.Title()
	s.Created, _ = h.element.CreatedAt()

	if h.element.Kind() == KindCaseFile {
		if s.Documents, err = h.Documents(ctx); err != nil {
			return nil, err
		}
		if s.Signers, err = h.Signers(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Render returns the summary as indented JSON followed by a newline.
func (h *Handle) Render(ctx context.Context) ([]byte, error) {
	s, err := h.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return RenderJSON(s)
}

// RenderJSON encodes v with four-space indentation, without HTML escaping,
// followed by a newline.
func RenderJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return buf.Bytes(), nil
}
