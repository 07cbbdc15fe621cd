package esign

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
	WSSE   string
	Auth   string
}

// newTestServer serves canned JSON per "METHOD /path" and records requests.
func newTestServer(t *testing.T, routes map[string]any) (*RESTClient, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			WSSE:   r.Header.Get("X-WSSE"),
			Auth:   r.Header.Get("Authorization"),
		}
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		if status, ok := resp.(int); ok {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client, err := NewRESTClient(Config{APIKey: "key", APISecret: "secret", Host: srv.URL})
	require.NoError(t, err)
	return client, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestConfig(t *testing.T) {
	assert.Equal(t, "https://sandbox.esign.test", Config{Host: "sandbox.esign.test/"}.BaseURL())
	assert.Equal(t, "http://localhost:8080/api", Config{Host: "http://localhost:8080/api"}.BaseURL())

	assert.Error(t, Config{APISecret: "s", Host: "h"}.Validate())
	assert.Error(t, Config{APIKey: "k", Host: "h"}.Validate())
	assert.Error(t, Config{APIKey: "k", APISecret: "s"}.Validate())
	assert.NoError(t, Config{APIKey: "k", APISecret: "s", Host: "h"}.Validate())

	_, err := NewRESTClient(Config{})
	assert.Error(t, err)
}

func TestFindCaseFile_DecodesWireFormatAndAuthenticates(t *testing.T) {
	client, requests := newTestServer(t, map[string]any{
		"GET /casefiles/42": map[string]any{
			"id": 42, "title": "Contract", "language": "en", "status": 1, "created": 1700000000, "caseFileTypeId": 7,
		},
	})

	cf, err := client.FindCaseFile(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, &CaseFile{
		ID:         42,
		Title:      "Contract",
		Language:   "en",
		Status:     StatusPending,
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
		TemplateID: 7,
	}, cf)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, `WSSE profile="UsernameToken"`, reqs[0].Auth)

	m := regexp.MustCompile(`^UsernameToken Username="key", PasswordDigest="([^"]+)", Nonce="([^"]+)", Created="([^"]+)"$`).FindStringSubmatch(reqs[0].WSSE)
	require.NotNil(t, m, "unexpected X-WSSE header %q", reqs[0].WSSE)
	nonce, err := base64.StdEncoding.DecodeString(m[2])
	require.NoError(t, err)
	assert.Equal(t, passwordDigest(string(nonce), m[3], "secret"), m[1])
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	client, _ := newTestServer(t, nil)

	_, err := client.FindDocument(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/documents/9", apiErr.Path)
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	client, _ := newTestServer(t, map[string]any{
		"PATCH /casefiles/3/send": http.StatusInternalServerError,
	})

	err := client.SendCaseFile(context.Background(), 3)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPersistCaseFile_CreatesThenUpdates(t *testing.T) {
	client, requests := newTestServer(t, map[string]any{
		"POST /casefiles":  map[string]any{"id": 5, "title": "Draft", "language": "en", "status": 0, "created": 1700000000},
		"PUT /casefiles/5": map[string]any{"id": 5, "title": "Final", "language": "da", "status": 0, "created": 1700000000, "caseFileTypeId": 7},
	})
	ctx := context.Background()

	cf := &CaseFile{Title: "Draft", Language: "en"}
	require.NoError(t, client.PersistCaseFile(ctx, cf))
	assert.Equal(t, 5, cf.ID)
	assert.Equal(t, StatusNew, cf.Status)

	cf.Title, cf.Language, cf.TemplateID = "Final", "da", 7
	require.NoError(t, client.PersistCaseFile(ctx, cf))
	assert.Equal(t, "Final", cf.Title)
	assert.Equal(t, 7, cf.TemplateID)

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, map[string]any{"title": "Draft", "language": "en"}, reqs[0].Body)
	assert.Equal(t, map[string]any{"title": "Final", "language": "da", "caseFileTypeId": float64(7)}, reqs[1].Body)
}

func TestPersistDocument_UploadsBase64PDF(t *testing.T) {
	client, requests := newTestServer(t, map[string]any{
		"POST /documents": map[string]any{"id": 8, "caseFileId": 5, "title": "Invoice", "type": "signable", "status": 0, "created": 1700000000},
	})

	doc := &Document{CaseFileID: 5, Title: "Invoice", PDFPath: "/tmp/a.pdf", DocumentTypeID: 11}
	doc.MakeSignable()
	require.NoError(t, client.PersistDocument(context.Background(), doc, []byte("%PDF-1.4")))

	assert.Equal(t, 8, doc.ID)
	assert.True(t, doc.Signable)
	assert.Equal(t, "/tmp/a.pdf", doc.PDFPath)

	body := requests()[0].Body
	assert.Equal(t, "signable", body["type"])
	assert.Equal(t, float64(11), body["documentTypeId"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), body["pdfFile"])
}

func TestSigningRequestRoundTrip(t *testing.T) {
	client, requests := newTestServer(t, map[string]any{
		"GET /signers/4/signingrequests": map[string]any{"id": 40, "status": 0, "link": "https://sign/40"},
		"PUT /signingrequests/40":        map[string]any{"id": 40, "signerId": 4, "email": "a@x.com", "reminderInterval": 2, "enableInsecureSigning": true, "status": 0},
	})
	ctx := context.Background()

	req, err := client.SigningRequest(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, req.SignerID)
	assert.Equal(t, "https://sign/40", req.Link)

	req.Email = "a@x.com"
	req.ReminderInterval = 2
	req.EnableInsecureSigning = true
	require.NoError(t, client.PersistSigningRequest(ctx, req))
	assert.Equal(t, "a@x.com", req.Email)

	body := requests()[1].Body
	assert.Equal(t, true, body["enableInsecureSigning"])
	assert.Equal(t, float64(2), body["reminderInterval"])

	assert.Error(t, client.PersistSigningRequest(ctx, &SigningRequest{SignerID: 4}))
}

func TestSignatureLines(t *testing.T) {
	client, requests := newTestServer(t, map[string]any{
		"POST /documents/8/signaturelines":            map[string]any{"id": 80, "role": "Signer"},
		"PUT /documents/8/signaturelines/80/signers/4": http.StatusNoContent,
		"GET /documents/8/signaturelines":             []map[string]any{{"id": 80, "documentId": 8, "role": "Signer", "signerId": 4}},
	})
	ctx := context.Background()

	line := &SignatureLine{DocumentID: 8, Role: SignatureRole}
	require.NoError(t, client.PersistSignatureLine(ctx, line))
	assert.Equal(t, 80, line.ID)
	assert.Equal(t, 8, line.DocumentID)

	require.NoError(t, client.SetSignatureLineSigner(ctx, line, 4))
	assert.Equal(t, 4, line.SignerID)

	lines, err := client.SignatureLines(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []SignatureLine{{ID: 80, DocumentID: 8, Role: "Signer", SignerID: 4}}, lines)

	assert.Equal(t, map[string]any{"role": "Signer"}, requests()[0].Body)
}

func TestDocumentPDF_DecodesBase64(t *testing.T) {
	client, _ := newTestServer(t, map[string]any{
		"GET /documents/8/content": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 body")),
	})
	content, err := client.DocumentPDF(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 body"), content)
}

func TestFindFoldersByTitle_EncodesQuery(t *testing.T) {
	client, requests := newTestServer(t, map[string]any{
		"GET /folders": []map[string]any{{"id": 5, "title": "Q1 & Q2"}},
	})
	folders, err := client.FindFoldersByTitle(context.Background(), "Q1 & Q2")
	require.NoError(t, err)
	assert.Equal(t, []Folder{{ID: 5, Title: "Q1 & Q2"}}, folders)
	assert.Equal(t, "title=Q1+%26+Q2", requests()[0].Query)
}

func TestUnknownStatusCodeIsPreserved(t *testing.T) {
	assert.Equal(t, StatusFailed, decodeStatus(signingRequestStatusCodes, 5))
	assert.Equal(t, Status("unknown(42)"), decodeStatus(caseFileStatusCodes, 42))
	assert.True(t, StatusNew.IsDraft())
	assert.False(t, StatusPending.IsDraft())
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewRESTClient(Config{APIKey: "k", APISecret: "s", Host: srv.URL, RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = client.Folders(context.Background())
	require.NoError(t, err, "first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Folders(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestPersist_EmptyUpdateResponseKeepsLocalState(t *testing.T) {
	client, _ := newTestServer(t, map[string]any{
		"PUT /casefiles/5": http.StatusNoContent,
		"PUT /documents/8": http.StatusNoContent,
		"PUT /signers/9":   http.StatusNoContent,
		"POST /signers":    http.StatusNoContent,
	})
	ctx := context.Background()
	created := time.Unix(1700000000, 0).UTC()

	cf := &CaseFile{ID: 5, Title: "Lease", Language: "da", Status: StatusNew, CreatedAt: created, TemplateID: 7}
	want := *cf
	require.NoError(t, client.PersistCaseFile(ctx, cf))
	assert.Equal(t, want, *cf)

	doc := &Document{ID: 8, CaseFileID: 5, Title: "Contract", PDFPath: "/tmp/a.pdf", Signable: true, DocumentTypeID: 11, CreatedAt: created}
	wantDoc := *doc
	require.NoError(t, client.PersistDocument(ctx, doc, nil))
	assert.Equal(t, wantDoc, *doc)

	signer := &Signer{ID: 9, CaseFileID: 5, Name: "Alice", OnBehalfOf: "Acme"}
	require.NoError(t, client.PersistSigner(ctx, signer))
	assert.Equal(t, Signer{ID: 9, CaseFileID: 5, Name: "Alice", OnBehalfOf: "Acme"}, *signer)

	// A create must come back with an id.
	err := client.PersistSigner(ctx, &Signer{CaseFileID: 5, Name: "Bob"})
	assert.ErrorContains(t, err, "returned no entity id")
}
