package casefile_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/casefileflow/pkg/casefile"
	"github.com/Lllllllleong/casefileflow/pkg/esign"
	"github.com/Lllllllleong/casefileflow/pkg/esign/esigntest"
)

var standardTemplate = esign.CaseFileTemplate{
	ID:   7,
	Name: "Standard",
	DocumentTypes: []esign.DocumentType{
		{
			ID:   11,
			Name: "Contract",
			SignerTypes: []esign.SignerType{
				{ID: 21, Name: "Buyer"},
				{ID: 22, Name: "Seller"},
			},
		},
		{ID: 12, Name: "Appendix"},
	},
}

func newOrchestrator(t *testing.T) (*casefile.Orchestrator, *esigntest.Fake) {
	t.Helper()
	fake := esigntest.NewFake()
	fake.AddTemplate(standardTemplate)
	fake.AddFolder(esign.Folder{ID: 5, Title: "Contracts"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return casefile.New(fake, casefile.WithLogger(logger)), fake
}

func openNew(t *testing.T, o *casefile.Orchestrator) *casefile.Handle {
	t.Helper()
	h, err := o.OpenCaseFile(context.Background(), 0)
	require.NoError(t, err)
	return h
}

func caseFileID(t *testing.T, h *casefile.Handle) int {
	t.Helper()
	id, err := h.Element().ID()
	require.NoError(t, err)
	return id
}

func TestCreate_AttachesOneSignatureLinePerDocumentSignerPair(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	docs := []casefile.DocumentInput{
		{Title: "Contract", Filename: pdf},
		{Title: "Appendix", Filename: pdf},
	}
	signers := []casefile.SignerInput{
		{Name: "Alice", Email: "a@x.com", Representing: "Acme"},
		{Name: "Bob", Email: "b@x.com", Representing: "Acme"},
		{Name: "Carol", Email: "c@x.com", Representing: "Globex"},
	}

	h, err := openNew(t, o).Create(ctx, "Contract", docs, signers)
	require.NoError(t, err)

	lines := fake.SignatureLinesFor(caseFileID(t, h))
	require.Len(t, lines, len(docs)*len(signers))

	pairs := make(map[[2]int]bool)
	for _, line := range lines {
		assert.Equal(t, "Signer", line.Role)
		assert.NotZero(t, line.SignerID)
		pairs[[2]int{line.DocumentID, line.SignerID}] = true
	}
	assert.Len(t, pairs, len(lines), "every (document, signer) pair appears once")
}

func TestCreate_ReplacesPreviousDocumentsAndSigners(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	first, err := openNew(t, o).Create(ctx, "Draft",
		[]casefile.DocumentInput{{Title: "Old", Filename: pdf}},
		[]casefile.SignerInput{{Name: "Old Signer", Email: "old@x.com"}},
	)
	require.NoError(t, err)
	id := caseFileID(t, first)

	oldDocs, err := first.Documents(ctx)
	require.NoError(t, err)
	oldSigners, err := first.Signers(ctx)
	require.NoError(t, err)
	require.Len(t, oldDocs, 1)
	require.Len(t, oldSigners, 1)

	reopened, err := o.OpenCaseFile(ctx, id)
	require.NoError(t, err)
	_, err = reopened.Create(ctx, "Final",
		[]casefile.DocumentInput{{Title: "New", Filename: pdf}},
		[]casefile.SignerInput{{Name: "New Signer", Email: "new@x.com"}},
	)
	require.NoError(t, err)
	assert.Equal(t, id, caseFileID(t, reopened))

	newDocs, err := reopened.Documents(ctx)
	require.NoError(t, err)
	newSigners, err := reopened.Signers(ctx)
	require.NoError(t, err)
	require.Len(t, newDocs, 1)
	require.Len(t, newSigners, 1)
	for oldID := range oldDocs {
		assert.NotContains(t, newDocs, oldID)
	}
	for oldID := range oldSigners {
		assert.NotContains(t, newSigners, oldID)
	}
	assert.Len(t, fake.SignatureLinesFor(id), 1)

	title, err := reopened.Title()
	require.NoError(t, err)
	assert.Equal(t, "Final", title)
}

func TestSummary_EmptyOnlyBeforePersist(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	h := openNew(t, o)
	summary, err := h.Summary(ctx)
	require.NoError(t, err)
	assert.Same(t, casefile.EmptySummary, summary)

	out, err := h.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "false\n", string(out))

	_, err = h.Create(ctx, "Empty", nil, nil)
	require.NoError(t, err)
	summary, err = h.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, summary.IsEmpty())
	assert.Equal(t, "Empty", summary.Title)
	assert.Equal(t, esign.StatusNew, summary.Status)
}

func TestAddDocument_TypeIndexOutOfRangeIsIgnored(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	h, err := openNew(t, o).Create(ctx, "Typed", nil, nil, casefile.WithTemplate(casefile.RefID(7)))
	require.NoError(t, err)

	tests := []struct {
		name  string
		index int
		want  int
	}{
		{name: "first", index: 0, want: 11},
		{name: "last", index: 1, want: 12},
		{name: "equal to count", index: 2, want: 0},
		{name: "negative", index: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.AddDocument(ctx, casefile.DocumentInput{Title: tt.name, Filename: pdf, DocumentType: tt.index})
			require.NoError(t, err)
		})
	}

	docs, err := h.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, len(tests))

	byTitle := make(map[string]int)
	for id := range docs {
		d, err := o.OpenDocument(ctx, id)
		require.NoError(t, err)
		doc, ok := d.Element().Document()
		require.True(t, ok)
		byTitle[doc.Title] = doc.DocumentTypeID
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, byTitle[tt.name], tt.name)
	}
}

func TestAddSigner_TypeIndexOutOfRangeIsIgnored(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Typed", nil, nil, casefile.WithTemplate(casefile.RefName("Standard")))
	require.NoError(t, err)

	inputs := []casefile.SignerInput{
		{Name: "buyer", Email: "b@x.com", SignerType: 0},
		{Name: "seller", Email: "s@x.com", SignerType: 1},
		{Name: "count", Email: "c@x.com", SignerType: 2},
		{Name: "negative", Email: "n@x.com", SignerType: -1},
	}
	_, err = h.AddSigners(ctx, inputs)
	require.NoError(t, err)

	signers, err := fake.CaseFileSigners(ctx, caseFileID(t, h))
	require.NoError(t, err)
	got := make(map[string][]int)
	for _, s := range signers {
		got[s.Name] = s.SignerTypeIDs
	}
	want := map[string][]int{
		"buyer":    {21},
		"seller":   {22},
		"count":    nil,
		"negative": nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("signer types mismatch (-want +got):\n%s", diff)
	}
}

func TestAddSigner_ConfiguresSigningRequest(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Requests", nil, []casefile.SignerInput{
		{Name: "Default", Email: " d@x.com "},
		{Name: "Weekly", Email: "w@x.com", ReminderInterval: casefile.Days(7)},
		{Name: "Silent", Email: "s@x.com", ReminderInterval: casefile.Days(0)},
	})
	require.NoError(t, err)

	signers, err := fake.CaseFileSigners(ctx, caseFileID(t, h))
	require.NoError(t, err)
	require.Len(t, signers, 3)

	requests := make(map[string]*esign.SigningRequest)
	for _, s := range signers {
		req, err := fake.SigningRequest(ctx, s.ID)
		require.NoError(t, err)
		requests[s.Name] = req
	}

	for _, req := range requests {
		assert.Equal(t, "Document ready for signing: {{casefile.name}}", req.EmailSubject)
		assert.Equal(t, "Dear {{recipient.name}},\n\nPlease read and sign the following document(s):\n\n{{documents.list}}", req.EmailText)
		assert.True(t, req.EnableInsecureSigning)
	}

	assert.Equal(t, "d@x.com", requests["Default"].Email)
	assert.Equal(t, 1, requests["Default"].ReminderInterval)
	assert.Equal(t, "We are missing your signature.", requests["Default"].ReminderEmailSubject)
	assert.Equal(t, "Dear {{recipient.name}},\n\nWe are still missing your signature.", requests["Default"].ReminderEmailText)

	assert.Equal(t, 7, requests["Weekly"].ReminderInterval)

	assert.Zero(t, requests["Silent"].ReminderInterval)
	assert.Empty(t, requests["Silent"].ReminderEmailSubject)
	assert.Empty(t, requests["Silent"].ReminderEmailText)
}

func TestCreate_BindsTemplateAndFolder(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Filed", nil, nil,
		casefile.WithLanguage("da"),
		casefile.WithTemplate(casefile.RefName("Standard")),
		casefile.WithFolder(casefile.RefName("Contracts")),
	)
	require.NoError(t, err)

	cf, ok := h.Element().CaseFile()
	require.True(t, ok)
	assert.Equal(t, 7, cf.TemplateID)
	assert.Equal(t, "da", cf.Language)
	assert.Equal(t, []int{cf.ID}, fake.FolderMembers(5))

	view, err := h.ShowTemplate(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "Standard", view.Name)
}

func TestCreate_ResolvesTemplateFromAccountCatalogue(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	first, err := openNew(t, o).Create(ctx, "First", nil, nil)
	require.NoError(t, err)
	firstID, _ := first.Element().ID()

	added := fake.AddTemplate(esign.CaseFileTemplate{ID: 40, Name: "Addendum"})
	h, err := o.OpenCaseFile(ctx, firstID)
	require.NoError(t, err)
	h, err = h.Create(ctx, "First", nil, nil, casefile.WithTemplate(casefile.RefName("Addendum")))
	require.NoError(t, err)

	cf, ok := h.Element().CaseFile()
	require.True(t, ok)
	assert.Equal(t, firstID, cf.ID)
	assert.Equal(t, added.ID, cf.TemplateID)
	assert.Contains(t, fake.Calls(), "CaseFileTemplates")
}

func TestCreate_UnresolvedTemplateAndFolderAreSkipped(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Loose", nil, nil,
		casefile.WithTemplate(casefile.RefName("standard")),
		casefile.WithFolder(casefile.RefID(999)),
	)
	require.NoError(t, err)

	cf, _ := h.Element().CaseFile()
	assert.Zero(t, cf.TemplateID)
	assert.Empty(t, fake.FolderMembers(5))

	view, err := h.ShowTemplate(ctx)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestCreate_InvalidPDFAbortsBeforeRemoteCalls(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	bad := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))

	_, err := openNew(t, o).Create(ctx, "Broken",
		[]casefile.DocumentInput{{Title: "Bad", Filename: bad}}, nil)
	require.ErrorIs(t, err, casefile.ErrInvalidPDF)
	assert.Empty(t, fake.Calls())

	_, err = openNew(t, o).Create(ctx, "Missing",
		[]casefile.DocumentInput{{Title: "Gone", Filename: filepath.Join(t.TempDir(), "gone.pdf")}}, nil)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, fake.Calls())
}

func TestCreate_RemoteFailureAbortsWithoutRollback(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	boom := &esign.APIError{Method: http.MethodPost, Path: "/signers", StatusCode: http.StatusInternalServerError, Body: "boom"}
	fake.FailOn("PersistSigner", boom)

	h := openNew(t, o)
	_, err := h.Create(ctx, "Partial",
		[]casefile.DocumentInput{{Title: "Kept", Filename: pdf}},
		[]casefile.SignerInput{{Name: "Alice", Email: "a@x.com"}},
	)
	require.Error(t, err)

	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	docs, err := h.Documents(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1, "documents persisted before the failure stay")
	assert.Empty(t, fake.SignatureLinesFor(caseFileID(t, h)))
}

func TestCreate_RefusesSentCaseFile(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Sent", nil, nil)
	require.NoError(t, err)
	_, err = h.Send(ctx)
	require.NoError(t, err)

	reopened, err := o.OpenCaseFile(ctx, caseFileID(t, h))
	require.NoError(t, err)
	before := len(fake.Calls())

	_, err = reopened.Create(ctx, "Again", nil, nil)
	require.ErrorIs(t, err, casefile.ErrNotDraft)
	assert.Len(t, fake.Calls(), before, "no remote calls after the draft check")
}

func TestScenario_CreateAndSend(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	h, err := openNew(t, o).Create(ctx, "Contract",
		[]casefile.DocumentInput{{Title: "Invoice", Filename: pdf}},
		[]casefile.SignerInput{{Name: "Alice", Email: "a@x.com", Representing: "Acme", ReminderInterval: casefile.Days(1), SignerType: 0}},
	)
	require.NoError(t, err)
	_, err = h.Send(ctx)
	require.NoError(t, err)

	status, err := h.Status()
	require.NoError(t, err)
	assert.Equal(t, esign.StatusPending, status)

	summary, err := h.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Documents, 1)
	require.Len(t, summary.Signers, 1)
	for _, s := range summary.Signers {
		assert.Equal(t, "Alice", s.Name)
		assert.Equal(t, "a@x.com", s.Email)
		assert.Equal(t, esign.StatusPending, s.Status)
		assert.NotEmpty(t, s.Assets)
	}

	out, err := h.Render(ctx)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"id", "status", "created", "title", "documents", "signers"}, keys)
	assert.Contains(t, string(out), "\n    \"id\": ")
}

func TestRender_DocumentOmitsNestedProjections(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	h, err := openNew(t, o).Create(ctx, "Contract", []casefile.DocumentInput{{Title: "Invoice", Filename: pdf}}, nil)
	require.NoError(t, err)
	docs, err := h.Documents(ctx)
	require.NoError(t, err)

	for id := range docs {
		d, err := o.OpenDocument(ctx, id)
		require.NoError(t, err)
		out, err := d.Render(ctx)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "Invoice", decoded["title"])
		assert.Equal(t, "new", decoded["status"])
		assert.NotContains(t, decoded, "documents")
		assert.NotContains(t, decoded, "signers")
	}
}

func TestRender_EmptyProjectionsEncodeAsList(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Bare", nil, nil)
	require.NoError(t, err)
	out, err := h.Render(ctx)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.JSONEq(t, `[]`, string(decoded["documents"]))
	assert.JSONEq(t, `[]`, string(decoded["signers"]))
}

func TestOpenCaseFile_FallsBackToNewWhenNotFound(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	h, err := o.OpenCaseFile(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, casefile.KindCaseFile, h.Element().Kind())
	assert.Zero(t, caseFileID(t, h))
}

func TestOpenCaseFile_PropagatesRemoteFailures(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)
	fake.FailOn("FindCaseFile", &esign.APIError{Method: http.MethodGet, Path: "/casefiles/1", StatusCode: http.StatusBadGateway})

	_, err := o.OpenCaseFile(ctx, 1)
	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestOpenDocument_MissingYieldsUnboundHandle(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	h, err := o.OpenDocument(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, casefile.KindNone, h.Element().Kind())

	_, err = h.Status()
	assert.ErrorIs(t, err, casefile.ErrNoActiveResource)
	_, err = h.Title()
	assert.ErrorIs(t, err, casefile.ErrNoActiveResource)
	_, err = h.Summary(ctx)
	assert.ErrorIs(t, err, casefile.ErrNoActiveResource)
	_, err = h.Create(ctx, "x", nil, nil)
	assert.ErrorIs(t, err, casefile.ErrNoActiveResource)
	assert.ErrorIs(t, h.Delete(ctx), casefile.ErrNoActiveResource)
	_, err = h.Download(ctx)
	assert.ErrorIs(t, err, casefile.ErrNoActiveResource)

	same, err := h.Send(ctx)
	require.NoError(t, err)
	assert.Same(t, h, same)
}

func TestDocumentHandle_CaseFileOperations(t *testing.T) {
	ctx := context.Background()
	o, fake := newOrchestrator(t)
	pdf := esigntest.WritePDF(t, "a.pdf")

	h, err := openNew(t, o).Create(ctx, "Contract", []casefile.DocumentInput{{Title: "Invoice", Filename: pdf}}, nil)
	require.NoError(t, err)
	docs, err := h.Documents(ctx)
	require.NoError(t, err)

	for id := range docs {
		d, err := o.OpenDocument(ctx, id)
		require.NoError(t, err)

		_, err = d.Create(ctx, "x", nil, nil)
		assert.ErrorIs(t, err, casefile.ErrNotCaseFile)
		assert.ErrorIs(t, d.Delete(ctx), casefile.ErrNotCaseFile)

		before := len(fake.Calls())
		_, err = d.Send(ctx)
		require.NoError(t, err)
		assert.Len(t, fake.Calls(), before, "send is a no-op on documents")

		content, err := d.Download(ctx)
		require.NoError(t, err)
		assert.Equal(t, esigntest.MinimalPDF(), content)
	}

	_, err = h.Download(ctx)
	assert.ErrorIs(t, err, casefile.ErrNotDocument)
}

func TestDelete_RemovesCaseFile(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	h, err := openNew(t, o).Create(ctx, "Doomed", nil, nil)
	require.NoError(t, err)
	id := caseFileID(t, h)
	require.NoError(t, h.Delete(ctx))

	reopened, err := o.OpenCaseFile(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, caseFileID(t, reopened))

	assert.ErrorIs(t, openNew(t, o).Delete(ctx), casefile.ErrNotPersisted)
}
