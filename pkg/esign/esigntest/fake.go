// Package esigntest provides an in-memory esign.Client for tests.
package esigntest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

// Fake mimics the remote service closely enough to exercise orchestration
// code: ids are assigned on first persist, sending moves the case file and
// its signing requests to pending, and edits to a sent case file are refused.
type Fake struct {
	mu sync.Mutex

	nextID    int
	now       func() time.Time
	caseFiles map[int]*esign.CaseFile
	documents map[int]*esign.Document
	pdfs      map[int][]byte
	signers   map[int]*esign.Signer
	requests  map[int]*esign.SigningRequest // keyed by signer id
	lines     map[int]*esign.SignatureLine
	templates []esign.CaseFileTemplate
	folders   []esign.Folder
	members   map[int][]int // folder id -> case file ids

	failures map[string]error
	calls    []string
}

func NewFake() *Fake {
	return &Fake{
		nextID:    100,
		now:       func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) },
		caseFiles: make(map[int]*esign.CaseFile),
		documents: make(map[int]*esign.Document),
		pdfs:      make(map[int][]byte),
		signers:   make(map[int]*esign.Signer),
		requests:  make(map[int]*esign.SigningRequest),
		lines:     make(map[int]*esign.SignatureLine),
		members:   make(map[int][]int),
		failures:  make(map[string]error),
	}
}

// AddTemplate seeds a case file template and returns it.
func (f *Fake) AddTemplate(tpl esign.CaseFileTemplate) esign.CaseFileTemplate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates = append(f.templates, tpl)
	return tpl
}

func (f *Fake) AddFolder(folder esign.Folder) esign.Folder {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, folder)
	return folder
}

// FailOn makes every later call to method return err.
func (f *Fake) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

// Calls returns the method names invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// SetStatus overrides the stored status of a case file.
func (f *Fake) SetStatus(caseFileID int, status esign.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cf, ok := f.caseFiles[caseFileID]; ok {
		cf.Status = status
	}
}

// SignatureLinesFor returns every signature line of every document in the
// case file.
func (f *Fake) SignatureLinesFor(caseFileID int) []esign.SignatureLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []esign.SignatureLine
	for _, id := range sortedKeys(f.lines) {
		line := f.lines[id]
		if doc, ok := f.documents[line.DocumentID]; ok && doc.CaseFileID == caseFileID {
			out = append(out, *line)
		}
	}
	return out
}

// FolderMembers returns the case file ids added to a folder.
func (f *Fake) FolderMembers(folderID int) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.members[folderID])
}

// StoredPDF returns the bytes uploaded with a document.
func (f *Fake) StoredPDF(documentID int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.pdfs[documentID])
}

func (f *Fake) enter(method string) error {
	f.calls = append(f.calls, method)
	return f.failures[method]
}

func (f *Fake) id() int {
	f.nextID++
	return f.nextID
}

func notFound(kind string, id int) error {
	return fmt.Errorf("%s %d: %w", kind, id, esign.ErrNotFound)
}

func conflict(path, msg string) error {
	return &esign.APIError{Method: http.MethodPost, Path: path, StatusCode: http.StatusConflict, Body: msg}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (f *Fake) editable(caseFileID int) error {
	cf, ok := f.caseFiles[caseFileID]
	if !ok {
		return notFound("case file", caseFileID)
	}
	if !cf.Status.IsDraft() {
		return conflict(fmt.Sprintf("/casefiles/%d", caseFileID), "case file is not a draft")
	}
	return nil
}

// ===== case files =====

func (f *Fake) FindCaseFile(_ context.Context, id int) (*esign.CaseFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindCaseFile"); err != nil {
		return nil, err
	}
	cf, ok := f.caseFiles[id]
	if !ok {
		return nil, notFound("case file", id)
	}
	out := *cf
	return &out, nil
}

func (f *Fake) PersistCaseFile(_ context.Context, cf *esign.CaseFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PersistCaseFile"); err != nil {
		return err
	}
	if cf.ID == 0 {
		stored := *cf
		stored.ID = f.id()
		stored.Status = esign.StatusNew
		stored.CreatedAt = f.now()
		f.caseFiles[stored.ID] = &stored
		*cf = stored
		return nil
	}
	stored, ok := f.caseFiles[cf.ID]
	if !ok {
		return notFound("case file", cf.ID)
	}
	stored.Title = cf.Title
	stored.Language = cf.Language
	stored.TemplateID = cf.TemplateID
	*cf = *stored
	return nil
}

func (f *Fake) DeleteCaseFile(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteCaseFile"); err != nil {
		return err
	}
	if _, ok := f.caseFiles[id]; !ok {
		return notFound("case file", id)
	}
	for docID, doc := range f.documents {
		if doc.CaseFileID == id {
			f.removeDocument(docID)
		}
	}
	for signerID, s := range f.signers {
		if s.CaseFileID == id {
			f.removeSigner(signerID)
		}
	}
	for folderID, ids := range f.members {
		f.members[folderID] = slices.DeleteFunc(ids, func(v int) bool { return v == id })
	}
	delete(f.caseFiles, id)
	return nil
}

func (f *Fake) SendCaseFile(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SendCaseFile"); err != nil {
		return err
	}
	if err := f.editable(id); err != nil {
		return err
	}
	f.caseFiles[id].Status = esign.StatusPending
	for _, doc := range f.documents {
		if doc.CaseFileID == id {
			doc.Status = esign.StatusPending
		}
	}
	for signerID, s := range f.signers {
		if s.CaseFileID == id {
			f.requests[signerID].Status = esign.StatusPending
		}
	}
	return nil
}

func (f *Fake) CaseFileDocuments(_ context.Context, caseFileID int) ([]esign.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CaseFileDocuments"); err != nil {
		return nil, err
	}
	var out []esign.Document
	for _, id := range sortedKeys(f.documents) {
		if doc := f.documents[id]; doc.CaseFileID == caseFileID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *Fake) CaseFileSigners(_ context.Context, caseFileID int) ([]esign.Signer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CaseFileSigners"); err != nil {
		return nil, err
	}
	var out []esign.Signer
	for _, id := range sortedKeys(f.signers) {
		if s := f.signers[id]; s.CaseFileID == caseFileID {
			cp := *s
			cp.SignerTypeIDs = slices.Clone(s.SignerTypeIDs)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *Fake) templateOf(caseFileID int) (*esign.CaseFileTemplate, error) {
	cf, ok := f.caseFiles[caseFileID]
	if !ok {
		return nil, notFound("case file", caseFileID)
	}
	for i := range f.templates {
		if f.templates[i].ID == cf.TemplateID {
			return &f.templates[i], nil
		}
	}
	return nil, nil
}

func (f *Fake) CaseFileDocumentTypes(_ context.Context, caseFileID int) ([]esign.DocumentType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CaseFileDocumentTypes"); err != nil {
		return nil, err
	}
	tpl, err := f.templateOf(caseFileID)
	if err != nil || tpl == nil {
		return nil, err
	}
	return slices.Clone(tpl.DocumentTypes), nil
}

func (f *Fake) CaseFileSignerTypes(_ context.Context, caseFileID int) ([]esign.SignerType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CaseFileSignerTypes"); err != nil {
		return nil, err
	}
	tpl, err := f.templateOf(caseFileID)
	if err != nil || tpl == nil {
		return nil, err
	}
	var out []esign.SignerType
	seen := make(map[int]bool)
	for _, dt := range tpl.DocumentTypes {
		for _, st := range dt.SignerTypes {
			if !seen[st.ID] {
				seen[st.ID] = true
				out = append(out, st)
			}
		}
	}
	return out, nil
}

func (f *Fake) CaseFileTemplates(_ context.Context) ([]esign.CaseFileTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CaseFileTemplates"); err != nil {
		return nil, err
	}
	return slices.Clone(f.templates), nil
}

// ===== documents =====

func (f *Fake) FindDocument(_ context.Context, id int) (*esign.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindDocument"); err != nil {
		return nil, err
	}
	doc, ok := f.documents[id]
	if !ok {
		return nil, notFound("document", id)
	}
	out := *doc
	return &out, nil
}

func (f *Fake) PersistDocument(_ context.Context, doc *esign.Document, pdf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PersistDocument"); err != nil {
		return err
	}
	if err := f.editable(doc.CaseFileID); err != nil {
		return err
	}
	if doc.ID == 0 {
		stored := *doc
		stored.ID = f.id()
		stored.Status = esign.StatusNew
		stored.CreatedAt = f.now()
		f.documents[stored.ID] = &stored
		*doc = stored
	} else {
		stored, ok := f.documents[doc.ID]
		if !ok {
			return notFound("document", doc.ID)
		}
		stored.Title = doc.Title
		stored.Signable = doc.Signable
		stored.DocumentTypeID = doc.DocumentTypeID
		stored.PDFPath = doc.PDFPath
		*doc = *stored
	}
	if pdf != nil {
		f.pdfs[doc.ID] = slices.Clone(pdf)
	}
	return nil
}

func (f *Fake) removeDocument(id int) {
	for lineID, line := range f.lines {
		if line.DocumentID == id {
			delete(f.lines, lineID)
		}
	}
	delete(f.pdfs, id)
	delete(f.documents, id)
}

func (f *Fake) DeleteDocument(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteDocument"); err != nil {
		return err
	}
	if _, ok := f.documents[id]; !ok {
		return notFound("document", id)
	}
	f.removeDocument(id)
	return nil
}

func (f *Fake) DocumentPDF(_ context.Context, id int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DocumentPDF"); err != nil {
		return nil, err
	}
	pdf, ok := f.pdfs[id]
	if !ok {
		return nil, notFound("document", id)
	}
	return slices.Clone(pdf), nil
}

// ===== signers =====

func (f *Fake) PersistSigner(_ context.Context, s *esign.Signer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PersistSigner"); err != nil {
		return err
	}
	if err := f.editable(s.CaseFileID); err != nil {
		return err
	}
	if s.ID == 0 {
		stored := *s
		stored.ID = f.id()
		f.signers[stored.ID] = &stored
		f.requests[stored.ID] = &esign.SigningRequest{
			ID:       f.id(),
			SignerID: stored.ID,
			Status:   esign.StatusNew,
			Link:     fmt.Sprintf("https://esign.test/signing/%d", stored.ID),
		}
		*s = stored
		return nil
	}
	stored, ok := f.signers[s.ID]
	if !ok {
		return notFound("signer", s.ID)
	}
	stored.Name = s.Name
	stored.OnBehalfOf = s.OnBehalfOf
	*s = *stored
	return nil
}

func (f *Fake) removeSigner(id int) {
	for lineID, line := range f.lines {
		if line.SignerID == id {
			delete(f.lines, lineID)
		}
	}
	delete(f.requests, id)
	delete(f.signers, id)
}

func (f *Fake) DeleteSigner(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteSigner"); err != nil {
		return err
	}
	if _, ok := f.signers[id]; !ok {
		return notFound("signer", id)
	}
	f.removeSigner(id)
	return nil
}

func (f *Fake) AddSignerType(_ context.Context, signerID, signerTypeID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddSignerType"); err != nil {
		return err
	}
	s, ok := f.signers[signerID]
	if !ok {
		return notFound("signer", signerID)
	}
	s.SignerTypeIDs = append(s.SignerTypeIDs, signerTypeID)
	return nil
}

func (f *Fake) SigningRequest(_ context.Context, signerID int) (*esign.SigningRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SigningRequest"); err != nil {
		return nil, err
	}
	req, ok := f.requests[signerID]
	if !ok {
		return nil, notFound("signing request for signer", signerID)
	}
	out := *req
	return &out, nil
}

func (f *Fake) PersistSigningRequest(_ context.Context, req *esign.SigningRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PersistSigningRequest"); err != nil {
		return err
	}
	stored, ok := f.requests[req.SignerID]
	if !ok || stored.ID != req.ID {
		return notFound("signing request", req.ID)
	}
	stored.Email = req.Email
	stored.EmailSubject = req.EmailSubject
	stored.EmailText = req.EmailText
	stored.ReminderEmailSubject = req.ReminderEmailSubject
	stored.ReminderEmailText = req.ReminderEmailText
	stored.ReminderInterval = req.ReminderInterval
	stored.EnableInsecureSigning = req.EnableInsecureSigning
	*req = *stored
	return nil
}

// ===== signature lines =====

func (f *Fake) PersistSignatureLine(_ context.Context, line *esign.SignatureLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PersistSignatureLine"); err != nil {
		return err
	}
	doc, ok := f.documents[line.DocumentID]
	if !ok {
		return notFound("document", line.DocumentID)
	}
	if err := f.editable(doc.CaseFileID); err != nil {
		return err
	}
	if !doc.Signable {
		return &esign.APIError{
			Method:     http.MethodPost,
			Path:       fmt.Sprintf("/documents/%d/signaturelines", doc.ID),
			StatusCode: http.StatusBadRequest,
			Body:       "document is not signable",
		}
	}
	stored := *line
	stored.ID = f.id()
	f.lines[stored.ID] = &stored
	*line = stored
	return nil
}

func (f *Fake) SetSignatureLineSigner(_ context.Context, line *esign.SignatureLine, signerID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetSignatureLineSigner"); err != nil {
		return err
	}
	stored, ok := f.lines[line.ID]
	if !ok {
		return notFound("signature line", line.ID)
	}
	if _, ok := f.signers[signerID]; !ok {
		return notFound("signer", signerID)
	}
	stored.SignerID = signerID
	line.SignerID = signerID
	return nil
}

func (f *Fake) SignatureLines(_ context.Context, documentID int) ([]esign.SignatureLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignatureLines"); err != nil {
		return nil, err
	}
	var out []esign.SignatureLine
	for _, id := range sortedKeys(f.lines) {
		if line := f.lines[id]; line.DocumentID == documentID {
			out = append(out, *line)
		}
	}
	return out, nil
}

// ===== folders =====

func (f *Fake) Folders(_ context.Context) ([]esign.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Folders"); err != nil {
		return nil, err
	}
	return slices.Clone(f.folders), nil
}

func (f *Fake) FindFolder(_ context.Context, id int) (*esign.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindFolder"); err != nil {
		return nil, err
	}
	for _, folder := range f.folders {
		if folder.ID == id {
			out := folder
			return &out, nil
		}
	}
	return nil, notFound("folder", id)
}

func (f *Fake) FindFoldersByTitle(_ context.Context, title string) ([]esign.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindFoldersByTitle"); err != nil {
		return nil, err
	}
	var out []esign.Folder
	for _, folder := range f.folders {
		if folder.Title == title {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *Fake) AddCaseFileToFolder(_ context.Context, folderID, caseFileID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddCaseFileToFolder"); err != nil {
		return err
	}
	if _, ok := f.caseFiles[caseFileID]; !ok {
		return notFound("case file", caseFileID)
	}
	for _, folder := range f.folders {
		if folder.ID == folderID {
			f.members[folderID] = append(f.members[folderID], caseFileID)
			return nil
		}
	}
	return notFound("folder", folderID)
}

var _ esign.Client = (*Fake)(nil)
