package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// RESTClient implements Client against the remote JSON API.
type RESTClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

type RESTOption func(*RESTClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) RESTOption {
	return func(c *RESTClient) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) RESTOption {
	return func(c *RESTClient) { c.logger = logger }
}

// NewRESTClient validates cfg and returns a client bound to cfg.BaseURL().
func NewRESTClient(cfg Config, opts ...RESTOption) (*RESTClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &RESTClient{
		baseURL:   cfg.BaseURL(),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// send performs one authenticated round-trip and returns the raw body of a
// 2xx response.
func (c *RESTClient) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("esign: rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("esign: marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("esign: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", `WSSE profile="UsernameToken"`)
	req.Header.Set("X-WSSE", wsseToken(c.apiKey, c.apiSecret, c.now()))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("esign: %s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body.", "path", path, "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("esign: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, result any) error {
	data, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("esign: decode %s: %w", path, err)
	}
	return nil
}

// requireEntity accepts an empty 2xx body for updates only. A create must
// return the new id.
func requireEntity(id int, path string) error {
	if id > 0 {
		return nil
	}
	return fmt.Errorf("esign: POST %s returned no entity id", path)
}

// ===== case files =====

func (c *RESTClient) FindCaseFile(ctx context.Context, id int) (*CaseFile, error) {
	var w caseFileWire
	if err := c.do(ctx, http.MethodGet, "/casefiles/"+strconv.Itoa(id), nil, &w); err != nil {
		return nil, err
	}
	return w.toModel(), nil
}

func (c *RESTClient) PersistCaseFile(ctx context.Context, cf *CaseFile) error {
	payload := map[string]any{
		"title":    cf.Title,
		"language": cf.Language,
	}
	if cf.TemplateID > 0 {
		payload["caseFileTypeId"] = cf.TemplateID
	}

	method, path := http.MethodPost, "/casefiles"
	if cf.ID > 0 {
		method, path = http.MethodPut, "/casefiles/"+strconv.Itoa(cf.ID)
	}
	var w caseFileWire
	if err := c.do(ctx, method, path, payload, &w); err != nil {
		return err
	}
	if w.ID == 0 {
		// An update answered without an entity keeps the local state.
		return requireEntity(cf.ID, path)
	}
	*cf = *w.toModel()
	return nil
}

func (c *RESTClient) DeleteCaseFile(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/casefiles/"+strconv.Itoa(id), nil, nil)
}

func (c *RESTClient) SendCaseFile(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPatch, "/casefiles/"+strconv.Itoa(id)+"/send", nil, nil)
}

func (c *RESTClient) CaseFileDocuments(ctx context.Context, caseFileID int) ([]Document, error) {
	var ws []documentWire
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/casefiles/%d/documents", caseFileID), nil, &ws); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(ws))
	for _, w := range ws {
		docs = append(docs, *w.toModel())
	}
	return docs, nil
}

func (c *RESTClient) CaseFileSigners(ctx context.Context, caseFileID int) ([]Signer, error) {
	var ws []signerWire
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/casefiles/%d/signers", caseFileID), nil, &ws); err != nil {
		return nil, err
	}
	signers := make([]Signer, 0, len(ws))
	for _, w := range ws {
		signers = append(signers, *w.toModel())
	}
	return signers, nil
}

func (c *RESTClient) CaseFileDocumentTypes(ctx context.Context, caseFileID int) ([]DocumentType, error) {
	var types []DocumentType
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/casefiles/%d/documenttypes", caseFileID), nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *RESTClient) CaseFileSignerTypes(ctx context.Context, caseFileID int) ([]SignerType, error) {
	var types []SignerType
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/casefiles/%d/signertypes", caseFileID), nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *RESTClient) CaseFileTemplates(ctx context.Context) ([]CaseFileTemplate, error) {
	var templates []CaseFileTemplate
	if err := c.do(ctx, http.MethodGet, "/casefile/casefiletypes", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// ===== documents =====

func (c *RESTClient) FindDocument(ctx context.Context, id int) (*Document, error) {
	var w documentWire
	if err := c.do(ctx, http.MethodGet, "/documents/"+strconv.Itoa(id), nil, &w); err != nil {
		return nil, err
	}
	return w.toModel(), nil
}

func (c *RESTClient) PersistDocument(ctx context.Context, doc *Document, pdf []byte) error {
	payload := map[string]any{
		"caseFileId": doc.CaseFileID,
		"title":      doc.Title,
	}
	if doc.Signable {
		payload["type"] = "signable"
	}
	if doc.DocumentTypeID > 0 {
		payload["documentTypeId"] = doc.DocumentTypeID
	}
	if pdf != nil {
		// encoding/json writes []byte as base64.
		payload["pdfFile"] = pdf
	}

	method, path := http.MethodPost, "/documents"
	if doc.ID > 0 {
		method, path = http.MethodPut, "/documents/"+strconv.Itoa(doc.ID)
	}
	var w documentWire
	if err := c.do(ctx, method, path, payload, &w); err != nil {
		return err
	}
	if w.ID == 0 {
		return requireEntity(doc.ID, path)
	}
	if w.CaseFileID == 0 {
		w.CaseFileID = doc.CaseFileID
	}
	updated := w.toModel()
	updated.PDFPath = doc.PDFPath
	*doc = *updated
	return nil
}

func (c *RESTClient) DeleteDocument(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/documents/"+strconv.Itoa(id), nil, nil)
}

func (c *RESTClient) DocumentPDF(ctx context.Context, id int) ([]byte, error) {
	var content []byte
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/documents/%d/content", id), nil, &content); err != nil {
		return nil, err
	}
	return content, nil
}

// ===== signers =====

func (c *RESTClient) PersistSigner(ctx context.Context, s *Signer) error {
	payload := map[string]any{
		"caseFileId": s.CaseFileID,
		"name":       s.Name,
		"onBehalfOf": s.OnBehalfOf,
	}
	method, path := http.MethodPost, "/signers"
	if s.ID > 0 {
		method, path = http.MethodPut, "/signers/"+strconv.Itoa(s.ID)
	}
	var w signerWire
	if err := c.do(ctx, method, path, payload, &w); err != nil {
		return err
	}
	if w.ID == 0 {
		return requireEntity(s.ID, path)
	}
	if w.CaseFileID == 0 {
		w.CaseFileID = s.CaseFileID
	}
	*s = *w.toModel()
	return nil
}

func (c *RESTClient) DeleteSigner(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/signers/"+strconv.Itoa(id), nil, nil)
}

func (c *RESTClient) AddSignerType(ctx context.Context, signerID, signerTypeID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/signers/%d/signertypes/%d", signerID, signerTypeID), nil, nil)
}

func (c *RESTClient) SigningRequest(ctx context.Context, signerID int) (*SigningRequest, error) {
	var w signingRequestWire
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/signers/%d/signingrequests", signerID), nil, &w); err != nil {
		return nil, err
	}
	if w.SignerID == 0 {
		w.SignerID = signerID
	}
	return w.toModel(), nil
}

func (c *RESTClient) PersistSigningRequest(ctx context.Context, req *SigningRequest) error {
	if req.ID == 0 {
		return fmt.Errorf("esign: signing request for signer %d has no id", req.SignerID)
	}
	payload := map[string]any{
		"email":                 req.Email,
		"emailSubject":          req.EmailSubject,
		"emailText":             req.EmailText,
		"reminderEmailSubject":  req.ReminderEmailSubject,
		"reminderEmailText":     req.ReminderEmailText,
		"reminderInterval":      req.ReminderInterval,
		"enableInsecureSigning": req.EnableInsecureSigning,
	}
	var w signingRequestWire
	if err := c.do(ctx, http.MethodPut, "/signingrequests/"+strconv.Itoa(req.ID), payload, &w); err != nil {
		return err
	}
	if w.ID != 0 {
		if w.SignerID == 0 {
			w.SignerID = req.SignerID
		}
		*req = *w.toModel()
	}
	return nil
}

// ===== signature lines =====

func (c *RESTClient) PersistSignatureLine(ctx context.Context, line *SignatureLine) error {
	payload := map[string]any{"role": line.Role}
	var w signatureLineWire
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/documents/%d/signaturelines", line.DocumentID), payload, &w); err != nil {
		return err
	}
	if w.DocumentID == 0 {
		w.DocumentID = line.DocumentID
	}
	*line = w.toModel()
	return nil
}

func (c *RESTClient) SetSignatureLineSigner(ctx context.Context, line *SignatureLine, signerID int) error {
	path := fmt.Sprintf("/documents/%d/signaturelines/%d/signers/%d", line.DocumentID, line.ID, signerID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return err
	}
	line.SignerID = signerID
	return nil
}

func (c *RESTClient) SignatureLines(ctx context.Context, documentID int) ([]SignatureLine, error) {
	var ws []signatureLineWire
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/documents/%d/signaturelines", documentID), nil, &ws); err != nil {
		return nil, err
	}
	lines := make([]SignatureLine, 0, len(ws))
	for _, w := range ws {
		lines = append(lines, w.toModel())
	}
	return lines, nil
}

// ===== folders =====

func (c *RESTClient) Folders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if err := c.do(ctx, http.MethodGet, "/folders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *RESTClient) FindFolder(ctx context.Context, id int) (*Folder, error) {
	var f Folder
	if err := c.do(ctx, http.MethodGet, "/folders/"+strconv.Itoa(id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *RESTClient) FindFoldersByTitle(ctx context.Context, title string) ([]Folder, error) {
	params := url.Values{}
	params.Set("title", title)
	var folders []Folder
	if err := c.do(ctx, http.MethodGet, "/folders?"+params.Encode(), nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *RESTClient) AddCaseFileToFolder(ctx context.Context, folderID, caseFileID int) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/folders/%d/casefiles/%d", folderID, caseFileID), nil, nil)
}

var _ Client = (*RESTClient)(nil)
