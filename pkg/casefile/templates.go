package casefile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

// TemplateView is the rendered shape of a case file template.
type TemplateView struct {
	ID            int                `json:"id"`
	Name          string             `json:"name"`
	DocumentTypes []DocumentTypeView `json:"documentTypes"`
}

type DocumentTypeView struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	SignerTypes []SignerTypeView `json:"signerTypes,omitempty"`
}

// SignerTypeView.ID is the signer type's position within its document type,
// the value SignerInput.SignerType expects.
type SignerTypeView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Templates maps template id to name. Templates belong to the account, not to
// a case file, so every lookup lists the same catalogue.
func (o *Orchestrator) Templates(ctx context.Context) (map[int]string, error) {
	templates, err := o.client.CaseFileTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list case file templates: %w", err)
	}
	out := make(map[int]string, len(templates))
	for _, tpl := range templates {
		out[tpl.ID] = tpl.Name
	}
	return out, nil
}

// TemplateByID returns nil when no template has the id.
func (o *Orchestrator) TemplateByID(ctx context.Context, id int) (*esign.CaseFileTemplate, error) {
	return o.findTemplate(ctx, func(t esign.CaseFileTemplate) bool { return t.ID == id })
}

// TemplateByName returns the first template whose name equals name exactly,
// or nil.
func (o *Orchestrator) TemplateByName(ctx context.Context, name string) (*esign.CaseFileTemplate, error) {
	return o.findTemplate(ctx, func(t esign.CaseFileTemplate) bool { return t.Name == name })
}

func (o *Orchestrator) findTemplate(ctx context.Context, match func(esign.CaseFileTemplate) bool) (*esign.CaseFileTemplate, error) {
	templates, err := o.client.CaseFileTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list case file templates: %w", err)
	}
	for _, tpl := range templates {
		if match(tpl) {
			return &tpl, nil
		}
	}
	return nil, nil
}

// ShowTemplate renders the template bound to the case file, or returns nil
// when none is bound.
func (h *Handle) ShowTemplate(ctx context.Context) (*TemplateView, error) {
	cf, err := h.caseFile()
	if err != nil {
		return nil, err
	}
	if cf.TemplateID == 0 {
		return nil, nil
	}
	tpl, err := h.o.TemplateByID(ctx, cf.TemplateID)
	if err != nil || tpl == nil {
		return nil, err
	}
	view := RenderTemplate(*tpl)
	return &view, nil
}

func RenderTemplate(tpl esign.CaseFileTemplate) TemplateView {
	view := TemplateView{
		ID:            tpl.ID,
		Name:          tpl.Name,
		DocumentTypes: make([]DocumentTypeView, 0, len(tpl.DocumentTypes)),
	}
	for _, dt := range tpl.DocumentTypes {
		dv := DocumentTypeView{ID: dt.ID, Name: dt.Name}
		for i, st := range dt.SignerTypes {
			dv.SignerTypes = append(dv.SignerTypes, SignerTypeView{ID: i, Name: st.Name})
		}
		view.DocumentTypes = append(view.DocumentTypes, dv)
	}
	return view
}

func (o *Orchestrator) Folders(ctx context.Context) ([]esign.Folder, error) {
	folders, err := o.client.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// FolderByID returns nil when the folder does not exist.
func (o *Orchestrator) FolderByID(ctx context.Context, id int) (*esign.Folder, error) {
	folder, err := o.client.FindFolder(ctx, id)
	if errors.Is(err, esign.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find folder %d: %w", id, err)
	}
	return folder, nil
}

// FolderByTitle returns the first folder titled exactly title, or nil.
func (o *Orchestrator) FolderByTitle(ctx context.Context, title string) (*esign.Folder, error) {
	folders, err := o.client.FindFoldersByTitle(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("find folders titled %q: %w", title, err)
	}
	for _, folder := range folders {
		if folder.Title == title {
			return &folder, nil
		}
	}
	return nil, nil
}
