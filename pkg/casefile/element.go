package casefile

import (
	"time"

	"github.com/Lllllllleong/casefileflow/pkg/esign"
)

// Kind tags which resource an Element holds.
type Kind int

const (
	KindNone Kind = iota
	KindCaseFile
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindCaseFile:
		return "casefile"
	case KindDocument:
		return "document"
	default:
		return "none"
	}
}

// Element is the resource a Handle operates on: a case file, a document, or
// nothing. The zero value is KindNone.
type Element struct {
	kind     Kind
	caseFile *esign.CaseFile
	document *esign.Document
}

func CaseFileElement(cf *esign.CaseFile) Element {
	if cf == nil {
		return Element{}
	}
	return Element{kind: KindCaseFile, caseFile: cf}
}

func DocumentElement(doc *esign.Document) Element {
	if doc == nil {
		return Element{}
	}
	return Element{kind: KindDocument, document: doc}
}

func (e Element) Kind() Kind { return e.kind }

func (e Element) CaseFile() (*esign.CaseFile, bool) {
	return e.caseFile, e.kind == KindCaseFile
}

func (e Element) Document() (*esign.Document, bool) {
	return e.document, e.kind == KindDocument
}

// ID returns the remote id, 0 while the resource is unsaved.
func (e Element) ID() (int, error) {
	switch e.kind {
	case KindCaseFile:
		return e.caseFile.ID, nil
	case KindDocument:
		return e.document.ID, nil
	default:
		return 0, ErrNoActiveResource
	}
}

func (e Element) Status() (esign.Status, error) {
	switch e.kind {
	case KindCaseFile:
		return e.caseFile.Status, nil
	case KindDocument:
		return e.document.Status, nil
	default:
		return "", ErrNoActiveResource
	}
}

func (e Element) Title() (string, error) {
	switch e.kind {
	case KindCaseFile:
		return e.caseFile.Title, nil
	case KindDocument:
		return e.document.Title, nil
	default:
		return "", ErrNoActiveResource
	}
}

func (e Element) CreatedAt() (time.Time, error) {
	switch e.kind {
	case KindCaseFile:
		return e.caseFile.CreatedAt, nil
	case KindDocument:
		return e.document.CreatedAt, nil
	default:
		return time.Time{}, ErrNoActiveResource
	}
}
