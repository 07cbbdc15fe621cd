package casefile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// PDFSource loads the bytes behind a document's filename.
type PDFSource interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// FileSource reads PDFs from the local filesystem.
type FileSource struct{}

func (FileSource) Load(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	return data, nil
}

var disableConfigDir sync.Once

// ValidatePDF checks data with pdfcpu in relaxed mode and returns its page
// count.
func ValidatePDF(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: page count: %v", ErrInvalidPDF, err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return pages, nil
}

// loadPDFs fetches and validates every document's PDF concurrently. The
// result is indexed like documents.
func (o *Orchestrator) loadPDFs(ctx context.Context, documents []DocumentInput) ([][]byte, error) {
	out := make([][]byte, len(documents))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.concurrency)

	for i, doc := range documents {
		eg.Go(func() error {
			data, err := o.source.Load(gctx, doc.Filename)
			if err != nil {
				return fmt.Errorf("document %q: %w", doc.Title, err)
			}
			pages, err := ValidatePDF(data)
			if err != nil {
				return fmt.Errorf("document %q (%s): %w", doc.Title, doc.Filename, err)
			}
			o.logger.Debug("PDF loaded.", "filename", doc.Filename, "pageCount", pages, "bytes", len(data))
			out[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
