package export

import (
	"context"
	"fmt"
	"time"
)

// DataStore defines the interface for data access.
type DataStore interface {
	ExportEntries(ctx context.Context, category string) ([]Entry, error)
}

// Service provides bookmark export functionality.
type Service struct {
	store    DataStore
	uploader Uploader
	printPDF func(ctx context.Context, html string) ([]byte, error)
	now      func() time.Time
}

// NewService creates an export service. uploader may be nil when no object
// store is configured.
func NewService(store DataStore, uploader Uploader) *Service {
	return &Service{store: store, uploader: uploader, printPDF: printPDF, now: time.Now}
}

func (s *Service) CanUpload() bool {
	return s.uploader != nil
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Upload && s.uploader == nil {
		return nil, ErrUploadUnavailable
	}

	entries, err := s.store.ExportEntries(ctx, req.Category)
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}

	title := "Bookmarks"
	if req.Category != "" {
		title = "Bookmarks - " + req.Category
	}
	generatedAt := s.now().UTC()
	data := TemplateData{
		Title:       title,
		Count:       len(entries),
		GeneratedAt: generatedAt,
		Groups:      GroupEntries(entries),
	}

	var result *Result
	switch req.Format {
	case FormatHTML, "":
		html, err := RenderBookmarksHTML(data)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		result = &Result{Data: []byte(html), Filename: exportFilename(req.Category, generatedAt, "html"), MimeType: "text/html; charset=utf-8"}
	case FormatPDF:
		html, err := RenderPrintHTML(data)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		pdf, err := s.printPDF(ctx, html)
		if err != nil {
			return nil, err
		}
		result = &Result{Data: pdf, Filename: exportFilename(req.Category, generatedAt, "pdf"), MimeType: "application/pdf"}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	if req.Upload {
		key := "exports/" + generatedAt.Format("2006/01/02/150405-") + result.Filename
		link, err := s.uploader.Upload(ctx, key, result.MimeType, result.Data)
		if err != nil {
			return nil, err
		}
		result.URL = link
	}
	return result, nil
}
