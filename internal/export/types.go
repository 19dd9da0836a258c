// Package export renders the bookmark collection as a browser-importable
// bookmark file or a printable PDF.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation.
type Request struct {
	// Category limits the export to one category; empty exports everything.
	Category string
	Format   Format
	// Upload stores the artifact in object storage and returns a link
	// instead of the bytes.
	Upload bool
}

// Entry is one bookmark as it appears in an export.
type Entry struct {
	URL         string
	Title       string
	Description string
	Category    string
	Tags        []string
	Position    float64
	CreatedAt   time.Time
}

// Result contains the export output. URL is set for uploaded exports.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	URL      string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	ErrUploadUnavailable    = errors.New("export upload not configured")
)
