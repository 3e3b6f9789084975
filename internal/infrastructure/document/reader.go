package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
)

const defaultMaxPages = 20

// Reader implements port.TextExtractor with mupdf
type Reader struct {
	maxPages int
	logger   *zap.Logger
}

// NewReader creates a new document reader. maxPages caps how many PDF pages
// are read; zero or less uses the default.
func NewReader(maxPages int, logger *zap.Logger) *Reader {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Reader{
		maxPages: maxPages,
		logger:   logger,
	}
}

// ExtractText returns the plain text of a document. Images have no text layer
// and yield an empty string so the agent can read them visually.
func (r *Reader) ExtractText(ctx context.Context, content []byte, mimeType string) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mime == "application/pdf":
		return r.readPDF(ctx, content)
	case strings.HasPrefix(mime, "text/"):
		return string(content), nil
	case strings.HasPrefix(mime, "image/"):
		return "", nil
	default:
		return "", fmt.Errorf("unsupported document type: %s", mimeType)
	}
}

func (r *Reader) readPDF(ctx context.Context, content []byte) (string, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > r.maxPages {
		r.logger.Debug("Truncating PDF pages",
			zap.Int("page_count", pageCount),
			zap.Int("max_pages", r.maxPages))
		pageCount = r.maxPages
	}

	var sb strings.Builder
	for n := 0; n < pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", n+1, err)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimSpace(text))
	}

	r.logger.Debug("PDF text extracted",
		zap.Int("pages", pageCount),
		zap.Int("chars", sb.Len()))
	return sb.String(), nil
}

// Verify interface compliance
var _ port.TextExtractor = (*Reader)(nil)
