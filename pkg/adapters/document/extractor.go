// Package document extracts plain text from documents attached to an intake form.
package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// MaxDocumentBytes bounds a single decoded attachment.
const MaxDocumentBytes = 10 << 20

// Extractor reads attached documents. Failures are *ExtractionError values.
type Extractor interface {
	Extract(ctx context.Context, doc models.AttachedDocument) (string, error)

	// ExtractAll concatenates every document under a heading with its name.
	// The first failing document aborts the call.
	ExtractAll(ctx context.Context, docs []models.AttachedDocument) (string, error)
}

type registryExtractor struct {
	logger *zap.Logger
}

// NewExtractor returns an Extractor backed by the registered formats.
func NewExtractor(logger *zap.Logger) Extractor {
	return &registryExtractor{logger: logger.Named("document")}
}

var _ Extractor = (*registryExtractor)(nil)

func (e *registryExtractor) Extract(ctx context.Context, doc models.AttachedDocument) (string, error) {
	data, err := DecodeBase64(doc.Content)
	if err != nil {
		return "", corrupt(doc.Name, "invalid base64 content")
	}
	if len(data) > MaxDocumentBytes {
		return "", &ExtractionError{
			Kind:     KindUnsupported,
			Document: doc.Name,
			Message:  fmt.Sprintf("file is larger than %d MB", MaxDocumentBytes>>20),
		}
	}
	if len(data) == 0 {
		return "", empty(doc.Name)
	}

	mime := normalizeMime(doc.MimeType)
	ext := strings.ToLower(filepath.Ext(doc.Name))
	x := lookup(mime, ext)
	if x == nil {
		return "", unsupported(doc.Name, firstNonEmpty(mime, ext, "unknown"))
	}

	text, err := x.ExtractText(ctx, data)
	if err != nil {
		e.logger.Debug("Document extraction failed",
			zap.String("document", doc.Name),
			zap.String("mime_type", mime),
			zap.Error(err))
		return "", corrupt(doc.Name, err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", empty(doc.Name)
	}
	return text, nil
}

func (e *registryExtractor) ExtractAll(ctx context.Context, docs []models.AttachedDocument) (string, error) {
	var b strings.Builder
	for _, doc := range docs {
		text, err := e.Extract(ctx, doc)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if doc.Name != "" {
			fmt.Fprintf(&b, "### %s\n\n", doc.Name)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// DecodeBase64 decodes standard or unpadded base64, with or without a data URL prefix.
func DecodeBase64(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "data:") {
		if i := strings.Index(content, ";base64,"); i >= 0 {
			content = content[i+len(";base64,"):]
		}
	}
	if data, err := base64.StdEncoding.DecodeString(content); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(content, "="))
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
