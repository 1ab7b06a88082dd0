package document

import (
	"context"
	"sort"
	"sync"
)

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// TextExtractorFunc adapts a function to TextExtractor.
type TextExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f TextExtractorFunc) ExtractText(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Registration binds a text extractor to the MIME types and file extensions it reads.
type Registration struct {
	MimeTypes  []string
	Extensions []string
	Extractor  TextExtractor
}

var (
	registryMu  sync.RWMutex
	byMime      = make(map[string]TextExtractor)
	byExtension = make(map[string]TextExtractor)
)

// Register is called by each format's init() function.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, m := range reg.MimeTypes {
		byMime[m] = reg.Extractor
	}
	for _, ext := range reg.Extensions {
		byExtension[ext] = reg.Extractor
	}
}

// lookup returns the extractor for a MIME type, falling back to the file extension.
func lookup(mime, ext string) TextExtractor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if x, ok := byMime[mime]; ok {
		return x
	}
	return byExtension[ext]
}

// SupportedTypes lists the registered MIME types.
func SupportedTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(byMime))
	for m := range byMime {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
