package document

import "fmt"

// ErrorKind classifies why a document could not be read.
type ErrorKind string

const (
	KindUnsupported ErrorKind = "unsupported"
	KindCorrupt     ErrorKind = "corrupt"
	KindEmpty       ErrorKind = "empty"
)

// ExtractionError is returned when a document yields no usable text. Its
// message is written for end users and is surfaced verbatim.
type ExtractionError struct {
	Kind     ErrorKind
	Document string
	Message  string
}

func (e *ExtractionError) Error() string {
	if e.Document == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Document, e.Message)
}

func unsupported(name, mime string) *ExtractionError {
	return &ExtractionError{
		Kind:     KindUnsupported,
		Document: name,
		Message:  fmt.Sprintf("file type %q is not supported; upload a text, markdown, CSV or HTML file, or paste the content", mime),
	}
}

func corrupt(name, reason string) *ExtractionError {
	return &ExtractionError{
		Kind:     KindCorrupt,
		Document: name,
		Message:  "file could not be read (" + reason + "); it may be damaged or password protected",
	}
}

func empty(name string) *ExtractionError {
	return &ExtractionError{
		Kind:     KindEmpty,
		Document: name,
		Message:  "file contains no readable text",
	}
}
