package kind

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Category is the closed set of content tags resolved once when a file is loaded.
type Category int

const (
	PlainText Category = iota
	StructuredDocument
	Binary
	Oversized
)

func (c Category) String() string {
	switch c {
	case PlainText:
		return "plain_text"
	case StructuredDocument:
		return "structured_document"
	case Binary:
		return "binary"
	case Oversized:
		return "oversized"
	}
	return "unknown"
}

// MarshalText renders the category by name in JSON reports.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Comparable reports whether text of this category can be shingled and aligned.
func (c Category) Comparable() bool {
	return c == PlainText
}

var structuredMIMEPrefixes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.ms-",
	"application/vnd.openxmlformats-officedocument.",
	"application/vnd.oasis.opendocument.",
	"application/x-ole-storage",
}

// IsBinaryContent checks the first 512 bytes (or less) for NUL bytes.
func IsBinaryContent(data []byte) bool {
	checkSize := min(len(data), 512)
	for i := 0; i < checkSize; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

// Classify resolves the category of a file from its size, path and leading bytes.
// Files larger than ceiling are Oversized regardless of content; ceiling <= 0 disables the check.
func Classify(filePath string, data []byte, size int64, ceiling int64) Category {
	if ceiling > 0 && size > ceiling {
		return Oversized
	}
	if IsStructuredKind(DetectKind(filePath)) {
		return StructuredDocument
	}
	if len(data) == 0 {
		return PlainText
	}

	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		for _, prefix := range structuredMIMEPrefixes {
			if strings.HasPrefix(m.String(), prefix) {
				return StructuredDocument
			}
		}
	}
	if IsBinaryContent(data) {
		return Binary
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return PlainText
		}
	}
	return Binary
}
