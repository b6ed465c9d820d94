package document

import "strings"

// Document is a span of text tied to the place it came from. Loaders produce
// page-level documents, the splitter produces chunk-level ones; both share
// this type.
type Document struct {
	Content string
	Source  string
	Page    int // 1-based page number, 0 for non-paginated content
}

func New(content, source string) Document {
	return Document{
		Content: content,
		Source:  source,
	}
}

// Empty reports whether the document carries no usable text. Placeholder
// documents for cached external PDFs are empty on purpose; their source path
// is re-loaded separately.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Content) == ""
}
