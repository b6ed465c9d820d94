package splitter

import (
	"strings"

	"github.com/flarexio/docblade/document"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators orders the preferred breakpoints: paragraph, then line,
// then word, then character.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text into overlapping chunks, preferring natural
// breakpoints over hard character cuts.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func New(chunkSize, chunkOverlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}

	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split returns the chunks of text, each at most chunkSize characters, with
// consecutive chunks sharing chunkOverlap characters of context. The result
// depends only on the input and the configured parameters.
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	return s.split(text, s.separators)
}

// SplitDocuments splits every document independently; no chunk crosses a
// document boundary. Empty documents yield no chunks.
func (s *RecursiveSplitter) SplitDocuments(docs []document.Document) []document.Document {
	var chunks []document.Document
	for _, doc := range docs {
		for _, text := range s.Split(doc.Content) {
			chunks = append(chunks, document.Document{
				Content: text,
				Source:  doc.Source,
				Page:    doc.Page,
			})
		}
	}

	return chunks
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	// Pick the first separator that occurs in the text; the empty separator
	// always matches and splits into single characters.
	separator := separators[len(separators)-1]
	var remaining []string

	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitText(text, separator)

	var (
		final []string
		good  []string
	)

	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}

		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, remaining)...)
		}
	}

	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}

	return final
}

// merge packs small splits back together up to chunkSize, carrying over
// chunkOverlap characters from the tail of the previous chunk.
func (s *RecursiveSplitter) merge(splits []string, separator string) []string {
	sepLen := len(separator)

	var (
		docs    []string
		current []string
		total   int
	)

	for _, piece := range splits {
		pieceLen := len(piece)

		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}

		if total+pieceLen+extra > s.chunkSize && len(current) > 0 {
			if doc := joinSplits(current, separator); doc != "" {
				docs = append(docs, doc)
			}

			for total > s.chunkOverlap ||
				(total+pieceLen+extra > s.chunkSize && total > 0) {
				removed := len(current[0])
				if len(current) > 1 {
					removed += sepLen
				}
				total -= removed
				current = current[1:]

				extra = 0
				if len(current) > 0 {
					extra = sepLen
				}
			}
		}

		current = append(current, piece)
		total += pieceLen
		if len(current) > 1 {
			total += sepLen
		}
	}

	if doc := joinSplits(current, separator); doc != "" {
		docs = append(docs, doc)
	}

	return docs
}

func splitText(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = strings.Split(text, "")
	} else {
		parts = strings.Split(text, separator)
	}

	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func joinSplits(splits []string, separator string) string {
	return strings.TrimSpace(strings.Join(splits, separator))
}
