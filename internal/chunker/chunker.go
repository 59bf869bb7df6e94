// Package chunker splits raw document text into bounded-size segments
// along paragraph boundaries. It is fully deterministic so that chunk
// indices stay stable across reprocessing runs.
package chunker

import (
	"strings"
	"unicode"
)

const DefaultMaxChars = 1000

// Chunk splits text into non-empty segments of at most maxSize
// characters. Blank-line paragraph boundaries are preferred; a
// paragraph that alone exceeds maxSize is re-split on sentence
// boundaries. A single sentence longer than maxSize is emitted as its
// own oversize chunk rather than being cut mid-sentence.
func Chunk(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChars
	}
	var chunks []string
	var buf strings.Builder

	flush := func() {
		out := strings.TrimSpace(buf.String())
		if out != "" {
			chunks = append(chunks, out)
		}
		buf.Reset()
	}
	add := func(piece, sep string) {
		if buf.Len() > 0 && buf.Len()+len(sep)+len(piece) > maxSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(piece)
	}

	for _, para := range splitParagraphs(text) {
		if len(para) <= maxSize {
			add(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			add(sentence, " ")
			if buf.Len() > maxSize {
				// Indivisible sentence over the limit: emit as-is.
				flush()
			}
		}
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(normalized, "\n\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		// Terminator followed by whitespace (or end of text) closes a
		// sentence; "3.14" style interior dots do not.
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJKEnd(r) {
			s := strings.TrimSpace(cur.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isCJKEnd(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	}
	return false
}
