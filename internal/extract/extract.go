// Package extract turns uploaded file bytes into plain text suitable
// for hashing, chunking and embedding.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

// Text extracts plain text from data according to the declared media
// type. Unsupported types and empty results are non-retryable input
// errors.
func Text(data []byte, mediaType string) (string, error) {
	base := mediaType
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		base = parsed
	}
	base = strings.ToLower(strings.TrimSpace(base))

	var text string
	var err error
	switch base {
	case "text/plain", "":
		text, err = plainText(data)
	case "text/markdown", "text/x-markdown":
		text, err = markdownText(data)
	case "application/pdf":
		text, err = pdfText(data)
	default:
		if strings.HasPrefix(base, "text/") {
			text, err = plainText(data)
			break
		}
		return "", fmt.Errorf("unsupported media type %q: %w", mediaType, apperrors.ErrInvalid)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text content: %w", apperrors.ErrInvalid)
	}
	return text, nil
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid utf-8 text: %w", apperrors.ErrInvalid)
	}
	return string(data), nil
}

// markdownText strips markdown structure by walking the goldmark AST
// and keeping text nodes; block boundaries become paragraph breaks.
func markdownText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid utf-8 text: %w", apperrors.ErrInvalid)
	}
	md := goldmark.New()
	reader := gmtext.NewReader(data)
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(data))
			}
			if code := strings.TrimSpace(sb.String()); code != "" {
				parts = append(parts, code)
			}
		default:
			if txt := blockText(node, data); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func blockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).SoftLineBreak() || node.(*ast.Text).HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", apperrors.ErrInvalid)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", apperrors.ErrInvalid)
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}
