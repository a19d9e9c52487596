// Package ingest turns uploaded documents into plain text for field extraction.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is a supported document format.
type Kind string

const (
	KindPDF       Kind = "pdf"
	KindSlideDeck Kind = "pptx"
	KindHTML      Kind = "html"
)

var (
	ErrUnsupportedKind = errors.New("unsupported document kind")
	ErrNoText          = errors.New("no text could be extracted")
	ErrUnreadable      = errors.New("document could not be read")
)

// KindFromFilename picks the document kind from the extension, falling back to
// sniffing the first bytes of data.
func KindFromFilename(name string, data []byte) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, nil
	case ".pptx":
		return KindSlideDeck, nil
	case ".html", ".htm":
		return KindHTML, nil
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return KindPDF, nil
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return KindSlideDeck, nil
	case bytes.Contains(bytes.ToLower(firstBytes(data, 512)), []byte("<html")):
		return KindHTML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, name)
}

// Extract returns the document text in reading order.
func Extract(data []byte, kind Kind) (string, error) {
	var (
		text string
		err  error
	)
	switch kind {
	case KindPDF:
		text, err = extractPDF(data)
	case KindSlideDeck:
		text, err = extractSlides(data)
	case KindHTML:
		text, err = extractHTML(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return "", err
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return "", fmt.Errorf("%w from %s document; it may be scanned or image-based", ErrNoText, kind)
	}
	return text, nil
}

// recoverUnreadable turns a parser panic on a malformed file into ErrUnreadable.
func recoverUnreadable(err *error, kind Kind) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: malformed %s: %v", ErrUnreadable, kind, r)
	}
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// normalizeWhitespace keeps line structure but collapses runs of blank lines.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func firstBytes(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
