package content

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// minConfidence is the chardet score below which a guess is ignored
const minConfidence = 30

// Text decodes the body to UTF-8. The declared charset (header or meta
// tag) wins; otherwise the body is sniffed. It returns the charset used.
func (r *Response) Text() (string, string, error) {
	return decodeText(r.Body, r.ContentType)
}

func decodeText(body []byte, contentType string) (string, string, error) {
	_, name, certain := charset.DetermineEncoding(body, contentType)
	// windows-1252 is also what DetermineEncoding returns when it knows
	// nothing, so only then is the body sniffed
	if !certain && (name == "utf-8" || name == "windows-1252") {
		if utf8.Valid(body) {
			return string(body), "utf-8", nil
		}
		name = detectCharset(body, name)
	}

	if name == "utf-8" {
		return string(body), name, nil
	}

	reader, err := charset.NewReaderLabel(name, bytes.NewReader(body))
	if err != nil {
		return "", name, fmt.Errorf("decode %s: %w", name, err)
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return "", name, fmt.Errorf("decode %s: %w", name, err)
	}
	return string(text), name, nil
}

// detectCharset guesses with chardet, falling back to the given label
func detectCharset(body []byte, fallback string) string {
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result.Confidence < minConfidence {
		return fallback
	}
	if enc, name := charset.Lookup(strings.ToLower(result.Charset)); enc != nil {
		return name
	}
	return fallback
}
