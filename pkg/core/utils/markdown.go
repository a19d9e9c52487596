package utils

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

// StripCodeFence removes an outer ``` or ```lang fence around a model answer.
func StripCodeFence(input string) string {
	cleaned := strings.TrimSpace(input)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	cleaned = strings.TrimPrefix(cleaned, "```")
	// Drop the language tag on the opening line (```json, ```python, ...).
	if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 && !strings.ContainsAny(cleaned[:nl], "{[\"'") {
		cleaned = cleaned[nl+1:]
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// RenderMarkdown converts catalog free text to HTML for display.
func RenderMarkdown(input string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
