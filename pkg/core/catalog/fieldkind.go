package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidValue is wrapped by every FieldKind.Normalize failure.
var ErrInvalidValue = errors.New("invalid value")

// KindType enumerates the field behaviours the form and the prompts know about.
type KindType string

const (
	KindFreeText         KindType = "text"
	KindBoolean          KindType = "boolean"
	KindRating           KindType = "rating"
	KindAutoLink         KindType = "autolink"
	KindAveragedDuration KindType = "duration"
)

const (
	DefaultTrueLiteral  = "Sì"
	DefaultFalseLiteral = "No"
	DefaultRatingMin    = 1
	DefaultRatingMax    = 5
)

// FieldKind describes how a column is validated, normalized and prompted for.
type FieldKind struct {
	Type KindType `json:"type"`

	// Boolean
	TrueLiteral  string `json:"true_literal,omitempty"`
	FalseLiteral string `json:"false_literal,omitempty"`

	// Rating
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`

	// AutoLink: URL template, "{value}" is replaced by the handle.
	Pattern string `json:"pattern,omitempty"`
}

func FreeText() FieldKind { return FieldKind{Type: KindFreeText} }

func Boolean(trueLit, falseLit string) FieldKind {
	if trueLit == "" {
		trueLit = DefaultTrueLiteral
	}
	if falseLit == "" {
		falseLit = DefaultFalseLiteral
	}
	return FieldKind{Type: KindBoolean, TrueLiteral: trueLit, FalseLiteral: falseLit}
}

func Rating(min, max int) FieldKind {
	if min == 0 && max == 0 {
		min, max = DefaultRatingMin, DefaultRatingMax
	}
	return FieldKind{Type: KindRating, Min: min, Max: max}
}

func AutoLink(pattern string) FieldKind {
	return FieldKind{Type: KindAutoLink, Pattern: pattern}
}

func AveragedDuration() FieldKind { return FieldKind{Type: KindAveragedDuration} }

// Kinds is the per-field classification table, built once from configuration.
type Kinds map[string]FieldKind

// Of returns the kind of field; unclassified fields are free text.
func (k Kinds) Of(field string) FieldKind {
	if kind, ok := k[field]; ok {
		return kind
	}
	return FreeText()
}

var (
	numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	truthy        = map[string]bool{"si": true, "sì": true, "yes": true, "true": true, "y": true, "1": true}
	falsy         = map[string]bool{"no": true, "false": true, "n": true, "0": true}
)

// Normalize validates value for this kind and returns its canonical form.
// Empty values are always accepted; only the identity field is mandatory.
func (k FieldKind) Normalize(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}

	switch k.Type {
	case KindBoolean:
		lower := strings.ToLower(v)
		if lower == strings.ToLower(k.TrueLiteral) || truthy[lower] {
			return k.TrueLiteral, nil
		}
		if lower == strings.ToLower(k.FalseLiteral) || falsy[lower] {
			return k.FalseLiteral, nil
		}
		return "", fmt.Errorf("%w: %q is neither %q nor %q", ErrInvalidValue, v, k.TrueLiteral, k.FalseLiteral)

	case KindRating:
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("%w: rating %q is not an integer", ErrInvalidValue, v)
		}
		if n < k.Min || n > k.Max {
			return "", fmt.Errorf("%w: rating %d outside %d..%d", ErrInvalidValue, n, k.Min, k.Max)
		}
		return strconv.Itoa(n), nil

	case KindAveragedDuration:
		return averageDuration(v)

	case KindAutoLink:
		if k.Pattern == "" || strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v, nil
		}
		handle := strings.TrimPrefix(v, "@")
		if strings.ContainsAny(handle, " \t\n") {
			return "", fmt.Errorf("%w: %q is not a handle or URL", ErrInvalidValue, v)
		}
		return strings.ReplaceAll(k.Pattern, "{value}", handle), nil
	}

	return v, nil
}

// Rule is the formatting instruction given to the completion service for field.
func (k FieldKind) Rule(field string) string {
	switch k.Type {
	case KindBoolean:
		return fmt.Sprintf("%q: answer only %q or %q.", field, k.TrueLiteral, k.FalseLiteral)
	case KindRating:
		return fmt.Sprintf("%q: a single integer from %d to %d.", field, k.Min, k.Max)
	case KindAveragedDuration:
		return fmt.Sprintf("%q: a single number of hours. If the document gives a range (e.g. \"2-3 hours\"), return the average (\"2.5\").", field)
	case KindAutoLink:
		return fmt.Sprintf("%q: only the account handle or the full URL, nothing else.", field)
	}
	return ""
}

// averageDuration reduces "2-3 ore" to "2.5"; a single number is returned as is.
func averageDuration(v string) (string, error) {
	matches := numberPattern.FindAllString(v, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: duration %q contains no number", ErrInvalidValue, v)
	}
	sum := 0.0
	for _, m := range matches {
		f, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
		if err != nil {
			return "", fmt.Errorf("%w: duration %q: %v", ErrInvalidValue, v, err)
		}
		sum += f
	}
	return strconv.FormatFloat(sum/float64(len(matches)), 'f', -1, 64), nil
}
