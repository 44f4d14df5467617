package utils

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DocumentTypes lists the identification codes the portal accepts
var DocumentTypes = []string{"CC", "TI", "CE", "PA", "RC", "NU", "AS", "MS", "CD", "CN", "SC", "PE", "PT"}

var (
	// ErrInvalidDocumentType is returned for codes outside DocumentTypes
	ErrInvalidDocumentType = errors.New("invalid document type")
	// ErrInvalidDocumentNumber is returned when no digits remain after normalization
	ErrInvalidDocumentNumber = errors.New("invalid document number")
)

var (
	nonDigit     = regexp.MustCompile(`\D`)
	documentKind = func() map[string]struct{} {
		m := make(map[string]struct{}, len(DocumentTypes))
		for _, t := range DocumentTypes {
			m[t] = struct{}{}
		}
		return m
	}()
)

// CleanDigits removes all non-numeric characters
func CleanDigits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// NormalizeDocumentType trims and upper-cases a document type code
func NormalizeDocumentType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// IsValidDocumentType reports whether t is an accepted code after normalization
func IsValidDocumentType(t string) bool {
	_, ok := documentKind[NormalizeDocumentType(t)]
	return ok
}

// NormalizeDocumentNumber turns a spreadsheet or form value into a
// digit-only document number. Numeric values are truncated to an integer.
// Strings are trimmed and stripped of spaces and commas; when that is not
// all digits they are read as a number if integral, otherwise every
// non-digit is dropped. The result may be empty.
func NormalizeDocumentNumber(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return CleanDigits(strconv.FormatInt(int64(v), 10))
	case int64:
		return CleanDigits(strconv.FormatInt(v, 10))
	case string:
		return fromString(v)
	default:
		return ""
	}
}

func fromFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return CleanDigits(strconv.FormatFloat(math.Trunc(v), 'f', 0, 64))
}

func fromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isDigits(s) {
		return s
	}

	s = strings.NewReplacer(" ", "", ",", "").Replace(s)
	if isDigits(s) {
		return s
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && f == math.Trunc(f) {
		return fromFloat(f)
	}

	return CleanDigits(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateDocument normalizes a document type and number and rejects
// either when unusable.
func ValidateDocument(documentType string, number interface{}) (string, string, error) {
	t := NormalizeDocumentType(documentType)
	if !IsValidDocumentType(t) {
		return "", "", fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidDocumentType, documentType, strings.Join(DocumentTypes, ", "))
	}
	n := NormalizeDocumentNumber(number)
	if n == "" {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidDocumentNumber, number)
	}
	return t, n, nil
}
