package schema

import (
	"fmt"
	"strings"
	"time"
)

// Binary carries a raw payload and its declared mime type. A method may mark
// at most one attribute as binary; its presence overrides the request
// content type.
type Binary struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"val"`
}

const primitiveTypes = "|byte|short|int|long|float|double|boolean|char|string|integer|void|"

// IsPrimitiveType reports whether the declared type is a wire primitive.
func IsPrimitiveType(typ string) bool {
	return strings.Contains(primitiveTypes, "|"+typ+"|")
}

// ElementType returns the element type of an array declaration ("foo[]")
// and whether the declaration was an array at all.
func ElementType(typ string) (string, bool) {
	if strings.HasSuffix(typ, "[]") {
		return strings.TrimSuffix(typ, "[]"), true
	}
	return typ, false
}

// IsDateType reports whether the declared type is an ISO-8601 date.
func IsDateType(typ string) bool {
	return typ == "date"
}

// IsBinaryType reports whether the declared type is a raw binary payload.
func IsBinaryType(typ string) bool {
	return typ == "binary" || typ == "_data"
}

// IsByteArrayType reports whether the declared type is base64-encoded text.
func IsByteArrayType(typ string) bool {
	return typ == "bytearray"
}

// IsListType reports whether the declared type is a list container.
func IsListType(typ string) bool {
	return typ == "array" || typ == "list"
}

// FormatISO8601 renders a timestamp as an ISO 8601 extended-format string
// in UTC, the representation the application server expects for dates.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ParseISO8601 parses an ISO 8601 extended-format string, with or without
// fractional seconds and with either a Z or a numeric offset.
func ParseISO8601(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schema: cannot parse %q as ISO 8601 date", s)
}
