// Package schema holds the generated-metadata contracts shared between the
// request pipeline and host applications: controller method descriptors,
// per-attribute placement rules, pre-flight validation, and the model
// registry used during response decoding.
package schema

import (
	"strconv"
	"strings"
)

// Style declares where a method attribute is placed on the wire.
type Style string

const (
	// StyleTemplate substitutes the value into a {name} path segment.
	StyleTemplate Style = "TEMPLATE"

	// StyleQuery appends the value to the query string.
	StyleQuery Style = "QUERY"

	// StyleHeader sends the value as an HTTP header.
	StyleHeader Style = "HEADER"

	// StyleMatrix substitutes a name=value matrix parameter into the path.
	StyleMatrix Style = "MATRIX"

	// StylePlain merges the value into the request body. GET and DELETE
	// methods carry no body, so plain attributes are redirected to the
	// query string for those verbs.
	StylePlain Style = "PLAIN"

	// StyleForm merges the value into a form-encoded body, with the same
	// GET/DELETE redirect as StylePlain.
	StyleForm Style = "FORM"
)

// Attribute describes one declared method attribute.
type Attribute struct {
	Type     string `json:"type"`
	Style    Style  `json:"style"`
	Optional bool   `json:"optional"`
}

// Method is the generated descriptor for one remote controller method.
type Method struct {
	Controller  string               `json:"controller"`
	Name        string               `json:"name"`
	Path        string               `json:"path"`
	Verb        string               `json:"method"`
	ContentType string               `json:"contentType,omitempty"`
	DataType    string               `json:"dataType,omitempty"`
	ReturnType  string               `json:"returnType,omitempty"`
	Produces    []string             `json:"produces,omitempty"`
	Consumes    []string             `json:"consumes,omitempty"`
	Defaults    map[string]interface{} `json:"defaults,omitempty"`
	Attributes  map[string]Attribute `json:"schema,omitempty"`
}

// Invalid describes one attribute that failed validation.
type Invalid struct {
	Attribute string `json:"attribute"`
	Reason    string `json:"reason"`
}

// Validate checks the supplied values against the declared attributes.
// It returns one Invalid per failing attribute, or nil if validation passes.
// With isUpdate enabled, missing required fields are not reported.
func Validate(attrs map[string]Attribute, values map[string]interface{}, isUpdate bool) []Invalid {
	var invalid []Invalid
	for name, attr := range attrs {
		typ := strings.TrimSpace(attr.Type)
		value, present := values[name]
		if !attr.Optional && (!present || value == "" || value == nil) {
			if !isUpdate {
				invalid = append(invalid, Invalid{Attribute: name, Reason: "required field blank"})
			}
			continue
		}
		if !present || value == nil {
			continue
		}

		switch {
		case isNumericType(typ) && !isNumericValue(value):
			invalid = append(invalid, Invalid{Attribute: name, Reason: "not numeric"})
		case typ == "boolean" && !isBooleanValue(value):
			invalid = append(invalid, Invalid{Attribute: name, Reason: "not boolean"})
		case IsListType(typ) && !isNonEmptyList(value):
			invalid = append(invalid, Invalid{Attribute: name, Reason: "empty list"})
		case IsBinaryType(typ) && !isBinaryValue(value):
			invalid = append(invalid, Invalid{Attribute: name, Reason: "invalid binary format"})
		}
	}
	return invalid
}

func isNumericType(typ string) bool {
	switch typ {
	case "int", "integer", "biginteger", "bigdecimal", "double", "long", "float", "short", "byte":
		return true
	}
	return false
}

func isNumericValue(value interface{}) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	}
	return false
}

func isBooleanValue(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return true
	case string:
		return v == "true" || v == "false"
	}
	return false
}

func isNonEmptyList(value interface{}) bool {
	switch v := value.(type) {
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	}
	return false
}

func isBinaryValue(value interface{}) bool {
	b, ok := value.(Binary)
	if !ok {
		if p, isPtr := value.(*Binary); isPtr && p != nil {
			b = *p
			ok = true
		}
	}
	return ok && b.MimeType != "" && len(b.Data) > 0
}
