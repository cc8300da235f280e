package pipeline

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joshuarp/controller-sdk/schema"
	"github.com/joshuarp/controller-sdk/transport"
)

// Prepare builds the wire-ready request for a method invocation, routing
// each supplied attribute by its declared placement. Attributes absent from
// the schema are dropped silently.
func (p *Pipeline) Prepare(method schema.Method, attrs map[string]interface{}) (*transport.Request, error) {
	path := method.Path
	query := url.Values{}
	headers := make(map[string]string)
	var matrix []string

	bodyless := method.Verb == "GET" || method.Verb == "DELETE"
	multipart := !bodyless && strings.HasPrefix(method.ContentType, "multipart/related")

	var (
		binaryValue *schema.Binary
		plain       = make(map[string]interface{})
		form        = url.Values{}
	)

	for name, attr := range method.Attributes {
		value, ok := attrs[name]
		if !ok || value == nil {
			if !attr.Optional && attr.Style == schema.StyleTemplate {
				return nil, fmt.Errorf("pipeline: template attribute %q has no value", name)
			}
			continue
		}

		if schema.IsBinaryType(attr.Type) {
			bin, err := asBinary(value)
			if err != nil {
				return nil, fmt.Errorf("pipeline: attribute %q: %w", name, err)
			}
			if multipart {
				// Binary attributes ride inside the multipart tree and are
				// lifted into their own parts when the body is built.
				plain[name] = *bin
				continue
			}
			if binaryValue != nil {
				return nil, fmt.Errorf("pipeline: method %s.%s declares more than one binary attribute", method.Controller, method.Name)
			}
			binaryValue = bin
			continue
		}

		text := stringify(value, attr.Type)
		switch attr.Style {
		case schema.StyleTemplate:
			path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(text))
		case schema.StyleQuery:
			query.Add(name, text)
		case schema.StyleHeader:
			headers[name] = text
		case schema.StyleMatrix:
			matrix = append(matrix, ";"+url.PathEscape(name)+"="+url.PathEscape(text))
		case schema.StylePlain:
			if bodyless {
				query.Add(name, text)
			} else {
				plain[name] = value
			}
		case schema.StyleForm:
			if bodyless {
				query.Add(name, text)
			} else {
				form.Add(name, text)
			}
		default:
			query.Add(name, text)
		}
	}

	var (
		body        []byte
		contentType string
		err         error
	)
	switch {
	case multipart && len(plain) > 0:
		root := interface{}(plain)
		if len(plain) == 1 {
			for _, value := range plain {
				root = value
			}
		}
		body, contentType, err = buildRelated(root)
		if err != nil {
			return nil, err
		}
	case binaryValue != nil:
		// A binary payload owns the body; any plain or form attributes
		// fall back to the query string.
		for name, value := range plain {
			query.Add(name, stringify(value, ""))
		}
		for name, values := range form {
			for _, v := range values {
				query.Add(name, v)
			}
		}
		body = binaryValue.Data
		contentType = binaryValue.MimeType
	case len(form) > 0:
		body = []byte(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case len(plain) == 1 && method.ContentType != "":
		for _, value := range plain {
			body, err = encodePlain(value)
			if err != nil {
				return nil, err
			}
		}
		contentType = method.ContentType
	case len(plain) > 0:
		body, err = json.Marshal(plain)
		if err != nil {
			return nil, fmt.Errorf("pipeline: failed to encode body: %w", err)
		}
		contentType = "application/json"
	}

	fullPath := p.settings.PathPrefix + path + strings.Join(matrix, "")
	target := p.settings.EndpointURL + fullPath
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	if accept := acceptFor(method); accept != "" {
		headers["Accept"] = accept
	}
	if token := p.session.Token(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	return &transport.Request{
		Method:      method.Verb,
		URL:         target,
		ContentType: contentType,
		Headers:     headers,
		Body:        body,
	}, nil
}

func acceptFor(method schema.Method) string {
	if len(method.Produces) > 0 {
		return strings.Join(method.Produces, ", ")
	}
	return transport.AcceptHeader(method.ReturnType)
}

func asBinary(value interface{}) (*schema.Binary, error) {
	switch v := value.(type) {
	case schema.Binary:
		return &v, nil
	case *schema.Binary:
		return v, nil
	case []byte:
		return &schema.Binary{MimeType: "application/octet-stream", Data: v}, nil
	default:
		return nil, fmt.Errorf("binary attribute requires schema.Binary or []byte, got %T", value)
	}
}

// stringify renders an attribute value for a URL or header position.
func stringify(value interface{}, attrType string) string {
	if schema.IsDateType(attrType) {
		if t, ok := value.(time.Time); ok {
			return schema.FormatISO8601(t)
		}
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return schema.FormatISO8601(v)
	case fmt.Stringer:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return strings.Trim(string(encoded), `"`)
	}
}

// encodePlain renders a lone plain-body attribute: strings pass through,
// everything else is JSON.
func encodePlain(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to encode body: %w", err)
	}
	return encoded, nil
}
