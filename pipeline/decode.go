package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/joshuarp/controller-sdk/schema"
	"github.com/joshuarp/controller-sdk/transport"
)

// Decode turns a response body into the declared return shape. Decoding is
// best effort: anything that cannot be interpreted degrades to the raw body
// rather than failing the call.
func (p *Pipeline) Decode(details *transport.Details, returnType string) interface{} {
	body := details.Body
	if len(body) == 0 {
		return nil
	}

	if contentType := details.Header("Content-Type"); strings.HasPrefix(contentType, "multipart/related") {
		if tree, err := parseRelated(body, contentType); err == nil {
			return p.decodeTyped(tree, returnType)
		}
		return string(body)
	}

	text := string(body)
	switch {
	case returnType == "", returnType == "void":
		return nil
	case returnType == "string", returnType == "char":
		return strings.Trim(text, `"`)
	case schema.IsDateType(returnType):
		if t, err := schema.ParseISO8601(strings.Trim(text, `"`)); err == nil {
			return t
		}
		return text
	case returnType == "boolean":
		if b, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			return b
		}
		return text
	case schema.IsPrimitiveType(returnType):
		if n, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return n
		}
		return text
	case schema.IsByteArrayType(returnType), schema.IsBinaryType(returnType):
		return body
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return text
	}
	return p.decodeTyped(raw, returnType)
}

// decodeTyped maps parsed JSON onto registered model and collection types,
// recursing into model-typed and date-typed fields. Unknown types pass
// through unchanged.
func (p *Pipeline) decodeTyped(raw interface{}, returnType string) interface{} {
	elem, isArray := schema.ElementType(returnType)
	if !p.registry.Knows(elem) {
		return raw
	}

	if isArray {
		items, ok := raw.([]interface{})
		if !ok {
			return raw
		}
		collection, err := p.decodeCollection(elem, items)
		if err != nil {
			return raw
		}
		return collection
	}

	attrs, ok := raw.(map[string]interface{})
	if !ok {
		return raw
	}
	model, err := p.decodeModel(elem, attrs)
	if err != nil {
		return raw
	}
	return model
}

func (p *Pipeline) decodeCollection(name string, items []interface{}) (*schema.Collection, error) {
	c := &schema.Collection{Type: name}
	for _, item := range items {
		attrs, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		model, err := p.decodeModel(name, attrs)
		if err != nil {
			return nil, err
		}
		c.Models = append(c.Models, model)
	}
	return c, nil
}

func (p *Pipeline) decodeModel(name string, attrs map[string]interface{}) (*schema.Model, error) {
	def, ok := p.registry.Lookup(name)
	if !ok {
		return p.registry.NewModel(name, attrs)
	}

	shaped := make(map[string]interface{}, len(attrs))
	for attrName, value := range attrs {
		decl, declared := def.Attributes[attrName]
		if !declared {
			continue
		}
		shaped[attrName] = p.decodeField(value, decl.Type)
	}
	return p.registry.NewModel(name, shaped)
}

func (p *Pipeline) decodeField(value interface{}, declaredType string) interface{} {
	if schema.IsDateType(declaredType) {
		if s, ok := value.(string); ok {
			if t, err := schema.ParseISO8601(s); err == nil {
				return t
			}
		}
		return value
	}
	if elem, isArray := schema.ElementType(declaredType); p.registry.Knows(elem) {
		if isArray {
			items, ok := value.([]interface{})
			if !ok {
				return value
			}
			collection, err := p.decodeCollection(elem, items)
			if err != nil {
				return value
			}
			return collection
		}
		attrs, ok := value.(map[string]interface{})
		if !ok {
			return value
		}
		model, err := p.decodeModel(elem, attrs)
		if err != nil {
			return value
		}
		return model
	}
	return value
}
