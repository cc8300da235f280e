package schema

import (
	"fmt"
	"sync"
)

// Definition describes a registered model type: its registry name, the
// entity type tag the server emits, and its attribute schema.
type Definition struct {
	Name       string
	EntityType string
	Attributes map[string]Attribute
}

// Registry maps model names to their definitions. The request pipeline
// consults it while decoding responses into typed models. Construct one per
// client; there is no ambient global registry.
type Registry struct {
	mu          sync.RWMutex
	defs        map[string]Definition
	controllers map[string]Controller
}

func NewRegistry() *Registry {
	return &Registry{
		defs:        make(map[string]Definition),
		controllers: make(map[string]Controller),
	}
}

// Register adds or replaces a model definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("schema: model definition requires a name")
	}
	if def.EntityType == "" {
		def.EntityType = def.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition registered under the given name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Knows reports whether the declared type names a registered model or a
// collection of one ("Foo" or "Foo[]").
func (r *Registry) Knows(typ string) bool {
	elem, _ := ElementType(typ)
	_, ok := r.Lookup(elem)
	return ok
}

// Model is a typed client-side representation of a server entity,
// constructed during response decoding.
type Model struct {
	Type       string
	EntityType string
	Attributes map[string]interface{}
}

// NewModel constructs a model of the named registered type from a set of
// attribute values. Attributes absent from the definition are dropped.
func (r *Registry) NewModel(name string, attrs map[string]interface{}) (*Model, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("schema: model type %q is not registered", name)
	}
	m := &Model{
		Type:       def.Name,
		EntityType: def.EntityType,
		Attributes: make(map[string]interface{}, len(attrs)),
	}
	for attr, value := range attrs {
		if _, declared := def.Attributes[attr]; declared && value != nil {
			m.Attributes[attr] = value
		}
	}
	return m, nil
}

// Collection groups models of one type.
type Collection struct {
	Type   string
	Models []*Model
}

// NewCollection constructs a collection and populates it from an array of
// attribute maps.
func (r *Registry) NewCollection(name string, items []interface{}) (*Collection, error) {
	c := &Collection{Type: name}
	for _, item := range items {
		attrs, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		m, err := r.NewModel(name, attrs)
		if err != nil {
			return nil, err
		}
		c.Models = append(c.Models, m)
	}
	return c, nil
}

// Where returns the models whose attributes match every key-value pair in
// the query.
func (c *Collection) Where(query map[string]interface{}) []*Model {
	var out []*Model
	for _, m := range c.Models {
		match := true
		for attr, want := range query {
			if got, ok := m.Attributes[attr]; !ok || got != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, m)
		}
	}
	return out
}
