package schema

import "fmt"

// Controller is a named group of remote methods, typically generated from
// the server's published metadata.
type Controller struct {
	Name    string
	Methods map[string]Method
}

// RegisterController adds or replaces a controller and its methods. Each
// method is stamped with the controller name so it can be prepared and
// fingerprinted standalone.
func (r *Registry) RegisterController(ctrl Controller) error {
	if ctrl.Name == "" {
		return fmt.Errorf("schema: controller requires a name")
	}
	for name, method := range ctrl.Methods {
		method.Controller = ctrl.Name
		if method.Name == "" {
			method.Name = name
		}
		ctrl.Methods[name] = method
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[ctrl.Name] = ctrl
	return nil
}

// LookupController returns a registered controller by name.
func (r *Registry) LookupController(name string) (Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.controllers[name]
	return ctrl, ok
}

// LookupMethod returns one method of a registered controller.
func (r *Registry) LookupMethod(controller, method string) (Method, bool) {
	ctrl, ok := r.LookupController(controller)
	if !ok {
		return Method{}, false
	}
	m, ok := ctrl.Methods[method]
	return m, ok
}
