// Package resources declares the schema of every managed resource family.
package resources

import (
	"errors"
	"fmt"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// ErrUnknownResource is returned for a resource name with no schema.
var ErrUnknownResource = errors.New("unknown resource")

// Override adjusts a schema from configuration.
type Override struct {
	APIPath         string `yaml:"api_path"`
	ServerFiltering *bool  `yaml:"server_filtering"`
	PageSize        int    `yaml:"page_size"`
}

// Registry holds schemas in display order.
type Registry struct {
	order   []string
	schemas map[string]*models.Schema
}

// NewRegistry builds a registry from schemas; later duplicates replace earlier ones.
func NewRegistry(schemas ...*models.Schema) *Registry {
	r := &Registry{schemas: make(map[string]*models.Schema)}
	for _, s := range schemas {
		if _, dup := r.schemas[s.Name]; !dup {
			r.order = append(r.order, s.Name)
		}
		r.schemas[s.Name] = s
	}
	return r
}

// Default returns the registry of every admin screen.
func Default() *Registry {
	return NewRegistry(Accounts(), Reservations(), Players(), Teams(), Terrains(), Settings())
}

// Get looks up a schema by name.
func (r *Registry) Get(name string) (*models.Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return s, nil
}

// All returns the schemas in display order.
func (r *Registry) All() []*models.Schema {
	out := make([]*models.Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.schemas[name])
	}
	return out
}

// SetPageSize replaces the page size of every schema. n <= 0 is ignored.
func (r *Registry) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	for _, s := range r.schemas {
		s.PageSize = n
	}
}

// Apply applies configuration overrides. Naming an unknown resource is an error.
func (r *Registry) Apply(overrides map[string]Override) error {
	for name, o := range overrides {
		s, err := r.Get(name)
		if err != nil {
			return err
		}
		if o.APIPath != "" {
			s.APIPath = o.APIPath
		}
		if o.ServerFiltering != nil {
			s.ServerFiltering = *o.ServerFiltering
		}
		if o.PageSize > 0 {
			s.PageSize = o.PageSize
		}
	}
	return nil
}
