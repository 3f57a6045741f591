package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// entry binds a declared spec to its executable and compiled schema.
type entry struct {
	spec   domain.ActionSpec
	fn     domain.ActionFunc
	schema *jsonschema.Schema
}

// Builder accumulates action registrations. Registration happens once at
// process start; Build returns the immutable registry handed to the
// orchestrator.
type Builder struct {
	entries map[string]*entry
}

// NewBuilder creates an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]*entry)}
}

// Register adds an action. Names are globally unique; a duplicate
// registration is a programming error and fails immediately. The parameter
// schema, when present, is compiled now so a malformed contract never
// reaches dispatch.
func (b *Builder) Register(spec domain.ActionSpec, fn domain.ActionFunc) error {
	if spec.Name == "" {
		return fmt.Errorf("action name is required")
	}
	if fn == nil {
		return fmt.Errorf("action %s: execution function is required", spec.Name)
	}
	if _, exists := b.entries[spec.Name]; exists {
		return fmt.Errorf("duplicate action name: %s", spec.Name)
	}

	e := &entry{spec: spec, fn: fn}
	if len(spec.ParamSchema) > 0 {
		schema, err := compileSchema(spec.Name, spec.ParamSchema)
		if err != nil {
			return fmt.Errorf("action %s: %w", spec.Name, err)
		}
		e.schema = schema
	}

	b.entries[spec.Name] = e
	return nil
}

// MustRegister is Register for static catalogs wired at startup.
func (b *Builder) MustRegister(spec domain.ActionSpec, fn domain.ActionFunc) {
	if err := b.Register(spec, fn); err != nil {
		panic(err)
	}
}

// Build freezes the registrations into a Registry.
func (b *Builder) Build(creds ports.CredentialProvider, logger *zap.Logger) *Registry {
	entries := make(map[string]*entry, len(b.entries))
	for name, e := range b.entries {
		entries[name] = e
	}
	return &Registry{entries: entries, creds: creds, logger: logger}
}

// Registry maps action names to invocable units and validates inputs before
// dispatch. It is immutable after Build and safe for concurrent use.
type Registry struct {
	entries map[string]*entry
	creds   ports.CredentialProvider
	logger  *zap.Logger
}

var _ ports.ActionInvoker = (*Registry)(nil)

// Resolve returns the declared spec for a name, or domain.ErrUnknownAction.
func (r *Registry) Resolve(name string) (domain.ActionSpec, error) {
	e, ok := r.entries[name]
	if !ok {
		return domain.ActionSpec{}, fmt.Errorf("%w: %s", domain.ErrUnknownAction, name)
	}
	return e.spec, nil
}

// Names returns the sorted catalog of registered action names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke validates params against the action's contract and dispatches to
// the external collaborator. Validation failures return
// *domain.InvalidParametersError without making any external call.
// Collaborator failures are normalized into *domain.ActionError.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, name)
	}

	if e.schema != nil {
		if params == nil {
			params = map[string]interface{}{}
		}
		if err := e.schema.Validate(normalize(params)); err != nil {
			return nil, &domain.InvalidParametersError{
				Action: name,
				Fields: validationFields(err),
			}
		}
	}

	var creds domain.Credentials
	if r.creds != nil && e.spec.Service != "" {
		var err error
		creds, err = r.creds.Credential(ctx, e.spec.Service)
		if err != nil {
			return nil, &domain.ActionError{
				Kind:      domain.ErrKindUnauthorized,
				Message:   fmt.Sprintf("credential for %s: %v", e.spec.Service, err),
				Retryable: true,
			}
		}
	}

	result, err := e.fn(ctx, creds, params)
	if err != nil {
		ae := domain.AsActionError(err)
		r.logger.Debug("action failed",
			zap.String("action", name),
			zap.String("kind", string(ae.Kind)),
			zap.Bool("retryable", ae.Retryable))
		return nil, ae
	}

	return result, nil
}

// compileSchema compiles a JSON Schema parameter contract.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal param schema: %w", err)
	}

	url := name + "/params.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile param schema: %w", err)
	}
	return schema, nil
}

// validationFields flattens a validation error into the offending field
// paths so the caller knows exactly what to fix.
func validationFields(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	seen := make(map[string]bool)
	var fields []string
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := "/" + strings.Join(v.InstanceLocation, "/")
			if !seen[loc] {
				seen[loc] = true
				fields = append(fields, loc)
			}
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return fields
}

// normalize rewrites params into plain JSON-decoded types so typed Go
// values (ints, nested structs from templates) validate like wire input.
func normalize(params map[string]interface{}) interface{} {
	data, err := json.Marshal(params)
	if err != nil {
		return params
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return params
	}
	return out
}
