package agentloop

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/martinemde/toolchat/unifiedllm"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ToolName identifies one of the tools the agent can offer the model.
type ToolName string

const (
	ReadFile  ToolName = "read_file"
	ListFiles ToolName = "list_files"
	EditFile  ToolName = "edit_file"
)

// KnownTools lists every ToolName in catalog order.
var KnownTools = []ToolName{ReadFile, ListFiles, EditFile}

// Valid reports whether n is one of KnownTools.
func (n ToolName) Valid() bool {
	for _, known := range KnownTools {
		if n == known {
			return true
		}
	}
	return false
}

// ToolHandler runs a tool. arguments has already been validated against the
// tool's input schema. A returned error becomes an error-tagged ToolResult.
type ToolHandler interface {
	Execute(ctx context.Context, arguments json.RawMessage) (string, error)
}

// ToolHandlerFunc adapts a plain function to ToolHandler.
type ToolHandlerFunc func(ctx context.Context, arguments json.RawMessage) (string, error)

func (f ToolHandlerFunc) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	return f(ctx, arguments)
}

// ToolDefinition is the static description of a tool plus its handler.
type ToolDefinition struct {
	Name        ToolName
	Description string
	InputSchema *jsonschema.Schema
	Handler     ToolHandler
}

var schemaReflector = &jsonschema.Reflector{
	Anonymous:                 true,
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

// InputSchemaFor reflects the JSON schema of a tool input struct.
func InputSchemaFor(input interface{}) *jsonschema.Schema {
	schema := schemaReflector.Reflect(input)
	schema.Version = ""
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

// NewTool builds a ToolDefinition whose schema is reflected from In and
// whose handler decodes the arguments into In before calling fn.
func NewTool[In any](name ToolName, description string, fn func(ctx context.Context, in In) (string, error)) ToolDefinition {
	var zero In
	return ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: InputSchemaFor(zero),
		Handler: ToolHandlerFunc(func(ctx context.Context, arguments json.RawMessage) (string, error) {
			var in In
			if len(arguments) > 0 {
				if err := json.Unmarshal(arguments, &in); err != nil {
					return "", errors.Wrap(err, "decode arguments")
				}
			}
			return fn(ctx, in)
		}),
	}
}

type registeredTool struct {
	def       ToolDefinition
	params    map[string]interface{}
	validator *gojsonschema.Schema
}

// ToolRegistry is the fixed, ordered tool catalog of a session. It is
// immutable after construction.
type ToolRegistry struct {
	order []ToolName
	tools map[ToolName]*registeredTool
}

// NewToolRegistry registers defs in order. Unknown, duplicate or
// handler-less definitions are configuration errors.
func NewToolRegistry(defs ...ToolDefinition) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[ToolName]*registeredTool, len(defs))}
	for _, def := range defs {
		if !def.Name.Valid() {
			return nil, errors.Errorf("unknown tool %q", def.Name)
		}
		if _, exists := r.tools[def.Name]; exists {
			return nil, errors.Errorf("duplicate tool %q", def.Name)
		}
		if def.Handler == nil {
			return nil, errors.Errorf("tool %q has no handler", def.Name)
		}
		if def.InputSchema == nil {
			def.InputSchema = &jsonschema.Schema{Type: "object"}
		}

		raw, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "encode schema for %s", def.Name)
		}
		var params map[string]interface{}
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.Wrapf(err, "decode schema for %s", def.Name)
		}
		validator, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "compile schema for %s", def.Name)
		}

		r.order = append(r.order, def.Name)
		r.tools[def.Name] = &registeredTool{def: def, params: params, validator: validator}
	}
	return r, nil
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	t, ok := r.tools[ToolName(name)]
	if !ok {
		return ToolDefinition{}, false
	}
	return t.def, true
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []ToolName {
	names := make([]ToolName, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	return len(r.order)
}

// Definitions returns the tool definitions in registration order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Catalog converts the registry into the tool definitions sent to the model.
func (r *ToolRegistry) Catalog() []unifiedllm.ToolDefinition {
	catalog := make([]unifiedllm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		catalog = append(catalog, unifiedllm.ToolDefinition{
			Name:        string(name),
			Description: t.def.Description,
			Parameters:  t.params,
		})
	}
	return catalog
}

// validate checks arguments against the input schema of the named tool.
func (r *ToolRegistry) validate(name ToolName, arguments json.RawMessage) error {
	t, ok := r.tools[name]
	if !ok {
		return errors.Errorf("unknown tool %q", name)
	}
	result, err := t.validator.Validate(gojsonschema.NewBytesLoader(arguments))
	if err != nil {
		return errors.Wrap(err, "arguments are not valid JSON")
	}
	if result.Valid() {
		return nil
	}
	msg := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += desc.String()
	}
	return errors.New(msg)
}
