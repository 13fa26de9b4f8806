// Package schema provides front-matter validators built on juju/schema
// checkers, and the mapstructure decoding used to turn validated maps into
// typed metadata.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/juju/schema"
	"github.com/tendant/simple-studio/pkg/studio"
)

// FieldMap returns a validator that coerces front matter with
// schema.FieldMap(fields, defaults) and decodes the result into T. Keys not
// declared in fields pass through unchanged.
func FieldMap[T any](fields schema.Fields, defaults schema.Defaults) studio.Validator[T] {
	return &checkerValidator[T]{checker: schema.FieldMap(fields, defaults), keepExtra: true}
}

// Checker returns a validator for an arbitrary juju/schema checker. The
// checker must coerce a map into a map.
func Checker[T any](c schema.Checker) studio.Validator[T] {
	return &checkerValidator[T]{checker: c}
}

type checkerValidator[T any] struct {
	checker   schema.Checker
	keepExtra bool
}

func (v *checkerValidator[T]) Validate(ctx context.Context, input map[string]any) studio.Result[T] {
	if err := ctx.Err(); err != nil {
		return studio.Result[T]{Issues: []studio.Issue{{Message: err.Error()}}}
	}

	coerced, err := v.checker.Coerce(input, nil)
	if err != nil {
		return studio.Result[T]{Issues: []studio.Issue{{Message: err.Error()}}}
	}
	valid, ok := coerced.(map[string]any)
	if !ok {
		return studio.Result[T]{Issues: []studio.Issue{{Message: fmt.Sprintf("expected a map, got %T", coerced)}}}
	}
	if v.keepExtra {
		for k, val := range input {
			if _, declared := valid[k]; !declared {
				valid[k] = val
			}
		}
	}

	out, err := Decode[T](valid, false)
	if err != nil {
		return studio.Result[T]{Issues: Issues(err)}
	}
	return studio.Result[T]{Value: out}
}

// FieldSpec declares one front-matter field in configuration files.
type FieldSpec struct {
	// Type is one of string, int, float, bool, list, map, any.
	Type string `yaml:"type" json:"type"`
	// Of is the element type of a list or map; any when empty.
	Of       string   `yaml:"of" json:"of,omitempty"`
	Optional bool     `yaml:"optional" json:"optional,omitempty"`
	Default  any      `yaml:"default" json:"default,omitempty"`
	OneOf    []string `yaml:"one_of" json:"one_of,omitempty"`
}

// FromSpec builds a map-typed validator from declarative field specs.
func FromSpec(spec map[string]FieldSpec) (studio.Validator[map[string]any], error) {
	fields := schema.Fields{}
	defaults := schema.Defaults{}

	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fs := spec[name]
		checker, err := fs.checker()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = checker
		switch {
		case fs.Default != nil:
			defaults[name] = fs.Default
		case fs.Optional:
			defaults[name] = schema.Omit
		}
	}
	return FieldMap[map[string]any](fields, defaults), nil
}

func (fs FieldSpec) checker() (schema.Checker, error) {
	if len(fs.OneOf) > 0 {
		if fs.Type != "" && fs.Type != "string" {
			return nil, fmt.Errorf("one_of is only supported for string fields")
		}
		values := make([]schema.Checker, len(fs.OneOf))
		for i, v := range fs.OneOf {
			values[i] = schema.Const(v)
		}
		return schema.OneOf(values...), nil
	}

	switch fs.Type {
	case "list":
		elem, err := scalar(fs.Of)
		if err != nil {
			return nil, err
		}
		return schema.List(elem), nil
	case "map":
		elem, err := scalar(fs.Of)
		if err != nil {
			return nil, err
		}
		return schema.StringMap(elem), nil
	default:
		return scalar(fs.Type)
	}
}

func scalar(typ string) (schema.Checker, error) {
	switch typ {
	case "string":
		return schema.String(), nil
	case "int":
		return schema.ForceInt(), nil
	case "float":
		return schema.Float(), nil
	case "bool":
		return schema.Bool(), nil
	case "any", "":
		return schema.Any(), nil
	default:
		return nil, fmt.Errorf("unsupported field type %q", typ)
	}
}
