// Package schema builds JSON schemas for model responses from Go types and
// validates raw responses against them.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rotisserie/eris"
)

// ErrInvalid is returned when data does not satisfy a schema.
var ErrInvalid = eris.New("schema: invalid document")

// Option adjusts a generated schema.
type Option func(root *jsonschema.Schema) error

// Enum restricts the string property at path to values. Path segments are
// property names; "[]" steps into array items, e.g. "bills.[].status".
func Enum(path string, values ...string) Option {
	return func(root *jsonschema.Schema) error {
		s, err := lookup(root, path)
		if err != nil {
			return err
		}
		s.Enum = make([]any, len(values))
		for i, v := range values {
			s.Enum[i] = v
		}
		return nil
	}
}

// Range bounds the numeric property at path, inclusive.
func Range(path string, minimum, maximum float64) Option {
	return func(root *jsonschema.Schema) error {
		s, err := lookup(root, path)
		if err != nil {
			return err
		}
		s.Minimum = &minimum
		s.Maximum = &maximum
		return nil
	}
}

func lookup(root *jsonschema.Schema, path string) (*jsonschema.Schema, error) {
	s := root
	for _, seg := range strings.Split(path, ".") {
		var next *jsonschema.Schema
		if seg == "[]" {
			next = s.Items
		} else {
			next = s.Properties[seg]
		}
		if next == nil {
			return nil, eris.Errorf("schema: no property at %q (segment %q)", path, seg)
		}
		s = next
	}
	return s, nil
}

// Schema is a resolved schema for one response type.
type Schema struct {
	name     string
	root     *jsonschema.Schema
	resolved *jsonschema.Resolved
	text     string
}

// For generates the schema of T and applies opts.
func For[T any](name string, opts ...Option) (*Schema, error) {
	root, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: generate %s", name)
	}
	root.Title = name
	for _, o := range opts {
		if err := o(root); err != nil {
			return nil, eris.Wrapf(err, "schema: %s", name)
		}
	}

	resolved, err := root.Resolve(nil)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: resolve %s", name)
	}
	text, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, eris.Wrapf(err, "schema: marshal %s", name)
	}
	return &Schema{name: name, root: root, resolved: resolved, text: string(text)}, nil
}

// MustFor is For for package-level schemas.
func MustFor[T any](name string, opts ...Option) *Schema {
	s, err := For[T](name, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema title.
func (s *Schema) Name() string { return s.name }

// String returns the indented JSON schema document.
func (s *Schema) String() string { return s.text }

// Validate checks that raw is JSON satisfying the schema.
func (s *Schema) Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return eris.Wrapf(ErrInvalid, "%s: not JSON: %v", s.name, err)
	}
	if err := s.resolved.Validate(doc); err != nil {
		return eris.Wrapf(ErrInvalid, "%s: %v", s.name, err)
	}
	return nil
}

// Decode validates raw and unmarshals it into out.
func (s *Schema) Decode(raw []byte, out any) error {
	if err := s.Validate(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrapf(err, "schema: decode %s", s.name)
	}
	return nil
}
