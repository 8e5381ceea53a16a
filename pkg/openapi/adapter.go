// Package openapi derives declarative field lists from an OpenAPI
// operation's request body, so an admin form can be declared once in the API
// document that already describes the persistence endpoint.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/bandfolio/formkit/pkg/field"
)

const (
	extensionKind        = "x-formkit-kind"
	extensionVisibleWhen = "x-formkit-visible-when"
)

// FieldsFromData loads an OpenAPI document from raw bytes and extracts the
// field list for the operation with the given id.
func FieldsFromData(ctx context.Context, data []byte, operationID string) ([]field.Spec, error) {
	if len(data) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	return FieldsFromDocument(doc, operationID)
}

// FieldsFromDocument extracts the field list for one operation from an
// already-loaded document.
func FieldsFromDocument(doc *openapi3.T, operationID string) ([]field.Spec, error) {
	if doc == nil {
		return nil, errors.New("openapi: document is nil")
	}
	operation := findOperation(doc, operationID)
	if operation == nil {
		return nil, fmt.Errorf("openapi: operation %q not found", operationID)
	}

	schema := requestSchema(operation)
	if schema == nil {
		return nil, fmt.Errorf("openapi: operation %q has no object request body", operationID)
	}

	required := make(map[string]struct{}, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]field.Spec, 0, len(names))
	for _, name := range names {
		property := schema.Properties[name]
		if property == nil || property.Value == nil {
			continue
		}
		spec, err := buildSpec(name, property.Value)
		if err != nil {
			return nil, fmt.Errorf("openapi: operation %q: %w", operationID, err)
		}
		_, spec.Required = required[name]
		specs = append(specs, spec)
	}

	if err := field.CheckAll(specs); err != nil {
		return nil, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}
	return specs, nil
}

func findOperation(doc *openapi3.T, operationID string) *openapi3.Operation {
	if doc.Paths == nil {
		return nil
	}
	for _, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for _, operation := range []*openapi3.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if operation != nil && operation.OperationID == operationID {
				return operation
			}
		}
	}
	return nil
}

func requestSchema(operation *openapi3.Operation) *openapi3.Schema {
	if operation.RequestBody == nil || operation.RequestBody.Value == nil {
		return nil
	}
	content := operation.RequestBody.Value.Content
	for _, mediaType := range []string{"application/json", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func buildSpec(name string, schema *openapi3.Schema) (field.Spec, error) {
	spec := field.Spec{
		Name:    name,
		Label:   schema.Title,
		Initial: schema.Default,
	}

	kind, err := resolveKind(name, schema)
	if err != nil {
		return field.Spec{}, err
	}
	spec.Kind = kind

	if len(schema.Enum) > 0 {
		for _, raw := range schema.Enum {
			spec.Choices = append(spec.Choices, field.Choice{Value: fmt.Sprint(raw)})
		}
		if spec.Kind == field.KindText {
			spec.Kind = field.KindSelect
		}
		spec.Validate = field.OneOf(spec.Choices)
	}

	predicate, err := visibilityExtension(schema.Extensions)
	if err != nil {
		return field.Spec{}, fmt.Errorf("field %q: %w", name, err)
	}
	spec.Visibility = predicate

	return spec, nil
}

// resolveKind maps schema type/format onto the engine's closed kind set. The
// x-formkit-kind extension wins when present so documents can mark asset and
// rich-text fields explicitly.
func resolveKind(name string, schema *openapi3.Schema) (field.Kind, error) {
	if raw, ok := schema.Extensions[extensionKind]; ok {
		value, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("field %q: %s must be a string", name, extensionKind)
		}
		return field.Kind(strings.TrimSpace(value)), nil
	}

	switch {
	case schema.Type.Is(openapi3.TypeBoolean):
		return field.KindToggle, nil
	case schema.Type.Is(openapi3.TypeNumber), schema.Type.Is(openapi3.TypeInteger):
		return field.KindNumber, nil
	case schema.Type.Is(openapi3.TypeArray):
		return field.KindMultiSelect, nil
	case schema.Type.Is(openapi3.TypeString):
		if schema.Format == "date" {
			return field.KindDate, nil
		}
		return field.KindText, nil
	default:
		return "", fmt.Errorf("field %q: unsupported schema type", name)
	}
}

// visibilityExtension parses x-formkit-visible-when: a list of key/value
// maps, each map an AND set, the list an OR, matching the YAML catalog
// shorthand.
func visibilityExtension(extensions map[string]any) (*field.Predicate, error) {
	raw, ok := extensions[extensionVisibleWhen]
	if !ok {
		return nil, nil
	}
	clauses, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list of condition maps", extensionVisibleWhen)
	}

	predicate := &field.Predicate{}
	for _, rawClause := range clauses {
		clause, ok := rawClause.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s entries must be maps", extensionVisibleWhen)
		}
		keys := make([]string, 0, len(clause))
		for key := range clause {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		set := make(field.ConditionSet, 0, len(clause))
		for _, key := range keys {
			set = append(set, field.Condition{Field: key, Equals: clause[key]})
		}
		predicate.AnyOf = append(predicate.AnyOf, set)
	}
	return predicate, nil
}
