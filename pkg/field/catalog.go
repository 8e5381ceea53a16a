package field

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps entity kinds ("show", "member", "album") to their declared
// field lists. Catalogs are loaded once at startup from YAML documents.
type Catalog struct {
	entities map[string][]Spec
}

// Entity returns the field list declared for the given entity kind.
func (c *Catalog) Entity(kind string) ([]Spec, bool) {
	specs, ok := c.entities[strings.TrimSpace(kind)]
	return specs, ok
}

// Entities lists the declared entity kinds in sorted order.
func (c *Catalog) Entities() []string {
	names := make([]string, 0, len(c.entities))
	for name := range c.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type catalogDocument struct {
	Entities map[string][]specDocument `yaml:"entities"`
}

type specDocument struct {
	Name        string           `yaml:"name"`
	Kind        string           `yaml:"kind"`
	Group       []string         `yaml:"group,omitempty"`
	Label       string           `yaml:"label,omitempty"`
	Required    bool             `yaml:"required,omitempty"`
	Choices     []Choice         `yaml:"choices,omitempty"`
	Initial     any              `yaml:"initial,omitempty"`
	VisibleWhen []map[string]any `yaml:"visible_when,omitempty"`
	Rules       []ruleDocument   `yaml:"rules,omitempty"`
}

type ruleDocument struct {
	Kind    string            `yaml:"kind"`
	Params  map[string]string `yaml:"params,omitempty"`
	Message string            `yaml:"message,omitempty"`
}

// LoadFS walks the provided filesystem and parses every .yml/.yaml catalog
// file into a single Catalog. Later files may not redeclare an entity kind
// a previous file already defined. When fsys is nil the catalog is empty.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	catalog := &Catalog{entities: make(map[string][]Spec)}
	if fsys == nil {
		return catalog, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isCatalogFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("field: read %s: %w", path, err)
		}

		var doc catalogDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("field: parse %s: %w", path, err)
		}

		for kind, fields := range doc.Entities {
			id := strings.TrimSpace(kind)
			if id == "" {
				return fmt.Errorf("field: file %s declares an empty entity kind", path)
			}
			if _, exists := catalog.entities[id]; exists {
				return fmt.Errorf("field: duplicate entity kind %q (file %s)", id, path)
			}
			specs, err := buildSpecs(fields)
			if err != nil {
				return fmt.Errorf("field: entity %q (file %s): %w", id, path, err)
			}
			catalog.entities[id] = specs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func isCatalogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func buildSpecs(docs []specDocument) ([]Spec, error) {
	specs := make([]Spec, 0, len(docs))
	for _, doc := range docs {
		spec := Spec{
			Name:     strings.TrimSpace(doc.Name),
			Kind:     Kind(strings.TrimSpace(doc.Kind)),
			Group:    doc.Group,
			Label:    doc.Label,
			Required: doc.Required,
			Choices:  doc.Choices,
			Initial:  doc.Initial,
		}
		if len(doc.VisibleWhen) > 0 {
			spec.Visibility = predicateFromDocument(doc.VisibleWhen)
		}
		validate, err := validatorFromRules(spec, doc.Rules)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", spec.Name, err)
		}
		spec.Validate = validate
		specs = append(specs, spec)
	}
	if err := CheckAll(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// predicateFromDocument maps the YAML shorthand (a list of key/value maps)
// into the structured tree: each map is an AND set, the list is the OR.
func predicateFromDocument(clauses []map[string]any) *Predicate {
	predicate := &Predicate{}
	for _, clause := range clauses {
		keys := make([]string, 0, len(clause))
		for key := range clause {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		set := make(ConditionSet, 0, len(clause))
		for _, key := range keys {
			set = append(set, Condition{Field: key, Equals: clause[key]})
		}
		predicate.AnyOf = append(predicate.AnyOf, set)
	}
	return predicate
}

func validatorFromRules(spec Spec, rules []ruleDocument) (Validator, error) {
	if len(rules) == 0 {
		if spec.Kind == KindSelect || spec.Kind == KindMultiSelect {
			if len(spec.Choices) > 0 {
				return OneOf(spec.Choices), nil
			}
		}
		return nil, nil
	}

	validators := make([]Validator, 0, len(rules)+1)
	if len(spec.Choices) > 0 {
		validators = append(validators, OneOf(spec.Choices))
	}
	for _, rule := range rules {
		validate, err := buildRule(rule)
		if err != nil {
			return nil, err
		}
		validators = append(validators, validate)
	}
	return All(validators...), nil
}

func buildRule(rule ruleDocument) (Validator, error) {
	switch strings.TrimSpace(rule.Kind) {
	case "maxLength":
		limit, err := paramInt(rule.Params, "value")
		if err != nil {
			return nil, fmt.Errorf("rule maxLength: %w", err)
		}
		return MaxLen(limit), nil
	case "pattern":
		expr := rule.Params["pattern"]
		if expr == "" {
			return nil, fmt.Errorf("rule pattern: missing pattern param")
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("rule pattern: %w", err)
		}
		return PatternRegexp(re, rule.Message), nil
	case "range":
		min, err := paramFloat(rule.Params, "min")
		if err != nil {
			return nil, fmt.Errorf("rule range: %w", err)
		}
		max, err := paramFloat(rule.Params, "max")
		if err != nil {
			return nil, fmt.Errorf("rule range: %w", err)
		}
		return NumberRange(min, max), nil
	case "date":
		layout := rule.Params["layout"]
		if layout == "" {
			layout = "2006-01-02"
		}
		return DateFormat(layout), nil
	case "url":
		return URL(), nil
	case "price":
		return Price(), nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
}

func paramInt(params map[string]string, key string) (int, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing %s param", key)
	}
	var value int
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return value, nil
}

func paramFloat(params map[string]string, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing %s param", key)
	}
	var value float64
	if _, err := fmt.Sscanf(raw, "%g", &value); err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return value, nil
}
