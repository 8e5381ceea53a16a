package field

// InitialValues builds a fresh working snapshot seeded from each spec's
// declared initial value. Dividers and unnamed specs contribute nothing.
func InitialValues(specs []Spec) map[string]any {
	values := make(map[string]any, len(specs))
	for _, spec := range specs {
		if spec.Name == "" || spec.Kind == KindDivider {
			continue
		}
		values[spec.Name] = spec.Initial
	}
	return values
}

// ByName indexes specs by name, skipping dividers.
func ByName(specs []Spec) map[string]Spec {
	index := make(map[string]Spec, len(specs))
	for _, spec := range specs {
		if spec.Name == "" || spec.Kind == KindDivider {
			continue
		}
		index[spec.Name] = spec
	}
	return index
}
