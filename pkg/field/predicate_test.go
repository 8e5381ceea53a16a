package field

import "testing"

func TestPredicateValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		predicate *Predicate
		wantErr   bool
	}{
		{"nil predicate is always visible", nil, false},
		{"well formed", When("a", 1).And("b", 2).Or("c", 3), false},
		{"no condition sets", &Predicate{}, true},
		{"empty condition set", &Predicate{AnyOf: []ConditionSet{{}}}, true},
		{"blank field name", &Predicate{AnyOf: []ConditionSet{{{Field: "  ", Equals: 1}}}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.predicate.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSpecCheck(t *testing.T) {
	t.Parallel()

	if err := (Spec{Name: "x", Kind: KindText}).Check(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if err := (Spec{Kind: KindText}).Check(); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if err := (Spec{Kind: KindDivider}).Check(); err != nil {
		t.Fatalf("divider needs no name: %v", err)
	}
	if err := (Spec{Name: "x", Kind: Kind("blob")}).Check(); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if err := (Spec{Name: "times", Kind: KindTimePair, Group: []string{"door"}}).Check(); err == nil {
		t.Fatalf("expected error for pair with one member")
	}
	if err := (Spec{Name: "x", Kind: KindText, Group: []string{"a"}}).Check(); err == nil {
		t.Fatalf("expected error for group on scalar kind")
	}
	malformed := Spec{Name: "x", Kind: KindText, Visibility: &Predicate{}}
	if err := malformed.Check(); err == nil {
		t.Fatalf("expected error for malformed predicate")
	}
}

// The structural check and the per-value Validate hook must coexist on a
// single Spec.
func TestSpecCheckAlongsideValueValidator(t *testing.T) {
	t.Parallel()

	spec := Spec{Name: "title", Kind: KindText, Validate: MaxLen(3)}
	if err := spec.Check(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if err := spec.Validate("ok"); err != nil {
		t.Fatalf("value within limit rejected: %v", err)
	}
	if err := spec.Validate("too long"); err == nil {
		t.Fatalf("expected error for value over limit")
	}
}

func TestCheckAllRejectsDuplicates(t *testing.T) {
	t.Parallel()

	specs := []Spec{
		{Name: "title", Kind: KindText},
		{Name: "title", Kind: KindText},
	}
	if err := CheckAll(specs); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}
