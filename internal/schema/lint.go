package schema

import "fmt"

// Issue: замечание линтера схем.
type Issue struct {
	Entity  string `json:"entity"` // FQN: item.spell или item.physical
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	IssueFieldOverridden         = "field_overridden"
	IssueChoicesUnknown          = "choices_unknown"
	IssueInitialKeysUnknown      = "initial_keys_unknown"
	IssueDeterministicNonFormula = "deterministic_non_formula"
	IssueMinGreaterThanMax       = "min_gt_max"
	IssueInitialInvalid          = "initial_invalid"
)

// lintFields проверяет шаблоны и собственные поля сущностей на противоречия.
func lintFields(r *Registry) []Issue {
	var issues []Issue
	check := func(owner string, fs *Fields) {
		Walk(fs, func(p string, f *Field) {
			add := func(code, msg string) {
				issues = append(issues, Issue{Entity: owner, Field: p, Code: code, Message: msg})
			}
			if f.Choices != "" {
				if _, ok := r.ref.Catalog(f.Choices); !ok {
					add(IssueChoicesUnknown, fmt.Sprintf("choices catalog %q is not defined", f.Choices))
				}
			}
			for _, name := range f.initialKeysFrom {
				if _, ok := r.ref.Catalog(name); !ok {
					add(IssueInitialKeysUnknown, fmt.Sprintf("initial_keys catalog %q is not defined", name))
				}
			}
			if f.Deterministic && f.Kind != KindFormula {
				add(IssueDeterministicNonFormula, "deterministic applies only to formula fields")
			}
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				add(IssueMinGreaterThanMax, fmt.Sprintf("min %v is greater than max %v", *f.Min, *f.Max))
			}
			if f.HasInitial {
				var errs []FieldError
				validateValue(f, f.Initial, p, &errs)
				for _, fe := range errs {
					add(IssueInitialInvalid, fmt.Sprintf("initial=%q: %s", f.rawInitial, fe.Message))
				}
			}
		})
	}
	for _, name := range sortedTemplateNames(r) {
		check(name, r.templates[name].Fields)
	}
	for _, e := range r.Entities() {
		check(e.Key(), e.own)
	}
	return issues
}

func sortedTemplateNames(r *Registry) []string {
	m := make(map[string]any, len(r.templates))
	for k := range r.templates {
		m[k] = nil
	}
	return sortedKeys(m)
}
