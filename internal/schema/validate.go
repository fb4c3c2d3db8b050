package schema

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок валидации
const (
	ErrRequired          = "required"
	ErrNull              = "null"
	ErrTypeMismatch      = "type_mismatch"
	ErrBlank             = "blank"
	ErrChoiceInvalid     = "choice_invalid"
	ErrMin               = "min"
	ErrMax               = "max"
	ErrInteger           = "integer"
	ErrFormulaInvalid    = "formula_invalid"
	ErrNondeterministic  = "nondeterministic"
	ErrIdentifierInvalid = "identifier_invalid"
	ErrDuplicate         = "duplicate"
)

var ErrInvalid = errors.New("document failed validation")

// ValidationError: набор нарушений схемы одного документа.
type ValidationError struct {
	Kind   string
	Type   string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Type, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// FieldErrors достаёт []FieldError из err, если это ошибка валидации.
func FieldErrors(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return nil
}

var identifierRe = regexp.MustCompile(`(?i)^[a-z0-9_-]+$`)

// Validate проверяет data по набору полей и возвращает все нарушения.
func Validate(fs *Fields, data map[string]any) []FieldError {
	var errs []FieldError
	validateFields(fs, data, "", &errs)
	return errs
}

func validateFields(fs *Fields, data map[string]any, prefix string, errs *[]FieldError) {
	for _, f := range fs.List() {
		p := joinPath(prefix, f.Name)
		v, ok := data[f.Name]
		if !ok {
			if f.Required {
				*errs = append(*errs, ferr(ErrRequired, p, "Field '"+p+"' is required"))
			}
			continue
		}
		validateValue(f, v, p, errs)
	}
}

func validateValue(f *Field, v any, p string, errs *[]FieldError) {
	if v == nil {
		if !f.Nullable {
			*errs = append(*errs, ferr(ErrNull, p, "Field '"+p+"' may not be null"))
		}
		return
	}

	switch {
	case f.Kind.isText():
		s, err := toStringStrict(v)
		if err != nil {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' "+err.Error()))
			return
		}
		if strings.TrimSpace(s) == "" {
			if !f.Blank {
				*errs = append(*errs, ferr(ErrBlank, p, "Field '"+p+"' may not be blank"))
			}
			return
		}
		if len(f.ChoiceKeys) > 0 && !f.hasChoice(s) {
			*errs = append(*errs, ferr(ErrChoiceInvalid, p, fmt.Sprintf("Field '%s': %q is not a valid choice of %s", p, s, f.Choices)))
		}
		switch f.Kind {
		case KindIdentifier:
			if !identifierRe.MatchString(s) {
				*errs = append(*errs, ferr(ErrIdentifierInvalid, p, "Field '"+p+"' must be a slug of letters, digits, '-' or '_'"))
			}
		case KindFormula:
			if err := CheckFormula(s, f.Deterministic); err != nil {
				code := ErrFormulaInvalid
				if errors.Is(err, ErrNondeterministicFormula) {
					code = ErrNondeterministic
				}
				*errs = append(*errs, ferr(code, p, "Field '"+p+"' "+err.Error()))
			}
		}

	case f.Kind.isNumeric():
		if _, isStr := v.(string); isStr {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' must be a number"))
			return
		}
		n, err := toFloatStrict(v)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' must be a finite number"))
			return
		}
		if f.Integer && n != math.Trunc(n) {
			*errs = append(*errs, ferr(ErrInteger, p, "Field '"+p+"' must be an integer"))
		}
		if f.Min != nil && n < *f.Min {
			*errs = append(*errs, ferr(ErrMin, p, fmt.Sprintf("Field '%s' must be at least %v", p, *f.Min)))
		}
		if f.Max != nil && n > *f.Max {
			*errs = append(*errs, ferr(ErrMax, p, fmt.Sprintf("Field '%s' must be at most %v", p, *f.Max)))
		}
		if len(f.ChoiceKeys) > 0 && !f.hasChoice(formatNumber(n)) {
			*errs = append(*errs, ferr(ErrChoiceInvalid, p, fmt.Sprintf("Field '%s': %v is not a valid choice of %s", p, n, f.Choices)))
		}

	case f.Kind == KindBool:
		if _, ok := v.(bool); !ok {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' expected bool"))
		}

	case f.Kind == KindArray || f.Kind == KindSet:
		arr, ok := asSlice(v)
		if !ok {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' must be an array"))
			return
		}
		seen := map[string]struct{}{}
		for i, ev := range arr {
			ep := p + "." + strconv.Itoa(i)
			if f.Kind == KindSet {
				key := fmt.Sprintf("%T:%v", ev, ev)
				if _, dup := seen[key]; dup {
					*errs = append(*errs, ferr(ErrDuplicate, ep, "Field '"+p+"' contains duplicate element"))
					continue
				}
				seen[key] = struct{}{}
			}
			validateValue(f.Element, ev, ep, errs)
		}

	case f.Kind == KindMap:
		m, ok := asMap(v)
		if !ok {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' must be an object"))
			return
		}
		for _, k := range sortedKeys(m) {
			validateValue(f.Element, m[k], p+"."+k, errs)
		}

	case f.Kind == KindObject:
		m, ok := asMap(v)
		if !ok {
			*errs = append(*errs, ferr(ErrTypeMismatch, p, "Field '"+p+"' must be an object"))
			return
		}
		validateFields(f.Fields, m, p, errs)
	}
}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

func toStringStrict(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	default:
		return "", errors.New("must be string")
	}
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case interface{ Float64() (float64, error) }: // json.Number
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be float")
		}
		return f, nil
	default:
		return 0, errors.New("must be float")
	}
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		default:
			return false, errors.New("must be boolean")
		}
	default:
		return false, errors.New("must be boolean")
	}
}

func formatNumber(n float64) string { return strconv.FormatFloat(n, 'f', -1, 64) }
