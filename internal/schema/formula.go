package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNondeterministicFormula = errors.New("formula contains dice terms")

var (
	// @abilities.str.mod: ссылка на данные документа
	formulaRefRe = regexp.MustCompile(`@[\w.]+`)
	// 2d6[fire]: текстовая метка терма
	formulaFlavorRe = regexp.MustCompile(`\[[^\]]*\]`)
	// 1d20, d8, 4d6kh3, 1d%, 4dF, 2d(@x)
	formulaDiceRe  = regexp.MustCompile(`(?i)(?:^|[^a-z_])\d*d(?:\d|%|f\b|\()`)
	formulaCharsRe = regexp.MustCompile(`^[\w\s.,+\-*/%()@\[\]{}<>=!?:"']*$`)
)

// CheckFormula проверяет синтаксис формулы броска. При deterministic формула
// не может содержать кубиков.
func CheckFormula(formula string, deterministic bool) error {
	s := strings.TrimSpace(formula)
	if s == "" {
		return nil
	}
	if !formulaCharsRe.MatchString(s) {
		return errors.New("contains characters not allowed in a formula")
	}

	depth, brackets := 0, 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '[':
			brackets++
		case ']':
			brackets--
		}
		if depth < 0 || brackets < 0 {
			return errors.New("has unbalanced brackets")
		}
	}
	if depth != 0 || brackets != 0 {
		return errors.New("has unbalanced brackets")
	}

	if strings.ContainsAny(s[:1], "*/%") {
		return fmt.Errorf("cannot start with operator %q", s[:1])
	}
	if strings.ContainsAny(s[len(s)-1:], "+-*/") {
		return fmt.Errorf("cannot end with operator %q", s[len(s)-1:])
	}
	if strings.Contains(s, "()") {
		return errors.New("has an empty group")
	}

	if deterministic && HasDice(s) {
		return fmt.Errorf("%w: %q must be deterministic", ErrNondeterministicFormula, formula)
	}
	return nil
}

// HasDice сообщает, содержит ли формула кубики. Ссылки @... и метки [...] не учитываются.
func HasDice(formula string) bool {
	s := formulaRefRe.ReplaceAllString(formula, "0")
	s = formulaFlavorRe.ReplaceAllString(s, "")
	return formulaDiceRe.MatchString(s)
}
