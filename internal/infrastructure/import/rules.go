package csvimport

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType is the expected shape of a cell
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeUUID    FieldType = "uuid"
)

// DateLayout is the default date format for TypeDate cells
const DateLayout = "2006-01-02"

// FieldRule declares what a column must hold
type FieldRule struct {
	Column       string
	Type         FieldType
	Required     bool
	MaxLength    int
	Min          *decimal.Decimal
	MinExclusive bool // Min is a strict lower bound
	Unique       bool
	DateLayout   string
}

// FieldRuleBuilder builds a FieldRule fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{
		Column:     normalizeHeader(column),
		Type:       TypeString,
		DateLayout: DateLayout,
	}}
}

func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

func (b *FieldRuleBuilder) UUID() *FieldRuleBuilder {
	b.rule.Type = TypeUUID
	return b
}

func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Positive requires a decimal strictly greater than zero
func (b *FieldRuleBuilder) Positive() *FieldRuleBuilder {
	zero := decimal.Zero
	b.rule.Type = TypeDecimal
	b.rule.Min = &zero
	b.rule.MinExclusive = true
	return b
}

// NonNegative requires a decimal of at least zero
func (b *FieldRuleBuilder) NonNegative() *FieldRuleBuilder {
	zero := decimal.Zero
	b.rule.Type = TypeDecimal
	b.rule.Min = &zero
	b.rule.MinExclusive = false
	return b
}

// Unique rejects a value already seen in an earlier row of the same file
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// Validator checks rows against a fixed rule set and accumulates errors
type Validator struct {
	rules  []FieldRule
	seen   map[string]map[string]int
	errors *ErrorCollection
}

// NewValidator creates a Validator keeping at most maxErrors errors
func NewValidator(rules []FieldRule, maxErrors int) *Validator {
	return &Validator{
		rules:  rules,
		seen:   make(map[string]map[string]int),
		errors: NewErrorCollection(maxErrors),
	}
}

// RequiredColumns lists the columns that must appear in the header
func (v *Validator) RequiredColumns() []string {
	var cols []string
	for _, r := range v.rules {
		if r.Required {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

// Validate checks every rule against row and reports whether it passed.
// Rules are evaluated in declaration order so errors come out stable.
func (v *Validator) Validate(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		if !v.check(row, rule) {
			ok = false
		}
	}
	return ok
}

func (v *Validator) check(row *Row, rule FieldRule) bool {
	value := row.Get(rule.Column)
	if value == "" {
		if rule.Required {
			v.errors.Add(RowError{Line: row.Line, Column: rule.Column, Code: CodeRequired,
				Message: "value is required"})
			return false
		}
		return true
	}

	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		v.errors.Add(RowError{Line: row.Line, Column: rule.Column, Code: CodeTooLong,
			Message: fmt.Sprintf("at most %d characters", rule.MaxLength), Value: value})
		return false
	}

	switch rule.Type {
	case TypeDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil {
			v.typeError(row, rule, value, "a decimal number")
			return false
		}
		if rule.Min != nil && (d.LessThan(*rule.Min) || (rule.MinExclusive && d.Equal(*rule.Min))) {
			bound := "at least"
			if rule.MinExclusive {
				bound = "greater than"
			}
			v.errors.Add(RowError{Line: row.Line, Column: rule.Column, Code: CodeOutOfRange,
				Message: fmt.Sprintf("must be %s %s", bound, rule.Min.String()), Value: value})
			return false
		}
	case TypeDate:
		if _, err := time.Parse(rule.DateLayout, value); err != nil {
			v.typeError(row, rule, value, "a date "+rule.DateLayout)
			return false
		}
	case TypeUUID:
		if _, err := uuid.Parse(value); err != nil {
			v.typeError(row, rule, value, "a UUID")
			return false
		}
	}

	if rule.Unique {
		seen := v.seen[rule.Column]
		if seen == nil {
			seen = make(map[string]int)
			v.seen[rule.Column] = seen
		}
		if first, dup := seen[value]; dup {
			v.errors.Add(RowError{Line: row.Line, Column: rule.Column, Code: CodeDuplicate,
				Message: fmt.Sprintf("already used on line %d", first), Value: value})
			return false
		}
		seen[value] = row.Line
	}
	return true
}

func (v *Validator) typeError(row *Row, rule FieldRule, value, expected string) {
	v.errors.Add(RowError{Line: row.Line, Column: rule.Column, Code: CodeInvalidType,
		Message: "expected " + expected, Value: value})
}

// Errors returns the accumulated errors
func (v *Validator) Errors() *ErrorCollection {
	return v.errors
}
