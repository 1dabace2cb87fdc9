package form

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a declarative visibility rule. A leaf names a Field and exactly
// one operator; a composite sets exactly one of All, Any or Not.
//
//	{field: reason, equals: DKA}
//	{field: treatment, includes: Insulin}
//	{any: [{field: a, present: true}, {not: {field: b, in: [x, y]}}]}
type Condition struct {
	Field     string `yaml:"field,omitempty" json:"field,omitempty"`
	Equals    any    `yaml:"equals,omitempty" json:"equals,omitempty"`
	NotEquals any    `yaml:"not_equals,omitempty" json:"not_equals,omitempty"`
	Includes  any    `yaml:"includes,omitempty" json:"includes,omitempty"`
	In        []any  `yaml:"in,omitempty" json:"in,omitempty"`
	Present   *bool  `yaml:"present,omitempty" json:"present,omitempty"`

	All []Condition `yaml:"all,omitempty" json:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty" json:"any,omitempty"`
	Not *Condition  `yaml:"not,omitempty" json:"not,omitempty"`
}

// Equals builds a leaf condition "field == value".
func Equals(field string, value any) *Condition {
	return &Condition{Field: field, Equals: value}
}

// Includes builds a leaf condition "value in field" for multi-choice fields.
func Includes(field, option string) *Condition {
	return &Condition{Field: field, Includes: option}
}

type operator int

const (
	opNone operator = iota
	opEquals
	opNotEquals
	opIncludes
	opIn
	opPresent
	opAll
	opAny
	opNot
)

// operator returns the single operator the condition uses, or opNone when
// zero or several are set.
func (c *Condition) operator() operator {
	found := opNone
	set := func(op operator, ok bool) {
		if !ok {
			return
		}
		if found != opNone {
			found = -1
			return
		}
		found = op
	}
	set(opEquals, c.Equals != nil)
	set(opNotEquals, c.NotEquals != nil)
	set(opIncludes, c.Includes != nil)
	set(opIn, len(c.In) > 0)
	set(opPresent, c.Present != nil)
	set(opAll, len(c.All) > 0)
	set(opAny, len(c.Any) > 0)
	set(opNot, c.Not != nil)
	if found < 0 {
		return opNone
	}
	return found
}

// Eval evaluates the condition against answers. It never mutates answers.
// A nil condition is always true.
func (c *Condition) Eval(answers Answers) bool {
	if c == nil {
		return true
	}
	switch c.operator() {
	case opAll:
		for i := range c.All {
			if !c.All[i].Eval(answers) {
				return false
			}
		}
		return true
	case opAny:
		for i := range c.Any {
			if c.Any[i].Eval(answers) {
				return true
			}
		}
		return false
	case opNot:
		return !c.Not.Eval(answers)
	}

	value, ok := answers[c.Field]
	switch c.operator() {
	case opEquals:
		return ok && matches(value, c.Equals)
	case opNotEquals:
		return !ok || !matches(value, c.NotEquals)
	case opIncludes:
		return ok && matches(value, c.Includes)
	case opIn:
		if !ok {
			return false
		}
		for _, lit := range c.In {
			if matches(value, lit) {
				return true
			}
		}
		return false
	case opPresent:
		return (ok && !value.IsEmpty()) == *c.Present
	}
	return false
}

// references appends every field identifier the condition reads.
func (c *Condition) references(out []string) []string {
	if c == nil {
		return out
	}
	if c.Field != "" {
		out = append(out, c.Field)
	}
	for i := range c.All {
		out = c.All[i].references(out)
	}
	for i := range c.Any {
		out = c.Any[i].references(out)
	}
	return c.Not.references(out)
}

func (c *Condition) check() error {
	if c == nil {
		return nil
	}
	op := c.operator()
	switch op {
	case opNone:
		return fmt.Errorf("%w: condition must use exactly one operator", ErrInvalidSchema)
	case opAll, opAny, opNot:
		if c.Field != "" {
			return fmt.Errorf("%w: composite condition cannot name a field", ErrInvalidSchema)
		}
		for i := range c.All {
			if err := c.All[i].check(); err != nil {
				return err
			}
		}
		for i := range c.Any {
			if err := c.Any[i].check(); err != nil {
				return err
			}
		}
		return c.Not.check()
	}
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("%w: condition is missing a field", ErrInvalidSchema)
	}
	return nil
}

// matches compares an answer with a literal. Numbers compare numerically,
// multi-choice answers match when the literal is one of the choices, and
// everything else compares as text.
func matches(value Value, lit any) bool {
	switch value.Kind {
	case KindNumber:
		if value.Number == nil {
			return false
		}
		want, ok := coerceNumber(lit)
		return ok && *value.Number == want
	case KindMulti:
		want := coerceString(lit)
		for _, choice := range value.Choices {
			if choice == want {
				return true
			}
		}
		return false
	default:
		return value.Text == coerceString(lit)
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(value)
	}
}
