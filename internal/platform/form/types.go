// Package form implements a declarative multi-section form: schema types,
// a condition interpreter for field visibility, typed answer storage, the
// fixed monitoring grid, and the section-by-section wizard state machine.
package form

import "errors"

// Kind is the value kind a field collects.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindSingle   Kind = "single"
	KindMulti    Kind = "multi"
	KindTextarea Kind = "textarea"
	KindGrid     Kind = "grid"
)

func (k Kind) valid() bool {
	switch k {
	case KindText, KindNumber, KindSingle, KindMulti, KindTextarea, KindGrid:
		return true
	}
	return false
}

// hasOptions reports whether the kind draws its values from a fixed list.
func (k Kind) hasOptions() bool {
	return k == KindSingle || k == KindMulti
}

var (
	ErrUnknownField  = errors.New("form: unknown field")
	ErrKindMismatch  = errors.New("form: value does not match field kind")
	ErrInvalidCell   = errors.New("form: invalid monitoring grid cell")
	ErrInvalidSchema = errors.New("form: invalid schema")
)

// Field is a single input of the form. Sub-fields share the schema-wide
// identifier namespace with every other field.
type Field struct {
	ID        string     `yaml:"id" json:"id"`
	Label     string     `yaml:"label" json:"label"`
	Kind      Kind       `yaml:"kind" json:"kind"`
	Options   []string   `yaml:"options,omitempty" json:"options,omitempty"`
	Required  bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Help      string     `yaml:"help,omitempty" json:"help,omitempty"`
	Condition *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	Fields    []Field    `yaml:"fields,omitempty" json:"fields,omitempty"`
	Layout    string     `yaml:"layout,omitempty" json:"layout,omitempty"`
	// Audience restricts the field to the listed roles. Empty means everyone.
	Audience []string `yaml:"audience,omitempty" json:"audience,omitempty"`
}

// visibleTo reports whether role belongs to the field's audience.
func (f *Field) visibleTo(role string) bool {
	if len(f.Audience) == 0 {
		return true
	}
	for _, r := range f.Audience {
		if r == role {
			return true
		}
	}
	return false
}

// Section is one step of the wizard.
type Section struct {
	ID          string  `yaml:"id" json:"id"`
	Title       string  `yaml:"title" json:"title"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []Field `yaml:"fields" json:"fields"`
}

// FieldError describes a required field left empty.
type FieldError struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Section int    `json:"section"`
}

// ValidationError carries every required-but-empty visible field found by a check.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return "form: required field " + e.Fields[0].ID + " is empty"
	}
	return "form: required fields are empty"
}
