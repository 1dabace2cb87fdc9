package form

import (
	"errors"
	"fmt"
	"strings"
)

// Schema is an immutable, indexed form definition. Build one with New or Parse.
type Schema struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Version  string    `json:"version,omitempty"`
	Sections []Section `json:"sections"`

	index map[string]*fieldRef
	grid  *fieldRef
}

// fieldRef locates a field inside the schema.
type fieldRef struct {
	field   *Field
	section int
	parents []*Field
}

// New lints the sections and returns an indexed schema.
func New(id, title string, sections []Section) (*Schema, error) {
	s := &Schema{ID: id, Title: title, Sections: sections}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) build() error {
	if len(s.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidSchema)
	}
	s.index = make(map[string]*fieldRef)

	var errs []error
	var walk func(fields []Field, section int, parents []*Field)
	walk = func(fields []Field, section int, parents []*Field) {
		for i := range fields {
			f := &fields[i]
			if err := s.lintField(f); err != nil {
				errs = append(errs, err)
			}
			if _, dup := s.index[f.ID]; dup {
				errs = append(errs, fmt.Errorf("%w: duplicate field id %q", ErrInvalidSchema, f.ID))
			}
			ref := &fieldRef{field: f, section: section, parents: parents}
			s.index[f.ID] = ref
			if f.Kind == KindGrid {
				if s.grid != nil {
					errs = append(errs, fmt.Errorf("%w: more than one grid field (%q, %q)", ErrInvalidSchema, s.grid.field.ID, f.ID))
				}
				s.grid = ref
			}
			if len(f.Fields) > 0 {
				next := append(append([]*Field(nil), parents...), f)
				walk(f.Fields, section, next)
			}
		}
	}
	for i := range s.Sections {
		if len(s.Sections[i].Fields) == 0 {
			errs = append(errs, fmt.Errorf("%w: section %q has no fields", ErrInvalidSchema, s.Sections[i].ID))
		}
		walk(s.Sections[i].Fields, i, nil)
	}

	for _, ref := range s.index {
		for _, id := range ref.field.Condition.references(nil) {
			if _, ok := s.index[id]; ok {
				continue
			}
			if _, _, ok := ParseCellID(id); ok && s.grid != nil {
				continue
			}
			errs = append(errs, fmt.Errorf("%w: field %q has a condition on unknown field %q", ErrInvalidSchema, ref.field.ID, id))
		}
	}
	return errors.Join(errs...)
}

func (s *Schema) lintField(f *Field) error {
	switch {
	case strings.TrimSpace(f.ID) == "":
		return fmt.Errorf("%w: field %q has no id", ErrInvalidSchema, f.Label)
	case looksLikeCellID(f.ID):
		return fmt.Errorf("%w: field id %q collides with grid cell ids", ErrInvalidSchema, f.ID)
	case !f.Kind.valid():
		return fmt.Errorf("%w: field %q has unknown kind %q", ErrInvalidSchema, f.ID, f.Kind)
	case f.Kind.hasOptions() && len(f.Options) == 0:
		return fmt.Errorf("%w: field %q needs options", ErrInvalidSchema, f.ID)
	}
	if err := f.Condition.check(); err != nil {
		return fmt.Errorf("field %q: %w", f.ID, err)
	}
	return nil
}

// Field returns the field declared with id.
func (s *Schema) Field(id string) (*Field, bool) {
	ref, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return ref.field, true
}

// SectionOf returns the index of the section declaring id.
func (s *Schema) SectionOf(id string) (int, bool) {
	ref, ok := s.resolve(id)
	if !ok {
		return 0, false
	}
	return ref.section, true
}

// resolve finds the field ref for id, mapping grid cell ids to the grid field.
func (s *Schema) resolve(id string) (*fieldRef, bool) {
	if ref, ok := s.index[id]; ok {
		return ref, true
	}
	if s.grid != nil {
		if _, _, ok := ParseCellID(id); ok {
			return s.grid, true
		}
	}
	return nil, false
}

// EvaluateVisibility applies a field's own condition. Fields without a
// condition are always visible.
func EvaluateVisibility(f *Field, answers Answers) bool {
	return f.Condition.Eval(answers)
}

// Visible reports whether the field (or grid cell) id is visible to role
// given answers. Visibility is inherited: every ancestor must be visible too.
func (s *Schema) Visible(id string, answers Answers, role string) bool {
	ref, ok := s.resolve(id)
	if !ok {
		return false
	}
	return visibleRef(ref, answers, role)
}

func visibleRef(ref *fieldRef, answers Answers, role string) bool {
	for _, p := range ref.parents {
		if !p.visibleTo(role) || !EvaluateVisibility(p, answers) {
			return false
		}
	}
	return ref.field.visibleTo(role) && EvaluateVisibility(ref.field, answers)
}

// VisibleFields returns copies of the section's fields that are visible,
// with hidden sub-fields pruned.
func (s *Schema) VisibleFields(section int, answers Answers, role string) []Field {
	if section < 0 || section >= len(s.Sections) {
		return nil
	}
	return pruneHidden(s.Sections[section].Fields, answers, role)
}

func pruneHidden(fields []Field, answers Answers, role string) []Field {
	var out []Field
	for i := range fields {
		f := fields[i]
		if !f.visibleTo(role) || !EvaluateVisibility(&f, answers) {
			continue
		}
		if len(f.Fields) > 0 {
			f.Fields = pruneHidden(f.Fields, answers, role)
		}
		out = append(out, f)
	}
	return out
}

// MissingRequired lists the visible required fields of section that are empty.
func (s *Schema) MissingRequired(section int, answers Answers, role string) []FieldError {
	var missing []FieldError
	for _, f := range s.VisibleFields(section, answers, role) {
		missing = appendMissing(missing, f, section, answers)
	}
	return missing
}

// MissingRequiredAll checks every section.
func (s *Schema) MissingRequiredAll(answers Answers, role string) []FieldError {
	var missing []FieldError
	for i := range s.Sections {
		missing = append(missing, s.MissingRequired(i, answers, role)...)
	}
	return missing
}

func appendMissing(out []FieldError, f Field, section int, answers Answers) []FieldError {
	if f.Required && isEmpty(f, answers) {
		out = append(out, FieldError{ID: f.ID, Label: f.Label, Section: section})
	}
	for _, sub := range f.Fields {
		out = appendMissing(out, sub, section, answers)
	}
	return out
}

// isEmpty treats a grid as empty until at least one cell has text.
func isEmpty(f Field, answers Answers) bool {
	if f.Kind == KindGrid {
		for _, id := range GridCellIDs() {
			if v, ok := answers[id]; ok && !v.IsEmpty() {
				return false
			}
		}
		return true
	}
	v, ok := answers[f.ID]
	return !ok || v.IsEmpty()
}
