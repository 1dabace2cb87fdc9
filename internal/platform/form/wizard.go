package form

import (
	"fmt"
	"strings"
)

// Wizard holds one in-progress form session: the answers entered so far and
// the current section. It performs no I/O and is not safe for concurrent use.
type Wizard struct {
	schema   *Schema
	role     string
	answers  Answers
	section  int
	sanitize func(string) string
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithSanitizer filters free-text and multi-line answers before they are stored.
func WithSanitizer(fn func(string) string) Option {
	return func(w *Wizard) { w.sanitize = fn }
}

// NewWizard starts an empty session at the first section. role is the
// viewer's role and drives audience-restricted fields.
func NewWizard(schema *Schema, role string, opts ...Option) *Wizard {
	w := &Wizard{
		schema:  schema,
		role:    role,
		answers: make(Answers),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) Schema() *Schema { return w.schema }

func (w *Wizard) Role() string { return w.role }

// Section returns the current section index.
func (w *Wizard) Section() int { return w.section }

func (w *Wizard) SectionCount() int { return len(w.schema.Sections) }

// AtLast reports whether the wizard is on its final section, where submit is allowed.
func (w *Wizard) AtLast() bool {
	return w.section == len(w.schema.Sections)-1
}

// Answers returns a copy of the current answers.
func (w *Wizard) Answers() Answers {
	return w.answers.Clone()
}

// SetAnswer replaces the value of field id. raw must have the shape of the
// field's kind; nothing else is validated.
func (w *Wizard) SetAnswer(id string, raw any) error {
	ref, ok := w.schema.index[id]
	if !ok {
		if _, _, cell := ParseCellID(id); cell && w.schema.grid != nil {
			text, isText := raw.(string)
			if !isText && raw != nil {
				return fmt.Errorf("%w: grid cells take text, got %T", ErrKindMismatch, raw)
			}
			w.answers[id] = TextValue(KindText, text)
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	v, err := Coerce(ref.field.Kind, raw)
	if err != nil {
		return fmt.Errorf("field %q: %w", id, err)
	}
	if w.sanitize != nil && (v.Kind == KindText || v.Kind == KindTextarea) {
		v.Text = w.sanitize(v.Text)
	}
	w.answers[id] = v
	return nil
}

// ToggleMultiChoice adds or removes option from the multi-choice field id,
// keeping the existing order and never duplicating an option.
func (w *Wizard) ToggleMultiChoice(id, option string, included bool) error {
	ref, ok := w.schema.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	if ref.field.Kind != KindMulti {
		return fmt.Errorf("field %q: %w: not a multi-choice field", id, ErrKindMismatch)
	}
	if strings.TrimSpace(option) == "" {
		return fmt.Errorf("field %q: %w: empty option", id, ErrKindMismatch)
	}

	current := w.answers[id].Choices
	next := make([]string, 0, len(current)+1)
	present := false
	for _, c := range current {
		if c == option {
			present = true
			if !included {
				continue
			}
		}
		next = append(next, c)
	}
	if included && !present {
		next = append(next, option)
	}
	w.answers[id] = Value{Kind: KindMulti, Choices: next}
	return nil
}

// SetCell writes one monitoring grid cell. The text is stored as-is.
func (w *Wizard) SetCell(day int, timeOfDay, text string) error {
	if w.schema.grid == nil || !ValidCell(day, timeOfDay) {
		return cellError(day, timeOfDay)
	}
	return w.SetAnswer(CellID(day, timeOfDay), text)
}

// Visible reports whether field id is currently visible to the wizard's viewer.
func (w *Wizard) Visible(id string) bool {
	return w.schema.Visible(id, w.answers, w.role)
}

// VisibleFields returns the visible fields of the current section.
func (w *Wizard) VisibleFields() []Field {
	return w.schema.VisibleFields(w.section, w.answers, w.role)
}

// MissingRequired lists required fields of the current section that block advancing.
func (w *Wizard) MissingRequired() []FieldError {
	return w.schema.MissingRequired(w.section, w.answers, w.role)
}

// MissingRequiredAll lists required fields across every section.
func (w *Wizard) MissingRequiredAll() []FieldError {
	return w.schema.MissingRequiredAll(w.answers, w.role)
}

// Advance moves to the next section. It is a no-op on the last section and
// reports whether the section changed.
func (w *Wizard) Advance() bool {
	if w.section >= len(w.schema.Sections)-1 {
		return false
	}
	w.section++
	return true
}

// Retreat moves to the previous section. It is a no-op on the first section.
func (w *Wizard) Retreat() bool {
	if w.section <= 0 {
		return false
	}
	w.section--
	return true
}
