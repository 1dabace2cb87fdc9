package form

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a tagged union holding one answer. Kind selects which payload is
// meaningful: Number for KindNumber, Choices for KindMulti, Text otherwise.
type Value struct {
	Kind    Kind
	Text    string
	Number  *float64
	Choices []string
}

// TextValue returns a text-shaped value for kind.
func TextValue(kind Kind, s string) Value {
	return Value{Kind: kind, Text: s}
}

// NumberValue returns a number value.
func NumberValue(f float64) Value {
	return Value{Kind: KindNumber, Number: &f}
}

// ChoicesValue returns a multi-choice value with duplicates removed, first occurrence kept.
func ChoicesValue(choices ...string) Value {
	return Value{Kind: KindMulti, Choices: dedupe(choices)}
}

// IsEmpty reports whether the value carries no answer.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNumber:
		return v.Number == nil
	case KindMulti:
		return len(v.Choices) == 0
	default:
		return strings.TrimSpace(v.Text) == ""
	}
}

// String renders the value the way it would be exported as text.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		if v.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case KindMulti:
		return strings.Join(v.Choices, "; ")
	default:
		return v.Text
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if v.Number == nil {
			return []byte("null"), nil
		}
		return json.Marshal(*v.Number)
	case KindMulti:
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON infers the kind from the JSON shape: numbers become
// KindNumber, arrays KindMulti and strings KindText. null leaves v empty.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{}
		return nil
	case float64:
		*v = NumberValue(t)
		return nil
	case string:
		*v = TextValue(KindText, t)
		return nil
	}
	val, err := Coerce(KindMulti, raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func (v Value) clone() Value {
	out := v
	if v.Number != nil {
		n := *v.Number
		out.Number = &n
	}
	if v.Choices != nil {
		out.Choices = append([]string(nil), v.Choices...)
	}
	return out
}

// Coerce converts a raw decoded value (as produced by encoding/json or a Go
// caller) into a Value of the given kind. Only the shape is checked: text
// kinds take strings, numbers take numbers or numeric strings, multi takes a
// list of strings. nil and "" clear the answer.
func Coerce(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindText, KindTextarea, KindSingle:
		switch v := raw.(type) {
		case nil:
			return TextValue(kind, ""), nil
		case string:
			return TextValue(kind, v), nil
		}
	case KindNumber:
		switch v := raw.(type) {
		case nil:
			return Value{Kind: KindNumber}, nil
		case float64:
			return NumberValue(v), nil
		case float32:
			return NumberValue(float64(v)), nil
		case int:
			return NumberValue(float64(v)), nil
		case int64:
			return NumberValue(float64(v)), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not a number", ErrKindMismatch, v)
			}
			return NumberValue(f), nil
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return Value{Kind: KindNumber}, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not a number", ErrKindMismatch, v)
			}
			return NumberValue(f), nil
		}
	case KindMulti:
		switch v := raw.(type) {
		case nil:
			return ChoicesValue(), nil
		case []string:
			return ChoicesValue(v...), nil
		case []any:
			choices := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return Value{}, fmt.Errorf("%w: choices must be strings", ErrKindMismatch)
				}
				choices = append(choices, s)
			}
			return ChoicesValue(choices...), nil
		}
	case KindGrid:
		return Value{}, fmt.Errorf("%w: grid fields are written cell by cell", ErrKindMismatch)
	}
	return Value{}, fmt.Errorf("%w: %T for %s field", ErrKindMismatch, raw, kind)
}

// Answers maps field identifiers to values.
type Answers map[string]Value

// Text returns the textual rendering of the answer at id, or "" when unset.
func (a Answers) Text(id string) string {
	v, ok := a[id]
	if !ok {
		return ""
	}
	return v.String()
}

// Number returns the numeric answer at id.
func (a Answers) Number(id string) (float64, bool) {
	v, ok := a[id]
	if !ok || v.Kind != KindNumber || v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

// Choices returns a copy of the multi-choice answer at id.
func (a Answers) Choices(id string) []string {
	v, ok := a[id]
	if !ok || v.Kind != KindMulti {
		return nil
	}
	return append([]string(nil), v.Choices...)
}

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for id, v := range a {
		out[id] = v.clone()
	}
	return out
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
