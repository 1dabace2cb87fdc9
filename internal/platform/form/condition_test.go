package form

import (
	"testing"
)

func TestCondition_NilIsAlwaysTrue(t *testing.T) {
	f := &Field{ID: "x", Kind: KindText}
	for _, answers := range []Answers{nil, {}, {"x": TextValue(KindText, "y")}} {
		if !EvaluateVisibility(f, answers) {
			t.Errorf("field without condition should be visible for %v", answers)
		}
	}
}

func TestCondition_Eval(t *testing.T) {
	yes, no := true, false
	answers := Answers{
		"reason":    TextValue(KindSingle, "DKA"),
		"treatment": ChoicesValue("Diet", "Insulin"),
		"duration":  NumberValue(12),
		"blank":     TextValue(KindText, " "),
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"equals match", Equals("reason", "DKA"), true},
		{"equals miss", Equals("reason", "HHS"), false},
		{"equals missing field", Equals("other", "DKA"), false},
		{"equals number literal", Equals("duration", 12), true},
		{"equals numeric string", Equals("duration", "12"), true},
		{"not equals", &Condition{Field: "reason", NotEquals: "HHS"}, true},
		{"not equals missing field", &Condition{Field: "other", NotEquals: "HHS"}, true},
		{"includes", Includes("treatment", "Insulin"), true},
		{"includes miss", Includes("treatment", "GLP-1"), false},
		{"in", &Condition{Field: "reason", In: []any{"HHS", "DKA"}}, true},
		{"in miss", &Condition{Field: "reason", In: []any{"HHS"}}, false},
		{"present", &Condition{Field: "reason", Present: &yes}, true},
		{"present blank", &Condition{Field: "blank", Present: &yes}, false},
		{"absent", &Condition{Field: "other", Present: &no}, true},
		{"all", &Condition{All: []Condition{*Equals("reason", "DKA"), *Includes("treatment", "Diet")}}, true},
		{"all short", &Condition{All: []Condition{*Equals("reason", "DKA"), *Includes("treatment", "GLP-1")}}, false},
		{"any", &Condition{Any: []Condition{*Equals("reason", "HHS"), *Includes("treatment", "Diet")}}, true},
		{"not", &Condition{Not: Equals("reason", "DKA")}, false},
		{"two operators", &Condition{Field: "reason", Equals: "DKA", Includes: "DKA"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Eval(answers); got != tt.want {
				t.Errorf("Eval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCondition_DependsOnlyOnTarget(t *testing.T) {
	f := &Field{ID: "reason_other", Kind: KindText, Condition: Equals("reason", "Other")}
	answers := Answers{"unrelated": TextValue(KindText, "x")}

	for i := 0; i < 3; i++ {
		answers["reason"] = TextValue(KindSingle, "Other")
		if !EvaluateVisibility(f, answers) {
			t.Fatal("expected visible")
		}
		answers["reason"] = TextValue(KindSingle, "DKA")
		if EvaluateVisibility(f, answers) {
			t.Fatal("expected hidden")
		}
	}
	if len(answers) != 2 || answers.Text("unrelated") != "x" {
		t.Errorf("evaluation changed answers: %v", answers)
	}
}
