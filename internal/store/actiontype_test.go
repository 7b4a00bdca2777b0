package store

import (
	"testing"

	"github.com/oemforge/oemforge/internal/model"
)

func TestNormalizeActionType_Aliases(t *testing.T) {
	cases := map[string]model.ActionType{
		"replace":  model.ActionReplace,
		"change":   model.ActionReplace,
		"flush":    model.ActionReplace,
		"service":  model.ActionReplace,
		"refill":   model.ActionReplace,
		"top_off":  model.ActionCheck,
		"measure":  model.ActionCheck,
		"test":     model.ActionDiagnoseTest,
		"torque":   model.ActionTightenTorque,
		"lube":     model.ActionLubricate,
		"grease":   model.ActionLubricate,
		"examine":  model.ActionInspect,
		"rotate":   model.ActionRotate,
		"Clean":    model.ActionClean,
		"  reset ": model.ActionReset,
		"adjust":   model.ActionAdjust,
	}
	for raw, want := range cases {
		if got := NormalizeActionType(raw); got != want {
			t.Errorf("NormalizeActionType(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeActionType_UnknownDefaultsToInspect(t *testing.T) {
	if got := NormalizeActionType("whatever this is"); got != model.ActionInspect {
		t.Fatalf("expected unknown action type to default to inspect, got %q", got)
	}
}

func TestNormalizeActionType_Idempotent(t *testing.T) {
	for _, at := range []model.ActionType{
		model.ActionReplace, model.ActionInspect, model.ActionCheck, model.ActionLubricate,
		model.ActionRotate, model.ActionClean, model.ActionReset, model.ActionAdjust,
		model.ActionTightenTorque, model.ActionDiagnoseTest,
	} {
		once := NormalizeActionType(string(at))
		twice := NormalizeActionType(string(once))
		if once != twice {
			t.Errorf("NormalizeActionType not idempotent for %q: once=%q twice=%q", at, once, twice)
		}
	}
}
