package store

import (
	"strings"

	"github.com/oemforge/oemforge/internal/model"
)

// actionAliasMap maps a free-text action verb onto the closed ActionType
// set, per spec.md §4.G step 2. Lookup is case-insensitive; anything not
// listed defaults to ActionInspect.
var actionAliasMap = map[string]model.ActionType{
	"replace":        model.ActionReplace,
	"change":         model.ActionReplace,
	"flush":          model.ActionReplace,
	"service":        model.ActionReplace,
	"refill":         model.ActionReplace,
	"check":          model.ActionCheck,
	"top_off":        model.ActionCheck,
	"measure":        model.ActionCheck,
	"test":           model.ActionDiagnoseTest,
	"diagnose_test":  model.ActionDiagnoseTest,
	"torque":         model.ActionTightenTorque,
	"tighten_torque": model.ActionTightenTorque,
	"lube":           model.ActionLubricate,
	"grease":         model.ActionLubricate,
	"lubricate":      model.ActionLubricate,
	"examine":        model.ActionInspect,
	"inspect":        model.ActionInspect,
	"rotate":         model.ActionRotate,
	"clean":          model.ActionClean,
	"reset":          model.ActionReset,
	"adjust":         model.ActionAdjust,
}

// NormalizeActionType maps raw onto the closed ActionType set. It is
// idempotent: NormalizeActionType(string(NormalizeActionType(x))) ==
// NormalizeActionType(x), since every ActionType value is also a key of
// actionAliasMap mapping to itself.
func NormalizeActionType(raw string) model.ActionType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if at, ok := actionAliasMap[key]; ok {
		return at
	}
	return model.ActionInspect
}
