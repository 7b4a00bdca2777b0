// Package validate scores a schedule entry against the loaded rule set and
// produces an advisory needs_review flag, notes, and confidence. It never
// rejects an entry; it only flags it for human review (spec.md §4.E).
package validate

import (
	"fmt"
	"strings"

	"github.com/oemforge/oemforge/internal/model"
	"github.com/oemforge/oemforge/internal/obslog"
	"github.com/oemforge/oemforge/internal/taxonomy"
)

// DefaultFuzzyThreshold mirrors the canonicalizer's threshold: a rule whose
// item_name_target matches at or above this ratio is considered to apply.
const DefaultFuzzyThreshold = taxonomy.DefaultThreshold

// Entry is the input to Evaluate: the fields of a schedule entry a
// ValidationRule predicate can restrict on.
type Entry struct {
	ItemName      string
	ActionType    model.ActionType
	IntervalMiles *int
	IntervalMonths *int
}

// Result is the advisory output of Evaluate.
type Result struct {
	NeedsReview bool
	Notes       string
	Confidence  model.Confidence
}

// Validator holds the rule set loaded once at process start.
type Validator struct {
	rules     []model.ValidationRule
	threshold float64
}

// New builds a Validator from the full rule set snapshot. threshold <= 0
// uses DefaultFuzzyThreshold.
func New(rules []model.ValidationRule, threshold float64) *Validator {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Validator{rules: rules, threshold: threshold}
}

// Evaluate checks entry against every loaded rule, collecting a violation
// note for each rule it fails, and returns the combined advisory result.
func (v *Validator) Evaluate(entry Entry) Result {
	log := obslog.Get(obslog.CategoryValidate)
	var notes []string

	for _, rule := range v.rules {
		if !ruleApplies(rule, entry, v.threshold) {
			continue
		}
		if note, violated := checkIntervalViolation(rule, entry); violated {
			notes = append(notes, note)
		}
	}

	result := Result{
		NeedsReview: len(notes) > 0,
		Notes:       strings.Join(notes, "; "),
		Confidence:  model.ConfidenceHigh,
	}
	if result.NeedsReview {
		result.Confidence = model.ConfidenceLow
		log.Debug("entry %q/%s flagged for review: %s", entry.ItemName, entry.ActionType, result.Notes)
	}
	return result
}

// ruleApplies reports whether rule's item-name and action-type restrictions
// (if any) match entry. A rule with no restriction on a dimension applies
// unconditionally on that dimension.
func ruleApplies(rule model.ValidationRule, entry Entry, threshold float64) bool {
	if rule.ItemNameTarget != nil {
		target := *rule.ItemNameTarget
		exact := strings.EqualFold(strings.TrimSpace(target), strings.TrimSpace(entry.ItemName))
		if !exact && taxonomy.Ratio(normalize(entry.ItemName), normalize(target)) < threshold {
			return false
		}
	}
	if rule.ActionTypeTarget != nil {
		if !strings.EqualFold(*rule.ActionTypeTarget, string(entry.ActionType)) {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// checkIntervalViolation reports whether entry's interval_miles breaches
// rule's min/max, and if so the exact note string spec.md §4.E/§8 scenario 7
// specifies: "<rule_name>: <value> mi < <min> mi min" or the "> max" form.
func checkIntervalViolation(rule model.ValidationRule, entry Entry) (string, bool) {
	if entry.IntervalMiles == nil {
		return "", false
	}
	miles := *entry.IntervalMiles

	if rule.MinIntervalMiles != nil && miles < *rule.MinIntervalMiles {
		return fmt.Sprintf("%s: %d mi < %d mi min", rule.Name, miles, *rule.MinIntervalMiles), true
	}
	if rule.MaxIntervalMiles != nil && miles > *rule.MaxIntervalMiles {
		return fmt.Sprintf("%s: %d mi > %d mi max", rule.Name, miles, *rule.MaxIntervalMiles), true
	}
	return "", false
}
