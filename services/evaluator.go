// services/evaluator.go - Pure condition strategies
package services

import (
	"time"

	"lifelog/models"
)

// ActivitySnapshot carries the activity facts a condition is judged against.
// The event processor assembles it; the strategies stay pure.
type ActivitySnapshot struct {
	EventTime time.Time

	// FactCount is the raw count of matching facts for count conditions,
	// including the triggering event.
	FactCount int64

	// ActivityDays holds the distinct days the user was active, ascending,
	// including the triggering event's day. Used by streak conditions.
	ActivityDays []time.Time

	// Birthday is the user's birthday, when known. Used by milestone
	// predicates.
	Birthday *time.Time
}

// Evaluation is the outcome of one condition check.
type Evaluation struct {
	NewValue int
	Complete bool
}

type evaluatorFunc func(spec models.ConditionSpec, snap ActivitySnapshot, prior int) (Evaluation, error)

// Strategy table keyed by condition type. New condition kinds plug in here
// without touching the event processor.
var evaluators = map[models.ConditionType]evaluatorFunc{
	models.ConditionCount:     evaluateCount,
	models.ConditionStreak:    evaluateStreak,
	models.ConditionMilestone: evaluateMilestone,
	models.ConditionCustom:    evaluateCustom,
}

// Evaluate runs the strategy for spec.Type. Unknown types surface a
// ConditionEvaluationError to the caller.
func Evaluate(spec models.ConditionSpec, snap ActivitySnapshot, prior int) (Evaluation, error) {
	fn, ok := evaluators[spec.Type]
	if !ok {
		return Evaluation{}, &ConditionEvaluationError{ConditionType: string(spec.Type), Field: spec.Field}
	}
	return fn(spec, snap, prior)
}

func evaluateCount(spec models.ConditionSpec, snap ActivitySnapshot, prior int) (Evaluation, error) {
	v := int(snap.FactCount)
	if v < prior {
		// Facts can lag behind history on backfilled data; counts never
		// move backwards.
		v = prior
	}
	return Evaluation{NewValue: v, Complete: v >= spec.Target}, nil
}

// evaluateStreak recomputes the consecutive-day run ending at the event day.
// A gap of more than one day resets the run to the days still contiguous
// with "now".
func evaluateStreak(spec models.ConditionSpec, snap ActivitySnapshot, _ int) (Evaluation, error) {
	days := make(map[string]bool, len(snap.ActivityDays)+1)
	for _, d := range snap.ActivityDays {
		days[dayKey(d)] = true
	}
	days[dayKey(snap.EventTime)] = true

	run := 0
	cursor := snap.EventTime
	for days[dayKey(cursor)] {
		run++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return Evaluation{NewValue: run, Complete: run >= spec.Target}, nil
}

// evaluateMilestone checks a date/time predicate against the triggering
// event's timestamp. Milestones are naturally boolean: value goes to 1 when
// the predicate holds, otherwise stays at prior.
func evaluateMilestone(spec models.ConditionSpec, snap ActivitySnapshot, prior int) (Evaluation, error) {
	hit := false
	t := snap.EventTime

	if h, ok := paramInt(spec.Params, "before_hour"); ok && t.Hour() < h {
		hit = true
	}
	if m, ok := paramInt(spec.Params, "month"); ok {
		d, dok := paramInt(spec.Params, "day")
		if dok && int(t.Month()) == m && t.Day() == d {
			hit = true
		}
	}
	if b, ok := spec.Params["birthday"].(bool); ok && b && snap.Birthday != nil {
		if t.Month() == snap.Birthday.Month() && t.Day() == snap.Birthday.Day() {
			hit = true
		}
	}

	v := prior
	if hit && v < 1 {
		v = 1
	}
	return Evaluation{NewValue: v, Complete: v >= spec.Target}, nil
}

// customPredicates are named checks keyed by the condition's field.
var customPredicates = map[string]func(snap ActivitySnapshot) bool{
	"night_owl": func(snap ActivitySnapshot) bool {
		h := snap.EventTime.Hour()
		return h >= 23 || h < 4
	},
	"weekend_warrior": func(snap ActivitySnapshot) bool {
		wd := snap.EventTime.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	},
}

// evaluateCustom counts occurrences of a named predicate. An unknown field
// is a ConditionEvaluationError.
func evaluateCustom(spec models.ConditionSpec, snap ActivitySnapshot, prior int) (Evaluation, error) {
	pred, ok := customPredicates[spec.Field]
	if !ok {
		return Evaluation{}, &ConditionEvaluationError{ConditionType: string(spec.Type), Field: spec.Field}
	}
	v := prior
	if pred(snap) {
		v++
	}
	return Evaluation{NewValue: v, Complete: v >= spec.Target}, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// paramInt reads a numeric param that may have round-tripped through JSON.
func paramInt(params map[string]interface{}, key string) (int, bool) {
	if params == nil {
		return 0, false
	}
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
