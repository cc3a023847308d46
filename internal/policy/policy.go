// Package policy implements the access decision function. Evaluate is pure
// and deterministic: it takes a person, an access point id, and an instant,
// and returns whether access is allowed and why not. It performs no I/O, so
// the full decision matrix is unit-testable without storage.
package policy

import (
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
)

// Deny reasons returned by Evaluate. Blocked persons carry their block
// reason instead.
const (
	ReasonNotYetValid  = "not yet valid"
	ReasonExpired      = "expired"
	ReasonNoPermission = "no permission for this point/time"
	ReasonAllowed      = "allowed"
)

// Result of a policy evaluation.
type Result struct {
	Allowed bool
	Reason  string
}

// Evaluate decides whether person p may use the access point at instant
// now. Checks short-circuit in order: block state, validity window, rules.
func Evaluate(p *models.Person, accessPointID string, now time.Time) Result {
	if p.Blocked {
		reason := p.BlockReason
		if reason == "" {
			reason = "person blocked"
		}
		return Result{Allowed: false, Reason: reason}
	}

	if p.ValidFrom.Valid && now.Before(p.ValidFrom.Time) {
		return Result{Allowed: false, Reason: ReasonNotYetValid}
	}
	if p.ValidUntil.Valid && now.After(p.ValidUntil.Time) {
		return Result{Allowed: false, Reason: ReasonExpired}
	}

	for _, rule := range p.Rules {
		if ruleCovers(rule, accessPointID, now) {
			return Result{Allowed: true, Reason: ReasonAllowed}
		}
	}

	return Result{Allowed: false, Reason: ReasonNoPermission}
}

// ruleCovers reports whether a single rule authorizes the point at now.
// Schedule constraints apply whenever present, wildcard rules included.
func ruleCovers(rule models.AccessRule, accessPointID string, now time.Time) bool {
	matched := false
	for _, id := range rule.AccessPointIDs {
		if id == models.WildcardPointID || id == accessPointID {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if rule.Schedule == nil {
		return true
	}
	return scheduleAllows(*rule.Schedule, now)
}

// scheduleAllows checks day-of-week and minute-of-day against a schedule.
// An End earlier than Start means the range crosses midnight, so the day
// check applies to the day the range started on.
func scheduleAllows(s models.Schedule, now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()

	if s.End >= s.Start {
		return dayAllowed(s.Days, now.Weekday()) && minute >= s.Start && minute <= s.End
	}

	// Overnight range: either after Start today, or before End on the
	// morning after an allowed day.
	if minute >= s.Start {
		return dayAllowed(s.Days, now.Weekday())
	}
	if minute <= s.End {
		prev := (now.Weekday() + 6) % 7
		return dayAllowed(s.Days, prev)
	}
	return false
}

func dayAllowed(days []time.Weekday, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
