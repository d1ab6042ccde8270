// Package triage assigns a traffic-light risk category to a set of vital signs.
package triage

import (
	"errors"

	"github.com/jwalitptl/referral-api/internal/model"
)

// Thresholds of the classification rules. Pressures are in mmHg; the shock limits
// apply to heart rate over systolic pressure.
const (
	RedSystolic     = 160
	RedDiastolic    = 110
	YellowSystolic  = 140
	YellowDiastolic = 90
	ShockHigh       = 1.7
	ShockMedium     = 0.9
)

// ErrZeroSystolic is returned when the shock index cannot be computed.
var ErrZeroSystolic = errors.New("bpSystolic must be non-zero to compute shock index")

// Classify returns NONE when any vital is missing. Rules are evaluated in order and the
// first match wins, so severe shock outranks very high blood pressure.
func Classify(systolic, diastolic, heartRate *int) (model.TrafficLight, error) {
	if systolic == nil || diastolic == nil || heartRate == nil {
		return model.TrafficLightNone, nil
	}
	shockIndex, ok := shockIndexOf(systolic, heartRate)
	if !ok {
		return model.TrafficLightNone, ErrZeroSystolic
	}

	isBpVeryHigh := *systolic >= RedSystolic || *diastolic >= RedDiastolic
	isBpHigh := *systolic >= YellowSystolic || *diastolic >= YellowDiastolic
	isSevereShock := shockIndex >= ShockHigh
	isShock := shockIndex >= ShockMedium

	switch {
	case isSevereShock:
		return model.TrafficLightRedDown, nil
	case isBpVeryHigh:
		return model.TrafficLightRedUp, nil
	case isShock:
		return model.TrafficLightYellowDown, nil
	case isBpHigh:
		return model.TrafficLightYellowUp, nil
	default:
		return model.TrafficLightGreen, nil
	}
}

// shockIndexOf is heart rate over systolic pressure; ok is false when it is undefined.
func shockIndexOf(systolic, heartRate *int) (float64, bool) {
	if systolic == nil || heartRate == nil || *systolic == 0 {
		return 0, false
	}
	return float64(*heartRate) / float64(*systolic), true
}
