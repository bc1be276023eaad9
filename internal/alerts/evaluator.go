// Package alerts decides whether a reading breaches its device's
// thresholds. Evaluation is a pure function: no I/O, no clock, at most one
// alert per reading. Sending the alert anywhere is the caller's problem.
package alerts

import (
	"fmt"

	"github.com/ecomonitor-io/ecomonitorgo/internal/models"
)

// Kind classifies the breach direction.
type Kind string

const (
	KindExcess  Kind = "excess"   // gas over the upper bound
	KindTooHigh Kind = "too_high" // reading above max_limit
	KindTooLow  Kind = "too_low"  // reading below min_limit
)

// Alert describes one detected out-of-bounds reading. Message is the
// rendered human text for the notification channel; the structured fields
// carry the same data for storage.
type Alert struct {
	Kind       Kind
	DeviceID   string
	DeviceName string
	Value      float64
	Limit      float64
	Message    string
}

// Evaluate maps (device classification, thresholds, value) to zero or one
// alert.
func Evaluate(d *models.Device, value float64) *Alert {
	switch d.Model {
	case models.DeviceModelGasGuard:
		return evaluateGasGuard(d, value)
	case models.DeviceModelTempGuard:
		return evaluateTempGuard(d, value)
	case models.DeviceModelHumidGuard:
		return evaluateHumidGuard(d, value)
	default:
		// Unknown classification never alerts.
		return nil
	}
}

// evaluateGasGuard alerts on CO excess only. A gas sensor has no meaningful
// lower bound.
func evaluateGasGuard(d *models.Device, value float64) *Alert {
	if value <= d.MaxLimit {
		return nil
	}
	msg := fmt.Sprintf(`⚠️ WARNING! ⚠️
⚠️ WARNING! ⚠️
⚠️ WARNING! ⚠️

Device "*%s*" detected excess CO!
Current CO level: *%g ppm*
CO Limit: %g ppm
Evacuate everyone to fresh air and call emergency services from the outside!

Device ID: %s.`, d.Name, value, d.MaxLimit, d.DeviceID)
	return &Alert{
		Kind:       KindExcess,
		DeviceID:   d.DeviceID,
		DeviceName: d.Name,
		Value:      value,
		Limit:      d.MaxLimit,
		Message:    msg,
	}
}

func evaluateTempGuard(d *models.Device, value float64) *Alert {
	switch {
	case value > d.MaxLimit:
		msg := fmt.Sprintf(`🌡️ WARNING! 🌡️

Device "*%s*" has detected a temperature that is too high.
Current temperature: *%g°C*
The highest safe temperature: %g°C`, d.Name, value, d.MaxLimit)
		return &Alert{
			Kind:       KindTooHigh,
			DeviceID:   d.DeviceID,
			DeviceName: d.Name,
			Value:      value,
			Limit:      d.MaxLimit,
			Message:    msg,
		}
	case value < d.MinLimit:
		msg := fmt.Sprintf(`🌡️ WARNING! 🌡️

Device "*%s*" has detected a temperature that is too low.
Current temperature: *%g°C*
The lowest safe temperature: %g°C`, d.Name, value, d.MinLimit)
		return &Alert{
			Kind:       KindTooLow,
			DeviceID:   d.DeviceID,
			DeviceName: d.Name,
			Value:      value,
			Limit:      d.MinLimit,
			Message:    msg,
		}
	default:
		return nil
	}
}

func evaluateHumidGuard(d *models.Device, value float64) *Alert {
	switch {
	case value > d.MaxLimit:
		msg := fmt.Sprintf(`☁️ WARNING! ☁️

Device "*%s*" has detected a humidity that is too high.
Current humidity: *%g%% RH*
The highest safe humidity: %g%% RH`, d.Name, value, d.MaxLimit)
		return &Alert{
			Kind:       KindTooHigh,
			DeviceID:   d.DeviceID,
			DeviceName: d.Name,
			Value:      value,
			Limit:      d.MaxLimit,
			Message:    msg,
		}
	case value < d.MinLimit:
		msg := fmt.Sprintf(`☁️ WARNING! ☁️

Device "*%s*" has detected a humidity that is too low.
Current humidity: *%g%% RH*
The lowest safe humidity: %g%% RH`, d.Name, value, d.MinLimit)
		return &Alert{
			Kind:       KindTooLow,
			DeviceID:   d.DeviceID,
			DeviceName: d.Name,
			Value:      value,
			Limit:      d.MinLimit,
			Message:    msg,
		}
	default:
		return nil
	}
}
