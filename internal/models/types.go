package models

import "math"

// Field names a single sensor reading stored within the measurement.
type Field string

const (
	FieldTemperature Field = "temperature"
	FieldHumidity    Field = "humidity"
	FieldCO2         Field = "co2"
)

// Sample is the combined reading served by the multi-field endpoints.
// Time is epoch milliseconds. CO2 is nil when the sensor did not report it;
// the AHT10 itself has no CO2 cell, so the field is only present when a
// co-located sensor contributes it.
type Sample struct {
	Time        int64    `json:"time"`
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	CO2         *float64 `json:"co2,omitempty"`
}

// Timestamp returns the sample time in epoch milliseconds.
func (s Sample) Timestamp() int64 { return s.Time }

// ScalarSample is a single-field reading, served by the temperature-only
// and humidity-only endpoints.
type ScalarSample struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Timestamp returns the sample time in epoch milliseconds.
func (s ScalarSample) Timestamp() int64 { return s.Time }

// Round2 rounds to two decimal places, half away from zero. Store precision
// beyond that is noise to API consumers.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
