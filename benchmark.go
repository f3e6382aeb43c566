// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"sort"
)

// stepChangeMinKwh is the smallest day-over-day jump in away-day
// consumption treated as a thermostat mode switch. Smaller jumps fall back
// to a date-order split.
const stepChangeMinKwh = 2.0

// BenchmarkCalculator derives the non-heating baseload, measured heating
// intensity per degree day and the theoretical envelope comparison.
type BenchmarkCalculator struct {
	config *Config
	logger *Logger
}

// NewBenchmarkCalculator creates a new benchmark calculator
func NewBenchmarkCalculator(config *Config, logger *Logger) *BenchmarkCalculator {
	return &BenchmarkCalculator{
		config: config,
		logger: logger,
	}
}

// Calculate produces the full benchmark result from classified days.
func (b *BenchmarkCalculator) Calculate(days []ClassifiedDay) (BenchmarkResult, []string) {
	var warnings []string

	result := BenchmarkResult{
		AnnualDegreeDays: b.config.AnnualDegreeDays,
		TargetName:       b.config.TargetName,
		TargetAnnualKwh:  b.config.TargetAnnualKwh,
	}

	result.BaseloadKwh, result.BaseloadSource, result.BaseloadDays = b.estimateBaseload(days)
	if result.BaseloadSource == "fallback" {
		warnings = append(warnings,
			fmt.Sprintf("no away days in window; using fallback baseload of %.1f kWh", result.BaseloadKwh))
	}

	// Measured heating intensity over normal days
	sumHeating, sumDD := 0.0, 0.0
	for _, d := range days {
		if d.Type != DayNormal || !d.HasWeather {
			continue
		}
		heating := d.AdjustedKwh - result.BaseloadKwh
		if heating < 0 {
			heating = 0
		}
		sumHeating += heating
		sumDD += d.HeatingDegreeDays
	}

	if sumDD > 0 {
		result.HeatingKwhPerDD = sumHeating / sumDD
	} else {
		warnings = append(warnings, "no heating degree days in window; measured intensity unavailable")
	}
	result.MeasuredAnnualKwh = result.HeatingKwhPerDD * b.config.AnnualDegreeDays

	result.TightEnvelope = b.envelopeModel("tight", b.config.TightEnvelope)
	result.CodeMinEnvelope = b.envelopeModel("code-minimum", b.config.CodeMinEnvelope)

	b.logger.Info("Benchmark calculated",
		"baseload_kwh", fmt.Sprintf("%.1f", result.BaseloadKwh),
		"baseload_source", result.BaseloadSource,
		"kwh_per_dd", fmt.Sprintf("%.3f", result.HeatingKwhPerDD),
		"measured_annual_kwh", fmt.Sprintf("%.0f", result.MeasuredAnnualKwh),
	)

	return result, warnings
}

// estimateBaseload isolates non-heating consumption from the away days.
// A thermostat mode switch shows up as the largest day-over-day jump; the
// low-setpoint side's one or two lowest days average to the baseload. With
// no clear step change the away days split in half by date order, and with
// no away days at all a fixed conservative fallback applies. The returned
// dates identify the away days averaged into the estimate.
func (b *BenchmarkCalculator) estimateBaseload(days []ClassifiedDay) (float64, string, []string) {
	var away []ClassifiedDay
	for _, d := range days {
		if d.Type == DayAway {
			away = append(away, d)
		}
	}

	if len(away) == 0 {
		return b.config.BaseloadFallback, "fallback", nil
	}
	if len(away) == 1 {
		return away[0].HomeKwh, "single-away-day", []string{dateKey(away[0].Date)}
	}

	// Largest day-over-day jump marks the setpoint switch
	splitIdx, maxJump := 0, 0.0
	for i := 1; i < len(away); i++ {
		jump := away[i].HomeKwh - away[i-1].HomeKwh
		if jump < 0 {
			jump = -jump
		}
		if jump > maxJump {
			maxJump = jump
			splitIdx = i
		}
	}

	source := "step-change"
	if maxJump < stepChangeMinKwh {
		splitIdx = len(away) / 2
		source = "date-split"
	}

	lowSide := away[:splitIdx]
	highSide := away[splitIdx:]
	if meanHomeKwh(highSide) < meanHomeKwh(lowSide) {
		lowSide = highSide
	}

	// Average the 1-2 lowest-consumption days: the days with least
	// residual heating demand.
	sorted := make([]ClassifiedDay, len(lowSide))
	copy(sorted, lowSide)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].HomeKwh != sorted[j].HomeKwh {
			return sorted[i].HomeKwh < sorted[j].HomeKwh
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	if len(sorted) == 1 {
		return sorted[0].HomeKwh, source, []string{dateKey(sorted[0].Date)}
	}
	used := []string{dateKey(sorted[0].Date), dateKey(sorted[1].Date)}
	sort.Strings(used)
	return (sorted[0].HomeKwh + sorted[1].HomeKwh) / 2, source, used
}

func meanHomeKwh(days []ClassifiedDay) float64 {
	if len(days) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range days {
		sum += d.HomeKwh
	}
	return sum / float64(len(days))
}

// envelopeModel computes the closed-form heat-loss breakdown for one
// assumed envelope, converted to electrical kWh per degree day. One degree
// day is one degree Fahrenheit of indoor-outdoor difference sustained for
// 24 hours, so each hourly-rate term scales by 24.
func (b *BenchmarkCalculator) envelopeModel(name string, env EnvelopeConfig) EnvelopeModel {
	geo := b.config.Geometry

	// Natural infiltration from the blower-door figure
	achNatural := env.ACH50 / ACH50ToNaturalDivisor
	infiltrationBTU := AirHeatCapacityBTU * achNatural * geo.VolumeCuft * 24

	// Mechanical ventilation net of heat recovery
	ventilationBTU := AirHeatCapacityBTU * env.VentilationCFM * 60 * 24 * (1 - env.HRVEfficiency)

	// Envelope conduction from the fixed-geometry UA
	ua := geo.WallAreaSqft/env.WallR +
		geo.CeilingAreaSqft/env.CeilingR +
		geo.FloorAreaSqft/env.FloorR +
		geo.WindowAreaSqft*env.WindowU
	conductionBTU := ua * 24

	model := EnvelopeModel{
		Name:                 name,
		COP:                  env.COP,
		InfiltrationKwhPerDD: infiltrationBTU / BTUPerKwh / env.COP,
		VentilationKwhPerDD:  ventilationBTU / BTUPerKwh / env.COP,
		ConductionKwhPerDD:   conductionBTU / BTUPerKwh / env.COP,
	}
	model.TotalKwhPerDD = model.InfiltrationKwhPerDD + model.VentilationKwhPerDD + model.ConductionKwhPerDD
	model.AnnualKwh = model.TotalKwhPerDD * b.config.AnnualDegreeDays

	return model
}
