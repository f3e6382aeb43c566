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
	"math"
	"sort"
)

// AnomalyDetector flags normal days whose residual against the fitted
// model is a statistical outlier.
type AnomalyDetector struct {
	logger *Logger
}

// NewAnomalyDetector creates a new anomaly detector
func NewAnomalyDetector(logger *Logger) *AnomalyDetector {
	return &AnomalyDetector{logger: logger}
}

// Detect computes per-day residuals for all normal days, standardizes them
// against the residual distribution and flags days whose |z-score| exceeds
// the fixed threshold. Results are sorted by date.
func (a *AnomalyDetector) Detect(days []ClassifiedDay, model *SegmentedModel) []AnomalyRecord {
	type residualDay struct {
		day      *ClassifiedDay
		expected float64
		residual float64
	}

	var resDays []residualDay
	var residuals []float64
	for i := range days {
		d := &days[i]
		if d.Type != DayNormal || !d.HasWeather {
			continue
		}
		expected := model.PredictDay(d)
		residual := d.AdjustedKwh - expected
		resDays = append(resDays, residualDay{day: d, expected: expected, residual: residual})
		residuals = append(residuals, residual)
	}

	if len(residuals) == 0 {
		return nil
	}

	mean := calculateMean(residuals)
	stdDev := calculateStdDev(residuals, mean)
	if stdDev == 0 {
		return nil
	}

	var anomalies []AnomalyRecord
	for _, rd := range resDays {
		z := (rd.residual - mean) / stdDev
		if math.Abs(z) <= AnomalyZThreshold {
			continue
		}

		direction := AnomalyHigh
		if z < 0 {
			direction = AnomalyLow
		}

		record := AnomalyRecord{
			Date:           rd.day.Date,
			Direction:      direction,
			ActualKwh:      rd.day.AdjustedKwh,
			ExpectedKwh:    rd.expected,
			ResidualKwh:    rd.residual,
			ZScore:         z,
			SuspectedCause: suspectCause(rd.day, direction),
		}
		anomalies = append(anomalies, record)

		a.logger.LogAnomalyDetected(dateKey(rd.day.Date), direction, z)
	}

	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].Date.Before(anomalies[j].Date)
	})

	a.logger.Info("Anomaly detection completed",
		"normal_days", len(resDays),
		"anomalies", len(anomalies),
		"residual_mean", mean,
		"residual_stddev", stdDev,
	)

	return anomalies
}

// suspectCause produces a heuristic free-text label for an anomaly from the
// day's weather and calendar context. Drill-down tags refine these later
// for the most extreme days.
func suspectCause(d *ClassifiedDay, direction AnomalyDirection) string {
	if direction == AnomalyLow {
		switch {
		case d.Weather.TempMax >= 45:
			return "mild day / passive solar gain"
		case d.Energy.SolarWh > 0.3*d.Energy.HomeWh:
			return "strong solar production"
		default:
			return "reduced occupancy or setback"
		}
	}

	switch {
	case d.Weather.WindGustMax >= 30 && d.HeatingDegreeDays > 30:
		return "wind-driven infiltration on a cold day"
	case d.Weather.TempMin <= 5:
		return "heat pump efficiency loss in extreme cold"
	case d.IsWeekend:
		return "weekend occupancy / appliance load"
	default:
		return "unexplained excess consumption"
	}
}

// TopAnomalies returns the n most extreme anomalies by |z-score|, ties
// broken by earlier date so repeated runs rank identically.
func TopAnomalies(anomalies []AnomalyRecord, n int) []AnomalyRecord {
	top := make([]AnomalyRecord, len(anomalies))
	copy(top, anomalies)

	sort.Slice(top, func(i, j int) bool {
		zi, zj := math.Abs(top[i].ZScore), math.Abs(top[j].ZScore)
		if zi != zj {
			return zi > zj
		}
		return top[i].Date.Before(top[j].Date)
	})

	if len(top) > n {
		top = top[:n]
	}
	return top
}

// Statistical helper functions

// calculateMean calculates the mean of a slice of float64 values
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// calculateStdDev calculates the standard deviation
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	variance := sumSquaredDiff / float64(len(values))
	return math.Sqrt(variance)
}
