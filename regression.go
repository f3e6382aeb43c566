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
	"math"
)

// FeatureSet identifies one candidate combination of weather features for
// the global model competition. Each variant captures a different physical
// effect (thermal-mass carryover, occupancy noise); no single set dominates
// across data regimes, so selection is empirical.
type FeatureSet int

const (
	FeatureSetTempWind FeatureSet = iota
	FeatureSetTempWindLag
	FeatureSetHDDWind
	FeatureSetHDDPriorGust
	FeatureSetHDDWindWeekend
)

// allFeatureSets is the fixed competition order; ties in R2 resolve to the
// earlier entry so selection is deterministic.
var allFeatureSets = []FeatureSet{
	FeatureSetTempWind,
	FeatureSetTempWindLag,
	FeatureSetHDDWind,
	FeatureSetHDDPriorGust,
	FeatureSetHDDWindWeekend,
}

func (fs FeatureSet) String() string {
	switch fs {
	case FeatureSetTempWind:
		return "temp_min+wind"
	case FeatureSetTempWindLag:
		return "temp_min+wind+lag3"
	case FeatureSetHDDWind:
		return "hdd+wind"
	case FeatureSetHDDPriorGust:
		return "hdd+prior_min+gust"
	case FeatureSetHDDWindWeekend:
		return "hdd+wind+weekend"
	default:
		return "unknown"
	}
}

// Features returns the ordered feature names for this set.
func (fs FeatureSet) Features() []string {
	switch fs {
	case FeatureSetTempWind:
		return []string{"temp_min", "wind_max"}
	case FeatureSetTempWindLag:
		return []string{"temp_min", "wind_max", "thermal_mass_lag"}
	case FeatureSetHDDWind:
		return []string{"heating_degree_days", "wind_max"}
	case FeatureSetHDDPriorGust:
		return []string{"heating_degree_days", "prior_day_temp_min", "wind_gust_max"}
	case FeatureSetHDDWindWeekend:
		return []string{"heating_degree_days", "wind_max", "is_weekend"}
	default:
		return nil
	}
}

// Vector extracts this set's feature values from a day, in Features order.
func (fs FeatureSet) Vector(d *ClassifiedDay) []float64 {
	weekend := 0.0
	if d.IsWeekend {
		weekend = 1.0
	}
	switch fs {
	case FeatureSetTempWind:
		return []float64{d.Weather.TempMin, d.Weather.WindMax}
	case FeatureSetTempWindLag:
		return []float64{d.Weather.TempMin, d.Weather.WindMax, d.ThermalMassLag}
	case FeatureSetHDDWind:
		return []float64{d.HeatingDegreeDays, d.Weather.WindMax}
	case FeatureSetHDDPriorGust:
		return []float64{d.HeatingDegreeDays, d.PriorDayTempMin, d.Weather.WindGustMax}
	case FeatureSetHDDWindWeekend:
		return []float64{d.HeatingDegreeDays, d.Weather.WindMax, weekend}
	default:
		return nil
	}
}

// Segment temperature bounds. JSON output cannot carry infinities, so the
// open ends use sentinels far outside any plausible outdoor temperature.
const (
	segmentOpenLow  = -1000.0
	segmentOpenHigh = 1000.0
)

// segmentBounds defines the fixed, mutually exclusive outdoor-minimum-
// temperature buckets: lower bound exclusive, upper bound inclusive.
var segmentBounds = []struct {
	name string
	min  float64
	max  float64
}{
	{"extreme", segmentOpenLow, 5},
	{"cold", 5, 20},
	{"moderate", 20, 32},
	{"mild", 32, segmentOpenHigh},
}

// ModelBuilder fits the segmented and competing global regression models
// over normal days.
type ModelBuilder struct {
	logger *Logger
}

// NewModelBuilder creates a new regression model builder
func NewModelBuilder(logger *Logger) *ModelBuilder {
	return &ModelBuilder{logger: logger}
}

// Build fits the per-segment models and runs the global feature-set
// competition. Days without weather cannot be modeled and are skipped.
// Returns a fatal DataError when fewer than MinNormalDays normal days are
// available; degenerate fits only exclude the affected segment or
// candidate.
func (b *ModelBuilder) Build(days []ClassifiedDay) (SegmentedModel, []CandidateSummary, []string, error) {
	var warnings []string

	var normal []ClassifiedDay
	for _, d := range days {
		if d.Type == DayNormal && d.HasWeather {
			normal = append(normal, d)
		}
	}

	if len(normal) < MinNormalDays {
		return SegmentedModel{}, nil, nil, &DataError{
			DataType: "normal days",
			Message: fmt.Sprintf("need at least %d normal days with weather to fit a model, have %d",
				MinNormalDays, len(normal)),
		}
	}

	model := SegmentedModel{}

	// Segmented track: two-feature model per bucket, segment-mean fallback
	for _, bounds := range segmentBounds {
		seg := TempSegment{
			Name:    bounds.name,
			MinTemp: bounds.min,
			MaxTemp: bounds.max,
		}

		var segDays []ClassifiedDay
		for _, d := range normal {
			if seg.Matches(d.Weather.TempMin) {
				segDays = append(segDays, d)
			}
		}
		seg.DayCount = len(segDays)

		if len(segDays) >= MinSegmentDays {
			fitted, err := b.fitFeatureSet(FeatureSetTempWind, segDays)
			if err != nil {
				warning := fmt.Sprintf("segment %s fit degenerate, using segment mean", seg.Name)
				b.logger.Warn("Degenerate segment fit", "segment", seg.Name, "error", err)
				warnings = append(warnings, warning)
				seg.FallbackKwh = meanAdjustedKwh(segDays)
			} else {
				seg.Model = fitted
			}
		} else if len(segDays) > 0 {
			seg.FallbackKwh = meanAdjustedKwh(segDays)
		}

		model.Segments = append(model.Segments, seg)
	}

	// Global track: competitive fit across the fixed feature sets
	var candidates []CandidateSummary
	bestIdx := -1
	var best *RegressionModel
	for _, fs := range allFeatureSets {
		fitted, err := b.fitFeatureSet(fs, normal)
		if err != nil {
			warning := fmt.Sprintf("global candidate %s excluded: degenerate fit", fs)
			b.logger.Warn("Degenerate global fit", "candidate", fs.String(), "error", err)
			warnings = append(warnings, warning)
			candidates = append(candidates, CandidateSummary{Name: fs.String(), Excluded: true})
			continue
		}

		candidates = append(candidates, CandidateSummary{Name: fs.String(), R2: fitted.R2})
		if best == nil || fitted.R2 > best.R2 {
			best = fitted
			bestIdx = len(candidates) - 1
			model.GlobalName = fs.String()
		}

		b.logger.Debug("Fitted global candidate",
			"candidate", fs.String(),
			"r2", fmt.Sprintf("%.4f", fitted.R2),
		)
	}

	if best == nil {
		return SegmentedModel{}, candidates, warnings, &DataError{
			DataType: "global model",
			Message:  "every candidate feature set produced a degenerate fit",
		}
	}

	candidates[bestIdx].Selected = true
	model.Global = *best

	b.logger.Info("Selected global model",
		"candidate", model.GlobalName,
		"r2", fmt.Sprintf("%.4f", best.R2),
		"days", best.DayCount,
	)

	return model, candidates, warnings, nil
}

// fitFeatureSet fits one OLS model over the given days using the feature
// set's vector.
func (b *ModelBuilder) fitFeatureSet(fs FeatureSet, days []ClassifiedDay) (*RegressionModel, error) {
	rows := make([][]float64, len(days))
	y := make([]float64, len(days))
	for i := range days {
		rows[i] = fs.Vector(&days[i])
		y[i] = days[i].AdjustedKwh
	}

	coeffs, err := solveNormalEquations(rows, y)
	if err != nil {
		return nil, &FitError{FeatureSet: fs.String(), Message: err.Error()}
	}

	model := &RegressionModel{
		Features:     fs.Features(),
		Coefficients: coeffs,
		DayCount:     len(days),
	}
	model.R2 = rSquared(model, rows, y)

	return model, nil
}

// PredictDay applies the prediction policy: a matching segment with a fitted
// (non-fallback) model wins; otherwise the selected global model is used.
func (m *SegmentedModel) PredictDay(d *ClassifiedDay) float64 {
	if d.HasWeather {
		for i := range m.Segments {
			seg := &m.Segments[i]
			if seg.Model != nil && seg.Matches(d.Weather.TempMin) {
				return seg.Model.Predict(FeatureSetTempWind.Vector(d))
			}
		}
	}

	fs := featureSetByName(m.GlobalName)
	return m.Global.Predict(fs.Vector(d))
}

func featureSetByName(name string) FeatureSet {
	for _, fs := range allFeatureSets {
		if fs.String() == name {
			return fs
		}
	}
	return FeatureSetTempWind
}

// solveNormalEquations solves (XtX)b = Xty for the OLS coefficient vector,
// where X is the design matrix of the given rows with a leading constant 1
// column for the intercept.
func solveNormalEquations(rows [][]float64, y []float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no observations")
	}
	p := len(rows[0]) + 1 // features plus intercept
	if len(rows) < p {
		return nil, fmt.Errorf("%d observations cannot determine %d coefficients", len(rows), p)
	}

	// Accumulate XtX and Xty directly; the design matrix is never
	// materialized.
	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	xty := make([]float64, p)

	for r, row := range rows {
		for i := 0; i < p; i++ {
			xi := 1.0
			if i > 0 {
				xi = row[i-1]
			}
			for j := 0; j < p; j++ {
				xj := 1.0
				if j > 0 {
					xj = row[j-1]
				}
				xtx[i][j] += xi * xj
			}
			xty[i] += xi * y[r]
		}
	}

	return solveGaussian(xtx, xty)
}

// solveGaussian solves Ax = b by Gaussian elimination with partial
// pivoting. Returns an error when the system is singular (pivot magnitude
// below PivotEpsilon).
func solveGaussian(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)

	for col := 0; col < n; col++ {
		// Partial pivot: swap in the row with the largest magnitude in
		// this column.
		pivotRow := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivotRow][col]) {
				pivotRow = r
			}
		}
		if math.Abs(a[pivotRow][col]) < PivotEpsilon {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		a[col], a[pivotRow] = a[pivotRow], a[col]
		b[col], b[pivotRow] = b[pivotRow], b[col]

		// Eliminate below the pivot
		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	// Back substitution
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for c := row + 1; c < n; c++ {
			sum -= a[row][c] * x[c]
		}
		x[row] = sum / a[row][row]
	}

	return x, nil
}

// rSquared computes the coefficient of determination 1 - SSres/SStot.
func rSquared(model *RegressionModel, rows [][]float64, y []float64) float64 {
	meanY := calculateMean(y)

	ssRes, ssTot := 0.0, 0.0
	for i, row := range rows {
		pred := model.Predict(row)
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}

	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

func meanAdjustedKwh(days []ClassifiedDay) float64 {
	if len(days) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range days {
		sum += d.AdjustedKwh
	}
	return sum / float64(len(days))
}
