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
	"testing"
)

func TestSolveNormalEquationsRecoversExactFit(t *testing.T) {
	// y = 2 + 3*x1 - x2
	rows := [][]float64{
		{1, 2},
		{2, 1},
		{3, 5},
		{4, 3},
		{5, 8},
	}
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = 2 + 3*r[0] - r[1]
	}

	coeffs, err := solveNormalEquations(rows, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{2, 3, -1}
	for i := range want {
		if math.Abs(coeffs[i]-want[i]) > 1e-8 {
			t.Fatalf("coefficient %d: want %.1f, got %.6f", i, want[i], coeffs[i])
		}
	}
}

func TestSolveNormalEquationsSingularSystem(t *testing.T) {
	// Second feature duplicates the first: XtX is singular
	rows := [][]float64{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 4},
	}
	y := []float64{1, 2, 3, 4}

	if _, err := solveNormalEquations(rows, y); err == nil {
		t.Fatalf("expected singular-system error")
	}
}

func TestSolveNormalEquationsUnderdetermined(t *testing.T) {
	rows := [][]float64{
		{1, 2},
		{3, 4},
	}
	y := []float64{1, 2}

	if _, err := solveNormalEquations(rows, y); err == nil {
		t.Fatalf("expected error with fewer observations than coefficients")
	}
}

func TestSegmentBoundaryExclusiveLowInclusiveHigh(t *testing.T) {
	seg := TempSegment{Name: "cold", MinTemp: 5, MaxTemp: 20}

	if !seg.Matches(20.0) {
		t.Fatalf("tempMin 20.0 must fall in the >5 <=20 bucket")
	}
	if seg.Matches(5.0) {
		t.Fatalf("tempMin 5.0 must fall in the lower bucket, not >5 <=20")
	}
	if seg.Matches(20.0001) {
		t.Fatalf("tempMin just above 20 must fall in the next bucket")
	}
}

// modelDays builds a spread of normal days across all four temperature
// segments with deterministic weather variation and a near-linear target.
func modelDays() []ClassifiedDay {
	tempMins := []float64{
		-5, 0, 2, 4, 5, // extreme
		8, 12, 15, 18, 20, // cold
		22, 25, 28, 30, 32, // moderate
		35, 40, 45, 50, 55, // mild
	}

	days := make([]ClassifiedDay, len(tempMins))
	for i, tempMin := range tempMins {
		wind := 3 + float64((i*i)%11)
		tempMean := tempMin + 8 + float64(i%5)
		hdd := 0.0
		if tempMean < HDDBaseTempF {
			hdd = HDDBaseTempF - tempMean
		}
		noise := float64(i%5) - 2 // deterministic, so no set fits exactly

		d := ClassifiedDay{
			Date:       day(2025, 1, 1).AddDate(0, 0, i),
			Type:       DayNormal,
			HasWeather: true,
			Weather: WeatherDay{
				TempMin:     tempMin,
				TempMean:    tempMean,
				TempMax:     tempMean + 6,
				WindMax:     wind,
				WindGustMax: wind + 5 + float64(i%3),
			},
			HeatingDegreeDays: hdd,
			PriorDayTempMin:   tempMin - 2 + float64(i%4),
			ThermalMassLag:    tempMin + float64(i%6),
			IsWeekend:         i%7 < 2,
		}
		d.AdjustedKwh = 80 - 1.2*tempMin + 0.5*wind + noise
		d.HomeKwh = d.AdjustedKwh
		days[i] = d
	}

	return days
}

func TestBuildRequiresMinimumNormalDays(t *testing.T) {
	builder := NewModelBuilder(NewLogger(false))

	days := modelDays()[:MinNormalDays-1]
	_, _, _, err := builder.Build(days)
	if err == nil {
		t.Fatalf("expected insufficient-data error")
	}
	if _, ok := err.(*DataError); !ok {
		t.Fatalf("expected *DataError, got %T", err)
	}
}

func TestBuildSelectionMonotonicInR2(t *testing.T) {
	builder := NewModelBuilder(NewLogger(false))

	model, candidates, _, err := builder.Build(modelDays())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var selected *CandidateSummary
	for i := range candidates {
		if candidates[i].Selected {
			if selected != nil {
				t.Fatalf("more than one candidate selected")
			}
			selected = &candidates[i]
		}
	}
	if selected == nil {
		t.Fatalf("no candidate selected")
	}
	if selected.Name != model.GlobalName {
		t.Fatalf("selected candidate %q disagrees with model %q", selected.Name, model.GlobalName)
	}

	for _, c := range candidates {
		if c.Excluded {
			continue
		}
		if c.R2 > selected.R2+1e-12 {
			t.Fatalf("candidate %s has R2 %.6f above selected %.6f", c.Name, c.R2, selected.R2)
		}
	}
}

func TestBuildFitsSegmentsWithEnoughDays(t *testing.T) {
	builder := NewModelBuilder(NewLogger(false))

	model, _, _, err := builder.Build(modelDays())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(model.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(model.Segments))
	}
	for _, seg := range model.Segments {
		if seg.DayCount != 5 {
			t.Fatalf("segment %s: expected 5 days, got %d", seg.Name, seg.DayCount)
		}
		if seg.Model == nil {
			t.Fatalf("segment %s: expected a fitted model with %d days", seg.Name, seg.DayCount)
		}
	}
}

func TestBuildSegmentFallbackBelowMinimum(t *testing.T) {
	builder := NewModelBuilder(NewLogger(false))

	// Drop the mild segment to 2 days: below the per-segment minimum but
	// keeping enough normal days overall.
	days := modelDays()[:17]

	model, _, _, err := builder.Build(days)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, seg := range model.Segments {
		if seg.Name != "mild" {
			continue
		}
		if seg.DayCount != 2 {
			t.Fatalf("expected 2 mild days, got %d", seg.DayCount)
		}
		if seg.Model != nil {
			t.Fatalf("mild segment must fall back to the mean, not fit")
		}
		if seg.FallbackKwh == 0 {
			t.Fatalf("expected a non-zero segment-mean fallback")
		}
	}
}

func TestPredictDayPrefersFittedSegment(t *testing.T) {
	builder := NewModelBuilder(NewLogger(false))

	days := modelDays()
	model, _, _, err := builder.Build(days)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A cold-segment day must be predicted by the cold segment's own model
	target := &days[6] // tempMin 12
	var coldSeg *TempSegment
	for i := range model.Segments {
		if model.Segments[i].Name == "cold" {
			coldSeg = &model.Segments[i]
		}
	}
	if coldSeg == nil || coldSeg.Model == nil {
		t.Fatalf("cold segment not fitted")
	}

	want := coldSeg.Model.Predict(FeatureSetTempWind.Vector(target))
	if got := model.PredictDay(target); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected segment prediction %.4f, got %.4f", want, got)
	}
}

func TestPredictDayFallsBackToGlobal(t *testing.T) {
	// Only a fallback (non-fitted) segment: prediction must come from the
	// global model.
	model := SegmentedModel{
		Segments: []TempSegment{
			{Name: "cold", MinTemp: 5, MaxTemp: 20, FallbackKwh: 40},
		},
		Global: RegressionModel{
			Features:     FeatureSetTempWind.Features(),
			Coefficients: []float64{50, -1, 0.5},
		},
		GlobalName: FeatureSetTempWind.String(),
	}

	d := &ClassifiedDay{
		HasWeather: true,
		Weather:    WeatherDay{TempMin: 10, WindMax: 4},
	}

	want := 50 - 1*10 + 0.5*4
	if got := model.PredictDay(d); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected global prediction %.2f, got %.2f", want, got)
	}
}

func TestFeatureSetOrderIsStable(t *testing.T) {
	want := []string{
		"temp_min+wind",
		"temp_min+wind+lag3",
		"hdd+wind",
		"hdd+prior_min+gust",
		"hdd+wind+weekend",
	}
	if len(allFeatureSets) != len(want) {
		t.Fatalf("expected %d feature sets, got %d", len(want), len(allFeatureSets))
	}
	for i, fs := range allFeatureSets {
		if fs.String() != want[i] {
			t.Fatalf("feature set %d: want %s, got %s", i, want[i], fs.String())
		}
		if len(fs.Features()) != len(fs.Vector(&ClassifiedDay{})) {
			t.Fatalf("feature set %s: name/vector length mismatch", fs)
		}
	}
}
