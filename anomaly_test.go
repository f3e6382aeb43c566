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
	"time"
)

// constantModel predicts a fixed value for every day, so each day's
// residual is fully controlled by its AdjustedKwh.
func constantModel(kwh float64) *SegmentedModel {
	return &SegmentedModel{
		Global: RegressionModel{
			Features:     FeatureSetTempWind.Features(),
			Coefficients: []float64{kwh, 0, 0},
		},
		GlobalName: FeatureSetTempWind.String(),
	}
}

func residualDays(base float64, residuals []float64) []ClassifiedDay {
	days := make([]ClassifiedDay, len(residuals))
	for i, r := range residuals {
		days[i] = ClassifiedDay{
			Date:        day(2025, 2, 1).AddDate(0, 0, i),
			Type:        DayNormal,
			HasWeather:  true,
			Weather:     WeatherDay{TempMin: 10, TempMax: 20},
			AdjustedKwh: base + r,
		}
	}
	return days
}

func TestDetectFlagsOutlierResidual(t *testing.T) {
	// Residuals sum to 0 with a population standard deviation of
	// exactly 5, so the 9 kWh residual standardizes to z = 1.8 and
	// nothing else crosses the 1.5 threshold.
	residuals := []float64{9, -4, -5, 4, -2 - math.Sqrt2, -2 + math.Sqrt2}
	days := residualDays(30, residuals)

	detector := NewAnomalyDetector(NewLogger(false))
	anomalies := detector.Detect(days, constantModel(30))

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}

	a := anomalies[0]
	if a.Direction != AnomalyHigh {
		t.Fatalf("expected HIGH direction, got %s", a.Direction)
	}
	if math.Abs(a.ZScore-1.8) > 1e-9 {
		t.Fatalf("expected z-score 1.8, got %.6f", a.ZScore)
	}
	if math.Abs(a.ResidualKwh-9) > 1e-9 {
		t.Fatalf("expected residual 9, got %.6f", a.ResidualKwh)
	}
	if math.Abs(a.ExpectedKwh-30) > 1e-9 {
		t.Fatalf("expected prediction 30, got %.6f", a.ExpectedKwh)
	}
	if a.SuspectedCause != "unexplained excess consumption" {
		t.Fatalf("unexpected suspected cause %q", a.SuspectedCause)
	}
}

func TestDetectIgnoresNonNormalDays(t *testing.T) {
	residuals := []float64{9, -4, -5, 4, -2 - math.Sqrt2, -2 + math.Sqrt2}
	days := residualDays(30, residuals)

	// An away day with a wild residual must not enter the distribution
	// or be flagged.
	days = append(days, ClassifiedDay{
		Date:        day(2025, 2, 20),
		Type:        DayAway,
		HasWeather:  true,
		Weather:     WeatherDay{TempMin: 10},
		AdjustedKwh: 500,
	})

	detector := NewAnomalyDetector(NewLogger(false))
	anomalies := detector.Detect(days, constantModel(30))

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if !anomalies[0].Date.Equal(day(2025, 2, 1)) {
		t.Fatalf("wrong day flagged: %s", anomalies[0].Date)
	}
}

func TestDetectZeroVarianceReturnsNothing(t *testing.T) {
	days := residualDays(30, []float64{2, 2, 2, 2})

	detector := NewAnomalyDetector(NewLogger(false))
	if anomalies := detector.Detect(days, constantModel(30)); anomalies != nil {
		t.Fatalf("expected no anomalies from identical residuals, got %d", len(anomalies))
	}
}

func TestSuspectCauseHeuristics(t *testing.T) {
	cases := []struct {
		name      string
		day       ClassifiedDay
		direction AnomalyDirection
		want      string
	}{
		{
			name:      "windy cold day",
			day:       ClassifiedDay{Weather: WeatherDay{TempMin: 12, WindGustMax: 35}, HeatingDegreeDays: 40},
			direction: AnomalyHigh,
			want:      "wind-driven infiltration on a cold day",
		},
		{
			name:      "extreme cold",
			day:       ClassifiedDay{Weather: WeatherDay{TempMin: 2, WindGustMax: 10}, HeatingDegreeDays: 50},
			direction: AnomalyHigh,
			want:      "heat pump efficiency loss in extreme cold",
		},
		{
			name:      "weekend",
			day:       ClassifiedDay{Weather: WeatherDay{TempMin: 20}, IsWeekend: true},
			direction: AnomalyHigh,
			want:      "weekend occupancy / appliance load",
		},
		{
			name:      "mild low day",
			day:       ClassifiedDay{Weather: WeatherDay{TempMax: 50}},
			direction: AnomalyLow,
			want:      "mild day / passive solar gain",
		},
		{
			name:      "solar offset",
			day:       ClassifiedDay{Weather: WeatherDay{TempMax: 30}, Energy: DailyEnergyRecord{HomeWh: 30000, SolarWh: 12000}},
			direction: AnomalyLow,
			want:      "strong solar production",
		},
		{
			name:      "quiet house",
			day:       ClassifiedDay{Weather: WeatherDay{TempMax: 30}},
			direction: AnomalyLow,
			want:      "reduced occupancy or setback",
		},
	}

	for _, tc := range cases {
		if got := suspectCause(&tc.day, tc.direction); got != tc.want {
			t.Errorf("%s: want %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestTopAnomaliesOrdering(t *testing.T) {
	anomalies := []AnomalyRecord{
		{Date: day(2025, 3, 1), ZScore: 1.6},
		{Date: day(2025, 3, 2), ZScore: -2.4},
		{Date: day(2025, 3, 3), ZScore: 2.4},
		{Date: day(2025, 3, 4), ZScore: 3.1},
	}

	top := TopAnomalies(anomalies, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 anomalies, got %d", len(top))
	}

	wantDates := []time.Time{day(2025, 3, 4), day(2025, 3, 2), day(2025, 3, 3)}
	for i, want := range wantDates {
		if !top[i].Date.Equal(want) {
			t.Fatalf("position %d: want %s, got %s", i, want.Format("2006-01-02"), top[i].Date.Format("2006-01-02"))
		}
	}

	// Input order untouched
	if !anomalies[0].Date.Equal(day(2025, 3, 1)) {
		t.Fatalf("TopAnomalies must not reorder its input")
	}
}

func TestCalculateStdDevPopulation(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := calculateMean(values)
	if mean != 5 {
		t.Fatalf("expected mean 5, got %.4f", mean)
	}
	if sd := calculateStdDev(values, mean); sd != 2 {
		t.Fatalf("expected population stddev 2, got %.4f", sd)
	}
}
