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

func testConfig() *Config {
	return &Config{
		SaunaDefaultKwh:     12.0,
		HighPowerThresholdW: 7000,
		MinRunSamples:       10,
		CandidateFloorKwh:   45.0,
	}
}

func TestClassifyPrecedence(t *testing.T) {
	config := testConfig()
	config.AwayPeriods = []AwayPeriod{
		{Start: "2025-01-10", End: "2025-01-12", PresentDates: []string{"2025-01-11"}},
	}
	logger := NewLogger(false)

	data := &CollectedData{
		Days: []DailyEnergyRecord{
			{Date: day(2025, 1, 10), HomeWh: 12000},
			{Date: day(2025, 1, 11), HomeWh: 40000},
			{Date: day(2025, 1, 12), HomeWh: 11500},
			{Date: day(2025, 1, 13), HomeWh: 55000},
			{Date: day(2025, 1, 14), HomeWh: 38000},
		},
		Weather: map[string]WeatherDay{},
		KnownHighLoad: map[string]float64{
			"2025-01-10": 12.0, // away wins over the cross-reference
			"2025-01-13": 13.5,
		},
	}

	days := NewClassifier(config, logger).Classify(data)
	if len(days) != 5 {
		t.Fatalf("expected 5 classified days, got %d", len(days))
	}

	byDate := make(map[string]ClassifiedDay)
	for _, d := range days {
		byDate[dateKey(d.Date)] = d
	}

	if got := byDate["2025-01-10"].Type; got != DayAway {
		t.Fatalf("away period must take precedence over cross-reference, got %s", got)
	}
	if got := byDate["2025-01-11"].Type; got != DayNormal {
		t.Fatalf("present date inside away period must be normal, got %s", got)
	}
	if got := byDate["2025-01-12"].Type; got != DayAway {
		t.Fatalf("expected away, got %s", got)
	}

	highLoad := byDate["2025-01-13"]
	if highLoad.Type != DayHighLoad {
		t.Fatalf("cross-referenced day must be high-load, got %s", highLoad.Type)
	}
	if highLoad.ConfoundingKwh != 13.5 {
		t.Fatalf("expected confounding estimate 13.5, got %.1f", highLoad.ConfoundingKwh)
	}
	if math.Abs(highLoad.AdjustedKwh-(55.0-13.5)) > 1e-9 {
		t.Fatalf("expected adjusted 41.5, got %.2f", highLoad.AdjustedKwh)
	}

	if got := byDate["2025-01-14"].Type; got != DayNormal {
		t.Fatalf("expected normal, got %s", got)
	}
}

func TestClassifyDerivesWeatherFeatures(t *testing.T) {
	config := testConfig()
	logger := NewLogger(false)

	data := &CollectedData{
		Days: []DailyEnergyRecord{
			{Date: day(2025, 1, 4), HomeWh: 30000},
			{Date: day(2025, 1, 5), HomeWh: 32000}, // Sunday
		},
		Weather: map[string]WeatherDay{
			"2025-01-03": {Date: day(2025, 1, 3), TempMin: 10, TempMean: 20},
			"2025-01-04": {Date: day(2025, 1, 4), TempMin: 12, TempMean: 23},
			"2025-01-05": {Date: day(2025, 1, 5), TempMin: 8, TempMean: 17},
		},
	}

	days := NewClassifier(config, logger).Classify(data)

	sat := days[0]
	if !sat.HasWeather {
		t.Fatalf("expected weather attached")
	}
	if math.Abs(sat.HeatingDegreeDays-(65.0-23.0)) > 1e-9 {
		t.Fatalf("expected 42 heating degree days, got %.1f", sat.HeatingDegreeDays)
	}
	if sat.PriorDayTempMin != 10 {
		t.Fatalf("expected prior-day minimum 10, got %.1f", sat.PriorDayTempMin)
	}
	if math.Abs(sat.ThermalMassLag-(20.0+23.0)/2) > 1e-9 {
		t.Fatalf("expected trailing mean 21.5, got %.2f", sat.ThermalMassLag)
	}
	if !sat.IsWeekend {
		t.Fatalf("2025-01-04 is a Saturday")
	}

	sun := days[1]
	if math.Abs(sun.ThermalMassLag-(20.0+23.0+17.0)/3) > 1e-9 {
		t.Fatalf("expected trailing mean 20, got %.2f", sun.ThermalMassLag)
	}
}

func TestRefineReclassifiesSustainedHighPowerRun(t *testing.T) {
	config := testConfig()
	logger := NewLogger(false)

	date := day(2025, 1, 20)
	days := []ClassifiedDay{
		{Date: day(2025, 1, 17), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: day(2025, 1, 18), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: day(2025, 1, 19), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: date, Type: DayNormal, HomeKwh: 60, AdjustedKwh: 60},
	}

	// 12 contiguous 5-minute samples, each above the 583.3 Wh threshold,
	// summing to exactly 13,000 Wh
	run := makeIntervals(date.Add(10*time.Hour+5*time.Minute), 12, 13000.0/12)
	intervals := map[string][]SubDailyInterval{
		dateKey(date): run,
	}

	detector := NewSignalPatternDetector(config, logger)
	reclassified := detector.Refine(days, intervals)

	if reclassified != 1 {
		t.Fatalf("expected 1 reclassified day, got %d", reclassified)
	}

	refined := days[3]
	if refined.Type != DayHighLoad {
		t.Fatalf("expected high-load after refinement, got %s", refined.Type)
	}
	if math.Abs(refined.ConfoundingKwh-13.0) > 1e-9 {
		t.Fatalf("expected confounding 13.0 kWh, got %.3f", refined.ConfoundingKwh)
	}
	if math.Abs(refined.AdjustedKwh-47.0) > 1e-9 {
		t.Fatalf("expected adjusted to drop by exactly 13.0 to 47.0, got %.3f", refined.AdjustedKwh)
	}
}

func TestRefineIgnoresShortRuns(t *testing.T) {
	config := testConfig()
	logger := NewLogger(false)

	date := day(2025, 1, 20)
	days := []ClassifiedDay{
		{Date: day(2025, 1, 17), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: day(2025, 1, 18), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: day(2025, 1, 19), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: date, Type: DayNormal, HomeKwh: 60, AdjustedKwh: 60},
	}

	// Only 9 samples: below the minimum run length of 10
	run := makeIntervals(date.Add(10*time.Hour+5*time.Minute), 9, 1100)
	intervals := map[string][]SubDailyInterval{
		dateKey(date): run,
	}

	if got := NewSignalPatternDetector(config, logger).Refine(days, intervals); got != 0 {
		t.Fatalf("expected no reclassification for a short run, got %d", got)
	}
	if days[3].Type != DayNormal {
		t.Fatalf("day must stay normal, got %s", days[3].Type)
	}
}

func TestRefineRunBrokenByGap(t *testing.T) {
	config := testConfig()
	logger := NewLogger(false)

	date := day(2025, 1, 20)
	days := []ClassifiedDay{
		{Date: day(2025, 1, 17), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: day(2025, 1, 18), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: day(2025, 1, 19), Type: DayNormal, HomeKwh: 20, AdjustedKwh: 20},
		{Date: date, Type: DayNormal, HomeKwh: 60, AdjustedKwh: 60},
	}

	// Two 6-sample runs separated by a missing sample: neither reaches 10
	first := makeIntervals(date.Add(10*time.Hour+5*time.Minute), 6, 1100)
	second := makeIntervals(date.Add(10*time.Hour+40*time.Minute), 6, 1100)
	intervals := map[string][]SubDailyInterval{
		dateKey(date): append(first, second...),
	}

	if got := NewSignalPatternDetector(config, logger).Refine(days, intervals); got != 0 {
		t.Fatalf("a missing sample must break the run, got %d reclassified", got)
	}
}
