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
	"testing"
	"time"
)

func flatHours(wh float64) []HourlyBucket {
	hours := make([]HourlyBucket, 24)
	for h := range hours {
		hours[h] = HourlyBucket{Hour: h, HomeWh: wh}
	}
	return hours
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func TestHourlyBucketsAssignByIntervalStart(t *testing.T) {
	// A sample ending exactly at 01:00 covers 00:55-01:00 and belongs
	// to hour 0.
	series := []SubDailyInterval{
		{Timestamp: day(2025, 1, 10).Add(1 * time.Hour), HomeWh: 120, SolarWh: 10},
		{Timestamp: day(2025, 1, 10).Add(1*time.Hour + 5*time.Minute), HomeWh: 80},
		{Timestamp: day(2025, 1, 10).Add(9*time.Hour + 30*time.Minute), HomeWh: 200},
	}

	hours := hourlyBuckets(series)
	if len(hours) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(hours))
	}

	if hours[0].HomeWh != 120 {
		t.Fatalf("hour 0: expected 120 Wh, got %.1f", hours[0].HomeWh)
	}
	if hours[0].SolarWh != 10 {
		t.Fatalf("hour 0: expected 10 solar Wh, got %.1f", hours[0].SolarWh)
	}
	if hours[1].HomeWh != 80 {
		t.Fatalf("hour 1: expected 80 Wh, got %.1f", hours[1].HomeWh)
	}
	if hours[9].HomeWh != 200 {
		t.Fatalf("hour 9: expected 200 Wh, got %.1f", hours[9].HomeWh)
	}
}

func TestDetectPatternsOvernightEscalation(t *testing.T) {
	hours := flatHours(500)
	hours[overnightStartHour].HomeWh = 1100
	hours[overnightEndHour].HomeWh = 1700 // > floor and >= 1.5x the midnight hour

	tags := detectPatterns(hours)
	if !hasTag(tags, "overnight-escalation") {
		t.Fatalf("expected overnight-escalation, got %v", tags)
	}
}

func TestDetectPatternsMorningSurge(t *testing.T) {
	hours := flatHours(1000)
	hours[7].HomeWh = 2000 // 2x the overnight average, above the floor

	tags := detectPatterns(hours)
	if !hasTag(tags, "morning-surge") {
		t.Fatalf("expected morning-surge, got %v", tags)
	}
	if hasTag(tags, "overnight-escalation") {
		t.Fatalf("flat overnight must not escalate, got %v", tags)
	}
}

func TestDetectPatternsSustainedHigh(t *testing.T) {
	hours := flatHours(1000)
	for h := 14; h < 14+sustainedHighHours; h++ {
		hours[h].HomeWh = 3000
	}

	tags := detectPatterns(hours)
	if !hasTag(tags, "sustained-high") {
		t.Fatalf("expected sustained-high, got %v", tags)
	}
	if !hasTag(tags, "peak-hour-14") {
		t.Fatalf("expected peak-hour-14, got %v", tags)
	}
}

func TestDetectPatternsQuietDay(t *testing.T) {
	if tags := detectPatterns(flatHours(400)); len(tags) != 0 {
		t.Fatalf("expected no tags on a quiet flat day, got %v", tags)
	}
}

func TestAnalyzeLimitsAndWarns(t *testing.T) {
	var anomalies []AnomalyRecord
	intervals := make(map[string][]SubDailyInterval)

	// Six anomalies with escalating |z|; only the top five get a
	// drill-down. The most extreme day has no sub-daily data.
	for i := 0; i < 6; i++ {
		date := day(2025, 1, 10+i)
		anomalies = append(anomalies, AnomalyRecord{
			Date:   date,
			ZScore: 1.6 + 0.2*float64(i),
		})
		if i < 5 {
			intervals[dateKey(date)] = makeIntervals(date.Add(5*time.Minute), 12, 100)
		}
	}

	analyzer := NewDrillDownAnalyzer(NewLogger(false))
	drillDowns, warnings := analyzer.Analyze(anomalies, intervals)

	if len(drillDowns) != 4 {
		t.Fatalf("expected 4 drill-downs, got %d", len(drillDowns))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}

	missing := dateKey(day(2025, 1, 15))
	want := fmt.Sprintf("drill-down skipped for %s: no sub-daily data", missing)
	if warnings[0] != want {
		t.Fatalf("unexpected warning %q", warnings[0])
	}

	// The weakest anomaly must not appear
	for _, dd := range drillDowns {
		if dd.Date.Equal(day(2025, 1, 10)) {
			t.Fatalf("weakest anomaly should be cut by the drill-down limit")
		}
	}
}
