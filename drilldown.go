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
	"time"
)

// DrillDownAnalyzer aggregates an anomalous day's sub-daily intervals into
// hourly buckets and classifies qualitative load-shape patterns. Limited to
// the most extreme anomalies to bound sub-daily data volume.
type DrillDownAnalyzer struct {
	logger *Logger
}

// NewDrillDownAnalyzer creates a new drill-down analyzer
func NewDrillDownAnalyzer(logger *Logger) *DrillDownAnalyzer {
	return &DrillDownAnalyzer{logger: logger}
}

// Analyze drills into the top anomalies by |z-score|. Days whose sub-daily
// series is unavailable are skipped with a warning.
func (a *DrillDownAnalyzer) Analyze(anomalies []AnomalyRecord, intervals map[string][]SubDailyInterval) ([]DrillDown, []string) {
	var drillDowns []DrillDown
	var warnings []string

	for _, anomaly := range TopAnomalies(anomalies, MaxDrillDowns) {
		key := dateKey(anomaly.Date)
		series, ok := intervals[key]
		if !ok || len(series) == 0 {
			warning := fmt.Sprintf("drill-down skipped for %s: no sub-daily data", key)
			a.logger.Warn("Drill-down skipped", "date", key)
			warnings = append(warnings, warning)
			continue
		}

		dd := DrillDown{
			Date:  anomaly.Date,
			Hours: hourlyBuckets(series),
		}
		dd.Tags = detectPatterns(dd.Hours)

		a.logger.Debug("Drill-down completed", "date", key, "tags", dd.Tags)
		drillDowns = append(drillDowns, dd)
	}

	return drillDowns, warnings
}

// hourlyBuckets sums a day's intervals into 24 hourly totals.
func hourlyBuckets(series []SubDailyInterval) []HourlyBucket {
	buckets := make([]HourlyBucket, 24)
	for h := range buckets {
		buckets[h].Hour = h
	}

	for _, iv := range series {
		// Assign by the interval's start to keep midnight-ending samples
		// in the correct hour.
		start := iv.Timestamp.Add(-IntervalMinutes * time.Minute)
		h := start.Hour()
		buckets[h].HomeWh += iv.HomeWh
		buckets[h].SolarWh += iv.SolarWh
	}

	return buckets
}

// detectPatterns runs the independent load-shape heuristics. Each check
// may fire on its own; any subset of tags can result.
func detectPatterns(hours []HourlyBucket) []string {
	var tags []string

	// Overnight escalation: consumption climbing through the overnight
	// hours rather than holding flat.
	first := hours[overnightStartHour].HomeWh
	last := hours[overnightEndHour].HomeWh
	if last > patternFloorWh && first > 0 && last >= overnightEscalationMin*first {
		tags = append(tags, "overnight-escalation")
	}

	// Morning surge: a morning hour far above the overnight average.
	overnightSum := 0.0
	for h := overnightStartHour; h <= overnightEndHour; h++ {
		overnightSum += hours[h].HomeWh
	}
	overnightAvg := overnightSum / float64(overnightEndHour-overnightStartHour+1)
	morningPeak := 0.0
	for h := morningStartHour; h <= morningEndHour; h++ {
		if hours[h].HomeWh > morningPeak {
			morningPeak = hours[h].HomeWh
		}
	}
	if morningPeak > patternFloorWh && overnightAvg > 0 && morningPeak >= morningSurgeMin*overnightAvg {
		tags = append(tags, "morning-surge")
	}

	// Sustained high: many hours above a fixed per-hour floor.
	highHours := 0
	for _, b := range hours {
		if b.HomeWh > sustainedHighFloorWh {
			highHours++
		}
	}
	if highHours >= sustainedHighHours {
		tags = append(tags, "sustained-high")
	}

	// Peak hour labeling: the single highest-consumption hour.
	peakHour, peakWh := 0, 0.0
	for _, b := range hours {
		if b.HomeWh > peakWh {
			peakWh = b.HomeWh
			peakHour = b.Hour
		}
	}
	if peakWh > patternFloorWh {
		tags = append(tags, fmt.Sprintf("peak-hour-%02d", peakHour))
	}

	return tags
}
