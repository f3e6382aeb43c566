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
	"time"
)

// Classifier labels each day normal, away or high-load from calendar
// metadata and the known-high-load cross-reference. It performs no
// statistical inference.
type Classifier struct {
	config *Config
	logger *Logger
}

// NewClassifier creates a new day classifier
func NewClassifier(config *Config, logger *Logger) *Classifier {
	return &Classifier{
		config: config,
		logger: logger,
	}
}

// Classify builds one ClassifiedDay per daily record, in date order.
// Precedence: away period (minus presence overrides), then known
// high-load cross-reference, then normal.
func (c *Classifier) Classify(data *CollectedData) []ClassifiedDay {
	awayDates := c.awayDates()

	days := make([]ClassifiedDay, 0, len(data.Days))
	for _, rec := range data.Days {
		key := dateKey(rec.Date)

		day := ClassifiedDay{
			Date:      rec.Date,
			Energy:    rec,
			HomeKwh:   rec.HomeWh / 1000.0,
			Type:      DayNormal,
			IsWeekend: rec.Date.Weekday() == time.Saturday || rec.Date.Weekday() == time.Sunday,
		}

		if w, ok := data.Weather[key]; ok {
			day.Weather = w
			day.HasWeather = true
			if HDDBaseTempF > w.TempMean {
				day.HeatingDegreeDays = HDDBaseTempF - w.TempMean
			}
			day.PriorDayTempMin = w.TempMin
		}

		if prior, ok := data.Weather[dateKey(rec.Date.AddDate(0, 0, -1))]; ok {
			day.PriorDayTempMin = prior.TempMin
		}
		day.ThermalMassLag = trailingMeanTemp(data.Weather, rec.Date)

		if _, away := awayDates[key]; away {
			day.Type = DayAway
		} else if estimate, known := data.KnownHighLoad[key]; known {
			day.Type = DayHighLoad
			day.ConfoundingKwh = estimate
		}

		day.AdjustedKwh = day.HomeKwh - day.ConfoundingKwh
		if day.AdjustedKwh < 0 {
			day.AdjustedKwh = 0
		}

		days = append(days, day)
	}

	normal, away, highLoad := countTypes(days)
	c.logger.Info("Days classified",
		"normal", normal,
		"away", away,
		"high_load", highLoad,
	)

	return days
}

// awayDates expands the configured away periods into a date set, honoring
// the presence overrides.
func (c *Classifier) awayDates() map[string]struct{} {
	dates := make(map[string]struct{})
	for _, p := range c.config.AwayPeriods {
		start, err := time.Parse("2006-01-02", p.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse("2006-01-02", p.End)
		if err != nil {
			continue
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates[dateKey(d)] = struct{}{}
		}
		for _, present := range p.PresentDates {
			delete(dates, present)
		}
	}
	return dates
}

// trailingMeanTemp returns the mean of the available mean temperatures for
// the given date and the two days before it.
func trailingMeanTemp(weather map[string]WeatherDay, date time.Time) float64 {
	sum := 0.0
	n := 0
	for back := 0; back < 3; back++ {
		if w, ok := weather[dateKey(date.AddDate(0, 0, -back))]; ok {
			sum += w.TempMean
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func countTypes(days []ClassifiedDay) (normal, away, highLoad int) {
	for _, d := range days {
		switch d.Type {
		case DayNormal:
			normal++
		case DayAway:
			away++
		case DayHighLoad:
			highLoad++
		}
	}
	return
}

// SignalPatternDetector refines classification by scanning sub-daily series
// on statistically high-consumption normal days for a sustained high-power
// signature. Matching days are reclassified to high-load; this is the
// pipeline's only in-place mutation of a prior stage's output.
type SignalPatternDetector struct {
	config *Config
	logger *Logger
}

// NewSignalPatternDetector creates a new detector
func NewSignalPatternDetector(config *Config, logger *Logger) *SignalPatternDetector {
	return &SignalPatternDetector{
		config: config,
		logger: logger,
	}
}

// Refine scans candidate days and reclassifies the ones with a sustained
// high-power run. Returns the number of days reclassified. The candidate
// gate (mean + 1.5 stddev over normal days, bounded below by the absolute
// floor) is computed once up front so the scan stays deterministic.
func (d *SignalPatternDetector) Refine(days []ClassifiedDay, intervals map[string][]SubDailyInterval) int {
	var totals []float64
	for _, day := range days {
		if day.Type == DayNormal {
			totals = append(totals, day.HomeKwh)
		}
	}
	if len(totals) == 0 {
		return 0
	}

	mean := calculateMean(totals)
	stdDev := calculateStdDev(totals, mean)
	gate := mean + CandidateStdDevFactor*stdDev
	if gate < d.config.CandidateFloorKwh {
		gate = d.config.CandidateFloorKwh
	}

	d.logger.Debug("Signal-pattern candidate gate",
		"mean_kwh", mean,
		"stddev_kwh", stdDev,
		"gate_kwh", gate,
	)

	reclassified := 0
	for i := range days {
		day := &days[i]
		if day.Type != DayNormal || day.HomeKwh <= gate {
			continue
		}

		series, ok := intervals[dateKey(day.Date)]
		if !ok || len(series) == 0 {
			continue
		}

		runSamples, runWh := d.longestHighPowerRun(series)
		if runSamples < d.config.MinRunSamples {
			continue
		}

		// The single documented classification-refinement mutation
		day.Type = DayHighLoad
		day.ConfoundingKwh = runWh / 1000.0
		day.AdjustedKwh = day.HomeKwh - day.ConfoundingKwh
		if day.AdjustedKwh < 0 {
			day.AdjustedKwh = 0
		}
		reclassified++

		d.logger.LogDayReclassified(dateKey(day.Date), runSamples*IntervalMinutes, day.ConfoundingKwh)
	}

	return reclassified
}

// longestHighPowerRun finds the longest run of consecutive intervals whose
// average power exceeds the configured threshold. Any below-threshold
// interval or missing sample breaks the run. Returns the run's sample
// count and its summed energy in watt-hours.
func (d *SignalPatternDetector) longestHighPowerRun(series []SubDailyInterval) (int, float64) {
	// Wh in a 5-minute sample corresponding to the power threshold
	thresholdWh := d.config.HighPowerThresholdW * IntervalMinutes / 60.0
	sampleGap := IntervalMinutes * time.Minute

	bestSamples, bestWh := 0, 0.0
	curSamples, curWh := 0, 0.0
	var prevTs time.Time

	for _, iv := range series {
		contiguous := curSamples == 0 || iv.Timestamp.Sub(prevTs) == sampleGap
		if iv.HomeWh > thresholdWh && contiguous {
			curSamples++
			curWh += iv.HomeWh
		} else if iv.HomeWh > thresholdWh {
			curSamples = 1
			curWh = iv.HomeWh
		} else {
			curSamples = 0
			curWh = 0
		}
		prevTs = iv.Timestamp

		if curSamples > bestSamples {
			bestSamples = curSamples
			bestWh = curWh
		}
	}

	return bestSamples, bestWh
}
