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
	"time"
)

// TelemetrySource provides site metadata and sub-daily interval telemetry.
// Interval queries may return overlapping windows across successive calls;
// the aggregator deduplicates.
type TelemetrySource interface {
	FetchSite() (*SiteResponse, error)
	FetchIntervals(startDate, endDate time.Time) ([]SubDailyInterval, error)
}

// WeatherSource provides one weather record per calendar date.
type WeatherSource interface {
	FetchDailyWeather(startDate, endDate time.Time) (map[string]WeatherDay, error)
}

// Aggregator merges overlapping telemetry range queries into deduplicated
// per-day totals. A timestamp contributes to at most one day regardless of
// how many query windows returned it.
type Aggregator struct {
	windowStart time.Time
	windowEnd   time.Time
	seen        map[int64]struct{}
	days        map[string]*DailyEnergyRecord
	intervals   map[string][]SubDailyInterval
}

// NewAggregator creates an aggregator for the given analysis window
// (inclusive dates).
func NewAggregator(windowStart, windowEnd time.Time) *Aggregator {
	return &Aggregator{
		windowStart: windowStart,
		windowEnd:   windowEnd,
		seen:        make(map[int64]struct{}),
		days:        make(map[string]*DailyEnergyRecord),
		intervals:   make(map[string][]SubDailyInterval),
	}
}

// Add consumes one range query's intervals. Duplicates are discarded;
// intervals dated outside the analysis window are dropped silently.
func (a *Aggregator) Add(intervals []SubDailyInterval) {
	for _, iv := range intervals {
		if _, dup := a.seen[iv.Timestamp.Unix()]; dup {
			continue
		}
		a.seen[iv.Timestamp.Unix()] = struct{}{}

		// Timestamps are interval end times; the sample belongs to the day
		// it started in, so midnight-ending intervals land on the prior day.
		start := iv.Timestamp.Add(-IntervalMinutes * time.Minute)
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(a.windowStart) || day.After(a.windowEnd) {
			continue
		}

		key := dateKey(day)
		rec, ok := a.days[key]
		if !ok {
			rec = &DailyEnergyRecord{Date: day}
			a.days[key] = rec
		}
		rec.HomeWh += iv.HomeWh
		rec.SolarWh += iv.SolarWh
		rec.GridImportedWh += iv.GridImportedWh
		rec.GridExportedWh += iv.GridExportedWh
		rec.BatteryChargedWh += iv.BatteryChargedWh
		rec.BatteryDischargedWh += iv.BatteryDischargedWh
		rec.IntervalCount++

		a.intervals[key] = append(a.intervals[key], iv)
	}
}

// Days returns the aggregated daily records sorted by date.
func (a *Aggregator) Days() []DailyEnergyRecord {
	result := make([]DailyEnergyRecord, 0, len(a.days))
	for _, rec := range a.days {
		result = append(result, *rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

// IntervalsByDate returns the deduplicated sub-daily intervals keyed by
// day, each day's slice sorted by timestamp.
func (a *Aggregator) IntervalsByDate() map[string][]SubDailyInterval {
	for _, ivs := range a.intervals {
		sort.Slice(ivs, func(i, j int) bool {
			return ivs[i].Timestamp.Before(ivs[j].Timestamp)
		})
	}
	return a.intervals
}

// Collector orchestrates data collection from the gateway and weather APIs
type Collector struct {
	telemetry TelemetrySource
	weather   WeatherSource
	config    *Config
	storage   *Storage
	logger    *Logger
}

// NewCollector creates a new data collector
func NewCollector(telemetry TelemetrySource, weather WeatherSource, config *Config, storage *Storage, logger *Logger) *Collector {
	return &Collector{
		telemetry: telemetry,
		weather:   weather,
		config:    config,
		storage:   storage,
		logger:    logger,
	}
}

// CollectAll fetches all required data for the analysis window. Telemetry
// is fetched in overlapping week-sized range queries (cached between runs);
// a failed window is logged, surfaced as a warning and simply absent from
// downstream data.
func (c *Collector) CollectAll() (*CollectedData, error) {
	c.logger.Info("Starting data collection")

	windowStart, windowEnd := c.config.Window()

	data := &CollectedData{
		SiteID:      c.config.SiteID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		FetchedAt:   time.Now(),
	}

	c.logger.Info("Analysis window",
		"start", windowStart.Format("2006-01-02"),
		"end", windowEnd.Format("2006-01-02"),
	)

	// Site metadata (non-fatal on failure; the analysis only loses the
	// site name and capability flags)
	site, err := c.fetchSiteCached()
	if err != nil {
		warning := fmt.Sprintf("site details unavailable: %v", err)
		c.logger.Warn("Failed to fetch site details", "error", err)
		data.Warnings = append(data.Warnings, warning)
	} else {
		if data.SiteID == "" {
			data.SiteID = site.SiteID
		}
		data.SiteName = site.Name
		data.HasSolar = site.HasSolar
		data.HasBattery = site.HasBattery
	}

	// Fetch telemetry in overlapping chunks through the aggregator
	agg := NewAggregator(windowStart, windowEnd)
	for chunkStart := windowStart; !chunkStart.After(windowEnd); chunkStart = chunkStart.AddDate(0, 0, FetchChunkDays-1) {
		chunkEnd := chunkStart.AddDate(0, 0, FetchChunkDays-1)
		if chunkEnd.After(windowEnd) {
			chunkEnd = windowEnd
		}
		// End bound covers through the last day's final interval
		queryEnd := chunkEnd.AddDate(0, 0, 1)

		intervals, err := c.fetchIntervalsCached(chunkStart, queryEnd)
		if err != nil {
			warning := fmt.Sprintf("telemetry window %s to %s unavailable: %v",
				chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), err)
			c.logger.Warn("Failed to fetch telemetry window", "start", chunkStart.Format("2006-01-02"), "error", err)
			data.Warnings = append(data.Warnings, warning)
			continue
		}

		agg.Add(intervals)
	}

	data.Days = agg.Days()
	data.Intervals = agg.IntervalsByDate()
	c.logger.Info("Telemetry collected", "days", len(data.Days))

	if len(data.Days) == 0 {
		return nil, &DataError{
			DataType: "telemetry",
			Message:  "no telemetry available for the analysis window",
		}
	}

	// Fetch weather for the window (non-fatal on failure)
	weather, err := c.fetchWeatherCached(windowStart, windowEnd)
	if err != nil {
		warning := fmt.Sprintf("weather data unavailable: %v", err)
		c.logger.Warn("Failed to fetch weather", "error", err)
		data.Warnings = append(data.Warnings, warning)
	}
	if weather == nil {
		weather = make(map[string]WeatherDay)
	}
	data.Weather = weather
	c.logger.Info("Weather collected", "days", len(weather))

	// Load the known-high-load cross-reference
	saunaLog, err := c.config.LoadSaunaLog()
	if err != nil {
		warning := fmt.Sprintf("sauna log unavailable: %v", err)
		c.logger.Warn("Failed to load sauna log", "error", err)
		data.Warnings = append(data.Warnings, warning)
	}
	data.KnownHighLoad = saunaLog
	if len(saunaLog) > 0 {
		c.logger.Info("Loaded known high-load dates", "count", len(saunaLog))
	}

	c.logger.Info("Data collection completed successfully")
	return data, nil
}

// fetchSiteCached fetches the site metadata with caching (24 hours)
func (c *Collector) fetchSiteCached() (*SiteResponse, error) {
	cacheKey := fmt.Sprintf("site_%s", c.config.SiteID)

	var site *SiteResponse
	cached, err := c.storage.LoadCache(cacheKey, &site)
	if err != nil {
		c.logger.Warn("Failed to load site details from cache", "error", err)
	}

	if !cached || site == nil {
		site, err = c.telemetry.FetchSite()
		if err != nil {
			return nil, err
		}
		if err := c.storage.SaveCache(cacheKey, site, 24*time.Hour); err != nil {
			c.logger.Warn("Failed to cache site details", "error", err)
		}
	} else {
		c.logger.Debug("Loaded site details from cache", "key", cacheKey)
	}

	return site, nil
}

// fetchIntervalsCached fetches one telemetry window with caching (7 days)
func (c *Collector) fetchIntervalsCached(startDate, endDate time.Time) ([]SubDailyInterval, error) {
	cacheKey := fmt.Sprintf("telemetry_%s_%s",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
	)

	var intervals []SubDailyInterval
	cached, err := c.storage.LoadCache(cacheKey, &intervals)
	if err != nil {
		c.logger.Warn("Failed to load telemetry from cache", "error", err)
	}

	if !cached {
		intervals, err = c.telemetry.FetchIntervals(startDate, endDate)
		if err != nil {
			return nil, err
		}
		if err := c.storage.SaveCache(cacheKey, intervals, 7*24*time.Hour); err != nil {
			c.logger.Warn("Failed to cache telemetry", "error", err)
		}
	} else {
		c.logger.Debug("Loaded telemetry from cache", "key", cacheKey, "intervals", len(intervals))
	}

	return intervals, nil
}

// fetchWeatherCached fetches the window's weather with caching (30 days;
// historical observations do not change)
func (c *Collector) fetchWeatherCached(startDate, endDate time.Time) (map[string]WeatherDay, error) {
	cacheKey := fmt.Sprintf("weather_%s_%s",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
	)

	var weather map[string]WeatherDay
	cached, err := c.storage.LoadCache(cacheKey, &weather)
	if err != nil {
		c.logger.Warn("Failed to load weather from cache", "error", err)
	}

	if !cached {
		weather, err = c.weather.FetchDailyWeather(startDate, endDate)
		if err != nil {
			return nil, err
		}
		if len(weather) > 0 {
			if err := c.storage.SaveCache(cacheKey, weather, 30*24*time.Hour); err != nil {
				c.logger.Warn("Failed to cache weather", "error", err)
			}
		}
	} else {
		c.logger.Debug("Loaded weather from cache", "key", cacheKey, "days", len(weather))
	}

	return weather, nil
}
