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
	"strings"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// makeIntervals produces n contiguous 5-minute samples whose first interval
// ends at first, each carrying wh of home energy.
func makeIntervals(first time.Time, n int, wh float64) []SubDailyInterval {
	intervals := make([]SubDailyInterval, n)
	for i := range intervals {
		intervals[i] = SubDailyInterval{
			Timestamp: first.Add(time.Duration(i) * IntervalMinutes * time.Minute),
			HomeWh:    wh,
		}
	}
	return intervals
}

func TestAggregatorDeduplicatesOverlappingWindows(t *testing.T) {
	agg := NewAggregator(day(2025, 1, 1), day(2025, 1, 7))

	batch := makeIntervals(day(2025, 1, 2).Add(5*time.Minute), 10, 100)

	// The same samples arrive from two overlapping range queries
	agg.Add(batch)
	agg.Add(batch)

	days := agg.Days()
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if days[0].HomeWh != 1000 {
		t.Fatalf("expected 1000 Wh after dedup, got %.1f", days[0].HomeWh)
	}
	if days[0].IntervalCount != 10 {
		t.Fatalf("expected 10 intervals after dedup, got %d", days[0].IntervalCount)
	}
}

func TestAggregatorAssignsMidnightEndingIntervalToPriorDay(t *testing.T) {
	agg := NewAggregator(day(2025, 1, 1), day(2025, 1, 7))

	// Ends exactly at midnight Jan 3; the sample covers 23:55-00:00 of Jan 2
	agg.Add([]SubDailyInterval{{Timestamp: day(2025, 1, 3), HomeWh: 50}})

	days := agg.Days()
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if !days[0].Date.Equal(day(2025, 1, 2)) {
		t.Fatalf("expected interval assigned to 2025-01-02, got %s", days[0].Date.Format("2006-01-02"))
	}
}

func TestAggregatorDropsIntervalsOutsideWindow(t *testing.T) {
	agg := NewAggregator(day(2025, 1, 2), day(2025, 1, 3))

	agg.Add([]SubDailyInterval{
		{Timestamp: day(2025, 1, 1).Add(5 * time.Minute), HomeWh: 10}, // before window
		{Timestamp: day(2025, 1, 2).Add(5 * time.Minute), HomeWh: 20}, // in window
		{Timestamp: day(2025, 1, 5).Add(5 * time.Minute), HomeWh: 30}, // after window
	})

	days := agg.Days()
	if len(days) != 1 {
		t.Fatalf("expected 1 day inside the window, got %d", len(days))
	}
	if days[0].HomeWh != 20 {
		t.Fatalf("expected only the in-window sample, got %.1f Wh", days[0].HomeWh)
	}
}

func TestAggregatorSortsDaysAndIntervals(t *testing.T) {
	agg := NewAggregator(day(2025, 1, 1), day(2025, 1, 7))

	later := makeIntervals(day(2025, 1, 5).Add(5*time.Minute), 3, 10)
	earlier := makeIntervals(day(2025, 1, 3).Add(5*time.Minute), 3, 10)
	agg.Add(later)
	agg.Add(earlier)

	days := agg.Days()
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if !days[0].Date.Before(days[1].Date) {
		t.Fatalf("days not sorted by date: %v then %v", days[0].Date, days[1].Date)
	}

	byDate := agg.IntervalsByDate()
	series := byDate[dateKey(day(2025, 1, 3))]
	for i := 1; i < len(series); i++ {
		if series[i].Timestamp.Before(series[i-1].Timestamp) {
			t.Fatalf("intervals not sorted by timestamp at index %d", i)
		}
	}
}

// stubGateway serves canned site metadata and telemetry, counting site
// fetches so cache behavior is observable.
type stubGateway struct {
	site      *SiteResponse
	siteErr   error
	siteCalls int
	intervals []SubDailyInterval
}

func (s *stubGateway) FetchSite() (*SiteResponse, error) {
	s.siteCalls++
	if s.siteErr != nil {
		return nil, s.siteErr
	}
	return s.site, nil
}

func (s *stubGateway) FetchIntervals(startDate, endDate time.Time) ([]SubDailyInterval, error) {
	return s.intervals, nil
}

type stubWeather struct{}

func (stubWeather) FetchDailyWeather(startDate, endDate time.Time) (map[string]WeatherDay, error) {
	return map[string]WeatherDay{}, nil
}

func collectorFixture(t *testing.T, gateway *stubGateway) *Collector {
	t.Helper()

	config := &Config{
		SiteID:      "777",
		WindowStart: "2025-01-01",
		WindowEnd:   "2025-01-02",
	}
	logger := NewLogger(false)
	storage, err := NewStorage(t.TempDir(), config.SiteID, logger)
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}
	return NewCollector(gateway, stubWeather{}, config, storage, logger)
}

func TestCollectAllPopulatesSiteDetails(t *testing.T) {
	gateway := &stubGateway{
		site:      &SiteResponse{SiteID: "777", Name: "Cabin", HasSolar: true, HasBattery: true},
		intervals: makeIntervals(day(2025, 1, 1).Add(5*time.Minute), 12, 100),
	}

	data, err := collectorFixture(t, gateway).CollectAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.SiteName != "Cabin" {
		t.Fatalf("expected site name Cabin, got %q", data.SiteName)
	}
	if !data.HasSolar || !data.HasBattery {
		t.Fatalf("expected solar and battery flags set")
	}
	if len(data.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", data.Warnings)
	}
}

func TestCollectAllCachesSiteDetails(t *testing.T) {
	gateway := &stubGateway{
		site:      &SiteResponse{SiteID: "777", Name: "Cabin"},
		intervals: makeIntervals(day(2025, 1, 1).Add(5*time.Minute), 12, 100),
	}
	collector := collectorFixture(t, gateway)

	for i := 0; i < 2; i++ {
		if _, err := collector.CollectAll(); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}

	if gateway.siteCalls != 1 {
		t.Fatalf("expected 1 site fetch across runs, got %d", gateway.siteCalls)
	}
}

func TestCollectAllSiteFailureIsNonFatal(t *testing.T) {
	gateway := &stubGateway{
		siteErr:   fmt.Errorf("gateway unreachable"),
		intervals: makeIntervals(day(2025, 1, 1).Add(5*time.Minute), 12, 100),
	}

	data, err := collectorFixture(t, gateway).CollectAll()
	if err != nil {
		t.Fatalf("site failure must not abort collection: %v", err)
	}

	if len(data.Warnings) != 1 || !strings.Contains(data.Warnings[0], "site details unavailable") {
		t.Fatalf("expected a site warning, got %v", data.Warnings)
	}
	if data.SiteName != "" {
		t.Fatalf("site name should stay empty on failure, got %q", data.SiteName)
	}
}
