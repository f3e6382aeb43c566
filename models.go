// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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

// DayType labels a day's occupancy/load classification
type DayType string

const (
	DayNormal   DayType = "normal"
	DayAway     DayType = "away"
	DayHighLoad DayType = "high-load"
)

// SubDailyInterval is a single gateway telemetry sample (5-minute
// granularity). All energy quantities are watt-hours for the interval.
type SubDailyInterval struct {
	Timestamp           time.Time `json:"timestamp"`
	HomeWh              float64   `json:"homeWh"`
	SolarWh             float64   `json:"solarWh"`
	GridImportedWh      float64   `json:"gridImportedWh"`
	GridExportedWh      float64   `json:"gridExportedWh"`
	BatteryChargedWh    float64   `json:"batteryChargedWh"`
	BatteryDischargedWh float64   `json:"batteryDischargedWh"`
}

// DailyEnergyRecord is one day's telemetry, summed from deduplicated
// sub-daily intervals. Immutable after aggregation.
type DailyEnergyRecord struct {
	Date                time.Time `json:"date"`
	HomeWh              float64   `json:"homeWh"`
	SolarWh             float64   `json:"solarWh"`
	GridImportedWh      float64   `json:"gridImportedWh"`
	GridExportedWh      float64   `json:"gridExportedWh"`
	BatteryChargedWh    float64   `json:"batteryChargedWh"`
	BatteryDischargedWh float64   `json:"batteryDischargedWh"`
	IntervalCount       int       `json:"intervalCount"`
}

// WeatherDay is one day's weather observations for the configured
// geolocation. Temperatures are Fahrenheit, wind speeds mph.
type WeatherDay struct {
	Date        time.Time `json:"date"`
	TempMax     float64   `json:"tempMax"`
	TempMin     float64   `json:"tempMin"`
	TempMean    float64   `json:"tempMean"`
	WindMax     float64   `json:"windMax"`
	WindGustMax float64   `json:"windGustMax"`
}

// ClassifiedDay composes a day's energy and weather with derived analysis
// fields. All fields are write-once except Type, ConfoundingKwh and
// AdjustedKwh, which the signal-pattern detector updates exactly once when
// it reclassifies a day to high-load.
type ClassifiedDay struct {
	Date       time.Time         `json:"date"`
	Energy     DailyEnergyRecord `json:"energy"`
	Weather    WeatherDay        `json:"weather"`
	HasWeather bool              `json:"hasWeather"`

	Type           DayType `json:"type"`
	HomeKwh        float64 `json:"homeKwh"`
	ConfoundingKwh float64 `json:"confoundingKwh"` // estimated sauna or similar load
	AdjustedKwh    float64 `json:"adjustedKwh"`    // HomeKwh - ConfoundingKwh, never negative

	HeatingDegreeDays float64 `json:"heatingDegreeDays"`
	PriorDayTempMin   float64 `json:"priorDayTempMin"`
	ThermalMassLag    float64 `json:"thermalMassLag"` // trailing 3-day mean temperature
	IsWeekend         bool    `json:"isWeekend"`
}

// RegressionModel is a fitted ordinary-least-squares model. Coefficients[0]
// is the intercept; Coefficients[i+1] pairs with Features[i]. Never mutated
// after fitting.
type RegressionModel struct {
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	R2           float64   `json:"r2"`
	DayCount     int       `json:"dayCount"`
}

// Predict evaluates the model for one feature vector (same order as Features).
func (m *RegressionModel) Predict(features []float64) float64 {
	v := m.Coefficients[0]
	for i, f := range features {
		v += m.Coefficients[i+1] * f
	}
	return v
}

// TempSegment is one outdoor-minimum-temperature bucket of a segmented
// model. A day matches when MinTemp < tempMin <= MaxTemp. The segment
// holds either a fitted two-feature model or a fallback mean when too few
// days were available.
type TempSegment struct {
	Name        string           `json:"name"`
	MinTemp     float64          `json:"minTemp"` // exclusive
	MaxTemp     float64          `json:"maxTemp"` // inclusive
	DayCount    int              `json:"dayCount"`
	Model       *RegressionModel `json:"model,omitempty"`
	FallbackKwh float64          `json:"fallbackKwh"`
}

// Matches reports whether a day's minimum temperature falls in this segment.
func (s *TempSegment) Matches(tempMin float64) bool {
	return tempMin > s.MinTemp && tempMin <= s.MaxTemp
}

// SegmentedModel combines per-temperature-range models with a competitively
// selected global model used when no fitted segment applies.
type SegmentedModel struct {
	Segments   []TempSegment   `json:"segments"`
	Global     RegressionModel `json:"global"`
	GlobalName string          `json:"globalName"`
}

// CandidateSummary records one global feature set's outcome in the model
// competition.
type CandidateSummary struct {
	Name     string  `json:"name"`
	R2       float64 `json:"r2"`
	Selected bool    `json:"selected"`
	Excluded bool    `json:"excluded"` // singular fit, removed from competition
}

// AnomalyDirection indicates which side of the model a residual fell on.
type AnomalyDirection string

const (
	AnomalyHigh AnomalyDirection = "HIGH"
	AnomalyLow  AnomalyDirection = "LOW"
)

// AnomalyRecord is a statistically outlying day relative to the fitted model.
type AnomalyRecord struct {
	Date           time.Time        `json:"date"`
	Direction      AnomalyDirection `json:"direction"`
	ActualKwh      float64          `json:"actualKwh"`
	ExpectedKwh    float64          `json:"expectedKwh"`
	ResidualKwh    float64          `json:"residualKwh"`
	ZScore         float64          `json:"zScore"`
	SuspectedCause string           `json:"suspectedCause"`
}

// HourlyBucket is one hour's aggregated consumption within a drill-down.
type HourlyBucket struct {
	Hour    int     `json:"hour"`
	HomeWh  float64 `json:"homeWh"`
	SolarWh float64 `json:"solarWh"`
}

// DrillDown is the hourly load shape of one anomalous day with detected
// pattern tags. Computed only for the top anomalies by |z-score|.
type DrillDown struct {
	Date  time.Time      `json:"date"`
	Hours []HourlyBucket `json:"hours"`
	Tags  []string       `json:"tags"`
}

// EnvelopeModel is the closed-form heat-loss breakdown of one assumed
// building envelope, converted to electrical kWh per heating degree day.
type EnvelopeModel struct {
	Name                 string  `json:"name"`
	COP                  float64 `json:"cop"`
	InfiltrationKwhPerDD float64 `json:"infiltrationKwhPerDD"`
	VentilationKwhPerDD  float64 `json:"ventilationKwhPerDD"`
	ConductionKwhPerDD   float64 `json:"conductionKwhPerDD"`
	TotalKwhPerDD        float64 `json:"totalKwhPerDD"`
	AnnualKwh            float64 `json:"annualKwh"`
}

// BenchmarkResult compares measured heating intensity against theoretical
// envelope models.
type BenchmarkResult struct {
	BaseloadKwh       float64       `json:"baseloadKwh"`
	BaseloadSource    string        `json:"baseloadSource"`         // step-change, date-split or fallback
	BaseloadDays      []string      `json:"baseloadDays,omitempty"` // YYYY-MM-DD dates averaged into BaseloadKwh
	HeatingKwhPerDD   float64       `json:"heatingKwhPerDD"`
	AnnualDegreeDays  float64       `json:"annualDegreeDays"`
	MeasuredAnnualKwh float64       `json:"measuredAnnualKwh"`
	TightEnvelope     EnvelopeModel `json:"tightEnvelope"`
	CodeMinEnvelope   EnvelopeModel `json:"codeMinEnvelope"`
	TargetName        string        `json:"targetName"`
	TargetAnnualKwh   float64       `json:"targetAnnualKwh"`
}

// CauseCorrelation ranks a suspected anomaly cause by how often it fired.
type CauseCorrelation struct {
	Cause      string  `json:"cause"`
	Count      int     `json:"count"`
	MeanZScore float64 `json:"meanZScore"`
	MeanExcess float64 `json:"meanExcessKwh"`
}

// Recommendation is an actionable suggestion derived from the analysis.
type Recommendation struct {
	Category    string `json:"category"` // envelope, load, data, model
	Priority    string `json:"priority"` // high, medium, low
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// CollectedData holds everything fetched (or loaded from cache) for a run.
type CollectedData struct {
	SiteID        string                        `json:"siteId"`
	SiteName      string                        `json:"siteName,omitempty"`
	HasSolar      bool                          `json:"hasSolar"`
	HasBattery    bool                          `json:"hasBattery"`
	WindowStart   time.Time                     `json:"windowStart"`
	WindowEnd     time.Time                     `json:"windowEnd"`
	Days          []DailyEnergyRecord           `json:"days"`
	Intervals     map[string][]SubDailyInterval `json:"intervals"`     // keyed by YYYY-MM-DD
	Weather       map[string]WeatherDay         `json:"weather"`       // keyed by YYYY-MM-DD
	KnownHighLoad map[string]float64            `json:"knownHighLoad"` // date -> a-priori kWh estimate
	FetchedAt     time.Time                     `json:"fetchedAt"`
	Warnings      []string                      `json:"warnings"`
}

// AnalysisResult is the machine-readable output of the full pipeline. The
// reporters render it without further computation.
type AnalysisResult struct {
	GeneratedAt time.Time `json:"generatedAt"`
	SiteID      string    `json:"siteId"`
	SiteName    string    `json:"siteName,omitempty"`
	HasSolar    bool      `json:"hasSolar"`
	HasBattery  bool      `json:"hasBattery"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	Days          []ClassifiedDay `json:"days"`
	CountNormal   int             `json:"countNormal"`
	CountAway     int             `json:"countAway"`
	CountHighLoad int             `json:"countHighLoad"`

	Model      SegmentedModel     `json:"model"`
	Candidates []CandidateSummary `json:"candidates"`

	Anomalies  []AnomalyRecord `json:"anomalies"`
	DrillDowns []DrillDown     `json:"drillDowns"`

	Benchmark BenchmarkResult `json:"benchmark"`

	ConfoundingDays     int     `json:"confoundingDays"`
	ConfoundingKwhTotal float64 `json:"confoundingKwhTotal"`

	Correlations    []CauseCorrelation `json:"correlations"`
	Recommendations []Recommendation   `json:"recommendations"`
	Warnings        []string           `json:"warnings"`

	// Charts (base64 encoded PNG images)
	ConsumptionChart string `json:"consumptionChart,omitempty"`
	ResidualChart    string `json:"residualChart,omitempty"`
}

// Gateway API response structures

// TokenResponse is the gateway auth token response
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// SiteResponse describes the monitored site
type SiteResponse struct {
	SiteID     string `json:"site_id"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
	HasSolar   bool   `json:"has_solar"`
	HasBattery bool   `json:"has_battery"`
}

// TelemetryResponse is one page of sub-daily interval telemetry
type TelemetryResponse struct {
	Intervals []struct {
		EndAt                 string  `json:"end_at"`
		HomeEnergy            float64 `json:"home_energy"`
		SolarEnergy           float64 `json:"solar_energy"`
		GridEnergyImported    float64 `json:"grid_energy_imported"`
		GridEnergyExported    float64 `json:"grid_energy_exported"`
		BatteryEnergyImported float64 `json:"battery_energy_imported"`
		BatteryEnergyExported float64 `json:"battery_energy_exported"`
	} `json:"intervals"`
	NextCursor string `json:"next_cursor"`
}

// OpenMeteoResponse represents the response from Open-Meteo historical weather API
type OpenMeteoResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     struct {
		Time        []string  `json:"time"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
		TempMean    []float64 `json:"temperature_2m_mean"`
		WindMax     []float64 `json:"wind_speed_10m_max"`
		WindGustMax []float64 `json:"wind_gusts_10m_max"`
	} `json:"daily"`
}

// dateKey formats a time as the canonical map key for per-day lookups.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
