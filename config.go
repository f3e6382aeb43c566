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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AwayPeriod is an inclusive date range the occupants were away.
// PresentDates lists individual dates inside the range when someone was
// actually home.
type AwayPeriod struct {
	Start        string   `yaml:"start"`
	End          string   `yaml:"end"`
	PresentDates []string `yaml:"present_dates"`
}

// EnvelopeConfig holds the assumed physical parameters for one theoretical
// envelope model.
type EnvelopeConfig struct {
	ACH50          float64 `yaml:"ach50"`
	COP            float64 `yaml:"cop"`
	WallR          float64 `yaml:"wall_r"`
	CeilingR       float64 `yaml:"ceiling_r"`
	FloorR         float64 `yaml:"floor_r"`
	WindowU        float64 `yaml:"window_u"`
	HRVEfficiency  float64 `yaml:"hrv_efficiency"`
	VentilationCFM float64 `yaml:"ventilation_cfm"`
}

// GeometryConfig holds the fixed building geometry shared by both envelope
// models (square feet / cubic feet).
type GeometryConfig struct {
	WallAreaSqft    float64 `yaml:"wall_area_sqft"`
	CeilingAreaSqft float64 `yaml:"ceiling_area_sqft"`
	FloorAreaSqft   float64 `yaml:"floor_area_sqft"`
	WindowAreaSqft  float64 `yaml:"window_area_sqft"`
	VolumeCuft      float64 `yaml:"volume_cuft"`
}

// Config holds the application configuration
type Config struct {
	// Gateway credentials
	GatewayURL string `yaml:"gateway_url"`
	GatewayKey string `yaml:"gateway_key"`
	SiteID     string `yaml:"site_id"`

	// Location for weather lookups
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	// Analysis window (inclusive dates, YYYY-MM-DD)
	WindowStart string `yaml:"window_start"`
	WindowEnd   string `yaml:"window_end"`

	// Classification inputs
	AwayPeriods     []AwayPeriod `yaml:"away_periods"`
	SaunaLogPath    string       `yaml:"sauna_log"`
	SaunaDefaultKwh float64      `yaml:"sauna_default_kwh"`

	// Signal-pattern detection
	HighPowerThresholdW float64 `yaml:"high_power_threshold_w"`
	MinRunSamples       int     `yaml:"min_run_samples"`
	CandidateFloorKwh   float64 `yaml:"candidate_floor_kwh"`

	// Benchmark assumptions. These are external climatological and
	// equipment assumptions, never derived from the analysis sample.
	AnnualDegreeDays   float64        `yaml:"annual_degree_days"`
	BaseloadFallback   float64        `yaml:"baseload_fallback_kwh"`
	TargetName         string         `yaml:"target_name"`
	TargetAnnualKwh    float64        `yaml:"target_annual_kwh"`
	Geometry           GeometryConfig `yaml:"geometry"`
	TightEnvelope      EnvelopeConfig `yaml:"tight_envelope"`
	CodeMinEnvelope    EnvelopeConfig `yaml:"code_min_envelope"`

	// Storage
	StoragePath string `yaml:"storage_path"`

	// Debugging
	Debug bool `yaml:"debug"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Set defaults
	config := &Config{
		SaunaDefaultKwh:     12.0,
		HighPowerThresholdW: 7000,
		MinRunSamples:       10,
		CandidateFloorKwh:   45.0,
		AnnualDegreeDays:    9000,
		BaseloadFallback:    10.0,
		TargetName:          "Passive house target",
		TargetAnnualKwh:     4500,
		Geometry: GeometryConfig{
			WallAreaSqft:    2400,
			CeilingAreaSqft: 1200,
			FloorAreaSqft:   1200,
			WindowAreaSqft:  300,
			VolumeCuft:      21600,
		},
		TightEnvelope: EnvelopeConfig{
			ACH50:          1.0,
			COP:            3.0,
			WallR:          40,
			CeilingR:       60,
			FloorR:         30,
			WindowU:        0.17,
			HRVEfficiency:  0.80,
			VentilationCFM: 60,
		},
		CodeMinEnvelope: EnvelopeConfig{
			ACH50:          3.0,
			COP:            2.5,
			WallR:          21,
			CeilingR:       49,
			FloorR:         15,
			WindowU:        0.30,
			HRVEfficiency:  0.0,
			VentilationCFM: 60,
		},
		StoragePath: getDefaultStoragePath(),
		Debug:       false,
	}

	// If no path provided, return defaults with env var overrides
	if path == "" {
		config.applyEnvironmentVariables()
		return config, nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentVariables()

	return config, nil
}

// getDefaultStoragePath returns the default storage path
func getDefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".heatscope"
	}
	return filepath.Join(home, ".config", "heatscope")
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() {
	if val := os.Getenv("HEATSCOPE_GATEWAY_URL"); val != "" {
		c.GatewayURL = val
	}
	if val := os.Getenv("HEATSCOPE_GATEWAY_KEY"); val != "" {
		c.GatewayKey = val
	}
	if val := os.Getenv("HEATSCOPE_SITE_ID"); val != "" {
		c.SiteID = val
	}
	if val := os.Getenv("HEATSCOPE_LATITUDE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Latitude = f
		}
	}
	if val := os.Getenv("HEATSCOPE_LONGITUDE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Longitude = f
		}
	}
	if val := os.Getenv("HEATSCOPE_STORAGE_PATH"); val != "" {
		c.StoragePath = val
	}
	if val := os.Getenv("HEATSCOPE_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	// Required fields
	if c.GatewayURL == "" {
		errors = append(errors, "gateway_url is required")
	} else if !strings.HasPrefix(c.GatewayURL, "http://") && !strings.HasPrefix(c.GatewayURL, "https://") {
		errors = append(errors, "gateway_url must be an http(s) URL")
	}

	if c.GatewayKey == "" {
		errors = append(errors, "gateway_key is required")
	}

	if c.Latitude < -90 || c.Latitude > 90 {
		errors = append(errors, "latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		errors = append(errors, "longitude must be between -180 and 180")
	}

	start, startErr := c.windowBound(c.WindowStart, "window_start", &errors)
	end, endErr := c.windowBound(c.WindowEnd, "window_end", &errors)
	if startErr == nil && endErr == nil && end.Before(start) {
		errors = append(errors, "window_end must not be before window_start")
	}

	for i, p := range c.AwayPeriods {
		if _, err := time.Parse("2006-01-02", p.Start); err != nil {
			errors = append(errors, fmt.Sprintf("away_periods[%d].start is not a valid date", i))
		}
		if _, err := time.Parse("2006-01-02", p.End); err != nil {
			errors = append(errors, fmt.Sprintf("away_periods[%d].end is not a valid date", i))
		}
	}

	if c.HighPowerThresholdW <= 0 {
		errors = append(errors, "high_power_threshold_w must be positive")
	}
	if c.MinRunSamples < 1 {
		errors = append(errors, "min_run_samples must be at least 1")
	}
	if c.AnnualDegreeDays <= 0 {
		errors = append(errors, "annual_degree_days must be positive")
	}
	if c.TightEnvelope.COP <= 0 || c.CodeMinEnvelope.COP <= 0 {
		errors = append(errors, "envelope cop values must be positive")
	}

	// Set default storage path if empty
	if c.StoragePath == "" {
		c.StoragePath = getDefaultStoragePath()
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) windowBound(value, field string, errors *[]string) (time.Time, error) {
	if value == "" {
		*errors = append(*errors, field+" is required")
		return time.Time{}, fmt.Errorf("missing")
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		*errors = append(*errors, field+" is not a valid date (want YYYY-MM-DD)")
		return time.Time{}, err
	}
	return t, nil
}

// Window returns the parsed analysis window bounds. Validate must have
// succeeded first.
func (c *Config) Window() (start, end time.Time) {
	start, _ = time.Parse("2006-01-02", c.WindowStart)
	end, _ = time.Parse("2006-01-02", c.WindowEnd)
	return start, end
}

// saunaLogEntry is one row of the known-high-load cross-reference file.
type saunaLogEntry struct {
	Date string  `yaml:"date"`
	Kwh  float64 `yaml:"kwh"`
}

// LoadSaunaLog reads the optional known-high-load cross-reference: dates
// with a confirmed sauna session and an optional a-priori energy estimate.
// A missing file is not an error; the classifier just runs without it.
func (c *Config) LoadSaunaLog() (map[string]float64, error) {
	if c.SaunaLogPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.SaunaLogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sauna log: %w", err)
	}

	var entries []saunaLogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse sauna log: %w", err)
	}

	log := make(map[string]float64, len(entries))
	for i, e := range entries {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			return nil, fmt.Errorf("sauna log entry %d has invalid date %q", i, e.Date)
		}
		kwh := e.Kwh
		if kwh <= 0 {
			kwh = c.SaunaDefaultKwh
		}
		log[e.Date] = kwh
	}

	return log, nil
}
