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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validTestConfig() *Config {
	c, _ := LoadConfig("")
	c.GatewayURL = "https://gateway.example.com"
	c.GatewayKey = "test-key"
	c.SiteID = "12345"
	c.Latitude = 47.6
	c.Longitude = -122.3
	c.WindowStart = "2025-01-01"
	c.WindowEnd = "2025-03-31"
	return c
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SaunaDefaultKwh != 12.0 {
		t.Fatalf("expected sauna default 12 kWh, got %.1f", config.SaunaDefaultKwh)
	}
	if config.HighPowerThresholdW != 7000 {
		t.Fatalf("expected 7000 W threshold, got %.0f", config.HighPowerThresholdW)
	}
	if config.MinRunSamples != 10 {
		t.Fatalf("expected 10 minimum run samples, got %d", config.MinRunSamples)
	}
	if config.AnnualDegreeDays != 9000 {
		t.Fatalf("expected 9000 annual degree days, got %.0f", config.AnnualDegreeDays)
	}
	if config.TightEnvelope.COP != 3.0 || config.CodeMinEnvelope.COP != 2.5 {
		t.Fatalf("unexpected envelope COPs: %.1f / %.1f",
			config.TightEnvelope.COP, config.CodeMinEnvelope.COP)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	yml := `gateway_url: https://gateway.example.com
gateway_key: file-key
site_id: "9876"
latitude: 47.6
longitude: -122.3
window_start: 2025-01-01
window_end: 2025-03-31
sauna_default_kwh: 14
away_periods:
  - start: 2025-02-01
    end: 2025-02-07
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.GatewayKey != "file-key" {
		t.Fatalf("expected file-key, got %s", config.GatewayKey)
	}
	if config.SaunaDefaultKwh != 14 {
		t.Fatalf("file must override the sauna default, got %.1f", config.SaunaDefaultKwh)
	}
	// Untouched defaults survive file loading
	if config.HighPowerThresholdW != 7000 {
		t.Fatalf("expected default threshold to survive, got %.0f", config.HighPowerThresholdW)
	}
	if len(config.AwayPeriods) != 1 || config.AwayPeriods[0].Start != "2025-02-01" {
		t.Fatalf("unexpected away periods: %+v", config.AwayPeriods)
	}

	if err := config.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HEATSCOPE_GATEWAY_KEY", "env-key")
	t.Setenv("HEATSCOPE_SITE_ID", "224488")
	t.Setenv("HEATSCOPE_LATITUDE", "45.5")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.GatewayKey != "env-key" {
		t.Fatalf("expected env-key, got %s", config.GatewayKey)
	}
	if config.SiteID != "224488" {
		t.Fatalf("expected env site id, got %s", config.SiteID)
	}
	if config.Latitude != 45.5 {
		t.Fatalf("expected latitude 45.5, got %.1f", config.Latitude)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	config := validTestConfig()
	config.GatewayURL = "gateway.example.com" // missing scheme
	config.GatewayKey = ""
	config.Latitude = 95
	config.WindowEnd = "not-a-date"

	err := config.Validate()
	if err == nil {
		t.Fatalf("expected validation failure")
	}

	msg := err.Error()
	for _, want := range []string{
		"gateway_url must be an http(s) URL",
		"gateway_key is required",
		"latitude must be between -90 and 90",
		"window_end is not a valid date",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("validation message missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateWindowOrder(t *testing.T) {
	config := validTestConfig()
	config.WindowStart = "2025-03-31"
	config.WindowEnd = "2025-01-01"

	err := config.Validate()
	if err == nil || !strings.Contains(err.Error(), "window_end must not be before window_start") {
		t.Fatalf("expected window order error, got %v", err)
	}
}

func TestLoadSaunaLogDefaultsKwh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sauna.yml")

	yml := `- date: 2025-01-15
  kwh: 15
- date: 2025-01-20
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write sauna log: %v", err)
	}

	config := validTestConfig()
	config.SaunaLogPath = path

	log, err := config.LoadSaunaLog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if log["2025-01-15"] != 15 {
		t.Fatalf("expected explicit 15 kWh, got %.1f", log["2025-01-15"])
	}
	if log["2025-01-20"] != config.SaunaDefaultKwh {
		t.Fatalf("expected default %.1f kWh, got %.1f", config.SaunaDefaultKwh, log["2025-01-20"])
	}
}

func TestLoadSaunaLogMissingFileIsNotFatal(t *testing.T) {
	config := validTestConfig()
	config.SaunaLogPath = filepath.Join(t.TempDir(), "absent.yml")

	log, err := config.LoadSaunaLog()
	if err != nil {
		t.Fatalf("missing sauna log must not error: %v", err)
	}
	if log != nil {
		t.Fatalf("expected nil log for a missing file, got %v", log)
	}
}

func TestLoadSaunaLogRejectsBadDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sauna.yml")
	if err := os.WriteFile(path, []byte("- date: 15-01-2025\n"), 0o644); err != nil {
		t.Fatalf("write sauna log: %v", err)
	}

	config := validTestConfig()
	config.SaunaLogPath = path

	if _, err := config.LoadSaunaLog(); err == nil {
		t.Fatalf("expected invalid-date error")
	}
}
