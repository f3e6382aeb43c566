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
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WeatherClient fetches historical daily weather observations from the
// Open-Meteo archive API. Failures are non-fatal: the pipeline treats a
// missing weather day as an absence for that date.
type WeatherClient struct {
	httpClient *http.Client
	logger     *Logger
	latitude   float64
	longitude  float64
}

// NewWeatherClient creates a new weather client for the given geolocation
func NewWeatherClient(latitude, longitude float64, logger *Logger) *WeatherClient {
	return &WeatherClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		latitude:   latitude,
		longitude:  longitude,
	}
}

// FetchDailyWeather fetches one record per calendar date in the range,
// keyed by YYYY-MM-DD. Temperatures are Fahrenheit, wind speeds mph.
func (w *WeatherClient) FetchDailyWeather(startDate, endDate time.Time) (map[string]WeatherDay, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&start_date=%s&end_date=%s&daily=temperature_2m_max,temperature_2m_min,temperature_2m_mean,wind_speed_10m_max,wind_gusts_10m_max&temperature_unit=fahrenheit&wind_speed_unit=mph&timezone=auto",
		OpenMeteoArchiveEndpoint,
		w.latitude,
		w.longitude,
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
	)

	w.logger.Info("Fetching weather data", "start", startDate.Format("2006-01-02"), "end", endDate.Format("2006-01-02"))

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request: %w", err)
	}

	req.Header.Set("User-Agent", GetUserAgent())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn("Failed to fetch weather data", "error", err)
		return nil, nil // Non-fatal, continue without weather
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Warn("Weather API returned non-200 status", "status", resp.StatusCode)
		return nil, nil // Non-fatal
	}

	var weatherResp OpenMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&weatherResp); err != nil {
		w.logger.Warn("Failed to decode weather response", "error", err)
		return nil, nil // Non-fatal
	}

	// Convert to map for per-day lookup
	weatherMap := make(map[string]WeatherDay)
	for i, dateStr := range weatherResp.Daily.Time {
		if i >= len(weatherResp.Daily.TempMax) || i >= len(weatherResp.Daily.TempMin) ||
			i >= len(weatherResp.Daily.TempMean) || i >= len(weatherResp.Daily.WindMax) ||
			i >= len(weatherResp.Daily.WindGustMax) {
			break
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		weatherMap[dateStr] = WeatherDay{
			Date:        date,
			TempMax:     weatherResp.Daily.TempMax[i],
			TempMin:     weatherResp.Daily.TempMin[i],
			TempMean:    weatherResp.Daily.TempMean[i],
			WindMax:     weatherResp.Daily.WindMax[i],
			WindGustMax: weatherResp.Daily.WindGustMax[i],
		}
	}

	w.logger.Info("Fetched weather data", "days", len(weatherMap))
	return weatherMap, nil
}
