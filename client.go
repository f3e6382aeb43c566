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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// GatewayClient handles communication with the energy gateway REST API
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *Logger

	// Session token management
	token       string
	tokenExpiry time.Time
	tokenMutex  sync.RWMutex

	// Rate limiting
	lastRequest  time.Time
	requestMutex sync.Mutex
}

// NewGatewayClient creates a new energy gateway API client
func NewGatewayClient(baseURL, apiKey string, logger *Logger) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// ensureValidToken ensures we have a valid session token
func (c *GatewayClient) ensureValidToken() error {
	c.tokenMutex.RLock()
	hasValidToken := c.token != "" && time.Now().Before(c.tokenExpiry)
	c.tokenMutex.RUnlock()

	if hasValidToken {
		return nil
	}

	return c.refreshToken()
}

// refreshToken obtains a new session token from the gateway
func (c *GatewayClient) refreshToken() error {
	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	c.logger.Debug("Refreshing gateway token")

	endpoint := c.baseURL + "/auth/token"
	payload := map[string]string{"api_key": c.apiKey}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", GetUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{
			Endpoint: endpoint,
			Message:  "failed to request session token",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    fmt.Sprintf("token request failed: %s", string(bodyBytes)),
		}
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	if tokenResp.Token == "" {
		return &AuthError{
			Message: "empty token received from gateway",
		}
	}

	c.token = tokenResp.Token
	c.tokenExpiry = time.Now().Add(23 * time.Hour)
	if expiry, err := time.Parse(time.RFC3339, tokenResp.ExpiresAt); err == nil {
		// Refresh a little before the server-side expiry
		c.tokenExpiry = expiry.Add(-5 * time.Minute)
	}

	c.logger.Debug("Gateway token refreshed successfully")
	return nil
}

// makeRequest makes an authenticated GET request and decodes the JSON body
func (c *GatewayClient) makeRequest(endpoint string, result interface{}) error {
	// Ensure we have a valid token
	if err := c.ensureValidToken(); err != nil {
		return err
	}

	// Rate limiting: minimum 100ms between requests
	c.requestMutex.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.requestMutex.Unlock()

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.tokenMutex.RLock()
	token := c.token
	c.tokenMutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", GetUserAgent())

	c.logger.LogAPIRequest("GET", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{
			Endpoint: endpoint,
			Message:  "gateway request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Invalidate token so the next call re-authenticates
		c.tokenMutex.Lock()
		c.token = ""
		c.tokenMutex.Unlock()

		return &AuthError{
			Message: fmt.Sprintf("authentication failed (status %d)", resp.StatusCode),
		}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.LogAPIError(endpoint, resp.StatusCode, fmt.Errorf("%s", string(bodyBytes)))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    string(bodyBytes),
		}
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// FetchSite fetches the monitored site's metadata
func (c *GatewayClient) FetchSite() (*SiteResponse, error) {
	c.logger.Info("Fetching site details")

	var site SiteResponse
	if err := c.makeRequest(c.baseURL+"/api/v1/site", &site); err != nil {
		return nil, fmt.Errorf("failed to fetch site details: %w", err)
	}

	c.logger.Info("Site details fetched",
		"site", site.SiteID,
		"solar", site.HasSolar,
		"battery", site.HasBattery,
	)
	return &site, nil
}

// FetchIntervals fetches 5-minute telemetry for a date range, following
// pagination cursors until the range is exhausted. Timestamps are the
// interval end times.
func (c *GatewayClient) FetchIntervals(startDate, endDate time.Time) ([]SubDailyInterval, error) {
	var intervals []SubDailyInterval
	cursor := ""

	for {
		endpoint := fmt.Sprintf("%s/api/v1/telemetry?granularity=5min&start_at=%s&end_at=%s",
			c.baseURL,
			url.QueryEscape(startDate.Format(time.RFC3339)),
			url.QueryEscape(endDate.Format(time.RFC3339)),
		)
		if cursor != "" {
			endpoint += "&cursor=" + url.QueryEscape(cursor)
		}

		var page TelemetryResponse
		if err := c.makeRequest(endpoint, &page); err != nil {
			return nil, err
		}

		for _, iv := range page.Intervals {
			ts, err := time.Parse(time.RFC3339, iv.EndAt)
			if err != nil {
				c.logger.Warn("Skipping interval with malformed timestamp", "end_at", iv.EndAt)
				continue
			}
			intervals = append(intervals, SubDailyInterval{
				Timestamp:           ts,
				HomeWh:              iv.HomeEnergy,
				SolarWh:             iv.SolarEnergy,
				GridImportedWh:      iv.GridEnergyImported,
				GridExportedWh:      iv.GridEnergyExported,
				BatteryChargedWh:    iv.BatteryEnergyImported,
				BatteryDischargedWh: iv.BatteryEnergyExported,
			})
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.logger.Debug("Fetched telemetry window",
		"start", startDate.Format("2006-01-02"),
		"end", endDate.Format("2006-01-02"),
		"intervals", len(intervals),
	)

	return intervals, nil
}
