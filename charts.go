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
	"encoding/base64"
	"fmt"

	charts "github.com/vicanso/go-charts/v2"
)

// ChartGenerator handles chart generation
type ChartGenerator struct {
	theme string
}

// NewChartGenerator creates a new chart generator
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{
		theme: "dark", // Match our HTML report dark theme
	}
}

// GenerateConsumptionChart creates a line chart of adjusted daily consumption
// against the model's prediction and the day's minimum temperature.
func (cg *ChartGenerator) GenerateConsumptionChart(result *AnalysisResult) (string, error) {
	if len(result.Days) == 0 {
		return "", fmt.Errorf("no classified days available")
	}

	var actualValues []float64
	var predictedValues []float64
	var tempValues []float64
	var labels []string

	for i := range result.Days {
		d := &result.Days[i]
		labels = append(labels, d.Date.Format("Jan 2"))
		actualValues = append(actualValues, d.AdjustedKwh)
		predictedValues = append(predictedValues, result.Model.PredictDay(d))
		if d.HasWeather {
			tempValues = append(tempValues, d.Weather.TempMin)
		} else {
			tempValues = append(tempValues, 0)
		}
	}

	values := [][]float64{actualValues, predictedValues, tempValues}
	legendLabels := []string{"Adjusted (kWh)", "Modeled (kWh)", "Min Temp (°F)"}

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc("Daily Consumption vs Model"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legendLabels, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render consumption chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// GenerateResidualChart creates a line chart of daily model residuals with the
// anomaly z-score threshold bands.
func (cg *ChartGenerator) GenerateResidualChart(result *AnalysisResult) (string, error) {
	var residualValues []float64
	var labels []string

	for i := range result.Days {
		d := &result.Days[i]
		if d.Type != DayNormal || !d.HasWeather {
			continue
		}
		labels = append(labels, d.Date.Format("Jan 2"))
		residualValues = append(residualValues, d.AdjustedKwh-result.Model.PredictDay(d))
	}
	if len(residualValues) == 0 {
		return "", fmt.Errorf("no normal days available for residuals")
	}

	// Threshold bands at +/- AnomalyZThreshold standard deviations
	mean := calculateMean(residualValues)
	stddev := calculateStdDev(residualValues, mean)
	upper := make([]float64, len(residualValues))
	lower := make([]float64, len(residualValues))
	for i := range residualValues {
		upper[i] = mean + AnomalyZThreshold*stddev
		lower[i] = mean - AnomalyZThreshold*stddev
	}

	values := [][]float64{residualValues, upper, lower}
	legendLabels := []string{"Residual (kWh)", "Upper Band", "Lower Band"}

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc("Model Residuals"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legendLabels, charts.PositionRight),
		charts.ThemeOptionFunc(cg.getTheme()),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render residual chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// getTheme returns the chart theme name
func (cg *ChartGenerator) getTheme() string {
	return cg.theme
}
