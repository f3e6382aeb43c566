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
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// Reporter generates markdown reports from analysis results
type Reporter struct {
	logger *Logger
}

// NewReporter creates a new report generator
func NewReporter(logger *Logger) *Reporter {
	return &Reporter{
		logger: logger,
	}
}

// GenerateReport creates a markdown report from analysis results
func (r *Reporter) GenerateReport(result *AnalysisResult, outputPath string) error {
	r.logger.Info("Generating report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.writeHeader(writer, result)
	r.writeSummary(writer, result)
	r.writeClassification(writer, result)
	r.writeModel(writer, result)
	r.writeAnomalies(writer, result)
	r.writeDrillDowns(writer, result)
	r.writeConfoundingLoads(writer, result)
	r.writeBenchmark(writer, result)
	r.writeBaselineDays(writer, result)
	r.writeCorrelations(writer, result)
	r.writeRecommendations(writer, result)
	r.writeDailyTable(writer, result)
	r.writeWarnings(writer, result)
	r.writeFooter(writer)

	if outputPath != "" {
		r.logger.Info("Report saved", "path", outputPath)
	}

	return nil
}

// writeHeader writes the report header
func (r *Reporter) writeHeader(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, "# Heating Performance Analysis Report\n\n")
	fmt.Fprintf(w, "**Generated:** %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	if result.SiteName != "" || result.SiteID != "" {
		fmt.Fprintf(w, "**Site:** %s%s\n\n", describeSite(result), siteCapabilities(result))
	}
	fmt.Fprintf(w, "**Analysis Period:** %s to %s (%d days)\n\n",
		result.WindowStart.Format("2006-01-02"),
		result.WindowEnd.Format("2006-01-02"),
		len(result.Days),
	)
	fmt.Fprintf(w, "**heatscope version:** %s\n\n", GetVersion())
	fmt.Fprintf(w, "---\n\n")
}

// describeSite renders the site label: name with the ID in parentheses,
// or whichever of the two is known.
func describeSite(result *AnalysisResult) string {
	switch {
	case result.SiteName != "" && result.SiteID != "":
		return fmt.Sprintf("%s (%s)", result.SiteName, result.SiteID)
	case result.SiteName != "":
		return result.SiteName
	default:
		return result.SiteID
	}
}

func siteCapabilities(result *AnalysisResult) string {
	var caps []string
	if result.HasSolar {
		caps = append(caps, "solar")
	}
	if result.HasBattery {
		caps = append(caps, "battery")
	}
	if len(caps) == 0 {
		return ""
	}
	return " (" + strings.Join(caps, " + ") + ")"
}

// writeSummary writes the executive summary section
func (r *Reporter) writeSummary(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, "## 📊 Summary\n\n")

	bench := result.Benchmark

	// Status indicator against the configured target
	statusIcon := "✅"
	statusText := "at or below target"
	if bench.TargetAnnualKwh > 0 && bench.MeasuredAnnualKwh > bench.TargetAnnualKwh {
		if bench.MeasuredAnnualKwh > bench.CodeMinEnvelope.AnnualKwh {
			statusIcon = "⚠️"
			statusText = "above even the code-minimum envelope model"
		} else {
			statusIcon = "⚡"
			statusText = "above target"
		}
	}

	fmt.Fprintf(w, "**Heating Performance:** %s %s kWh/year projected (%s)\n\n",
		statusIcon,
		humanize.CommafWithDigits(bench.MeasuredAnnualKwh, 0),
		statusText,
	)

	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| 🏠 Baseload | %.1f kWh/day (%s) |\n", bench.BaseloadKwh, bench.BaseloadSource)
	fmt.Fprintf(w, "| 🌡️ Heating Intensity | %.3f kWh per degree day |\n", bench.HeatingKwhPerDD)
	fmt.Fprintf(w, "| 📅 Projected Annual Heating | %s kWh (%s degree days) |\n",
		humanize.CommafWithDigits(bench.MeasuredAnnualKwh, 0),
		humanize.CommafWithDigits(bench.AnnualDegreeDays, 0),
	)
	fmt.Fprintf(w, "| 📈 Model Fit | %s (R² %.3f, %d days) |\n",
		result.Model.GlobalName, result.Model.Global.R2, result.Model.Global.DayCount)
	fmt.Fprintf(w, "| 🔍 Anomalous Days | %d of %d normal days |\n", len(result.Anomalies), result.CountNormal)
	fmt.Fprintf(w, "\n")
}

// writeClassification writes the day classification section
func (r *Reporter) writeClassification(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, "## 🗓️ Day Classification\n\n")

	total := len(result.Days)
	if total == 0 {
		fmt.Fprintf(w, "*No days available for analysis.*\n\n")
		return
	}

	fmt.Fprintf(w, "| Type | Days | Share |\n")
	fmt.Fprintf(w, "|------|------|-------|\n")
	fmt.Fprintf(w, "| 🏠 Normal | %d | %.1f%% |\n", result.CountNormal, 100*float64(result.CountNormal)/float64(total))
	fmt.Fprintf(w, "| ✈️ Away | %d | %.1f%% |\n", result.CountAway, 100*float64(result.CountAway)/float64(total))
	fmt.Fprintf(w, "| 🔥 High-Load | %d | %.1f%% |\n", result.CountHighLoad, 100*float64(result.CountHighLoad)/float64(total))
	fmt.Fprintf(w, "\n")

	if result.CountAway > 0 {
		fmt.Fprintf(w, "Away days establish the non-heating baseload; high-load days are excluded from model fitting ")
		fmt.Fprintf(w, "and their confounding consumption is subtracted before analysis.\n\n")
	}
}

// writeModel writes the regression model section
func (r *Reporter) writeModel(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, "## 📈 Weather Model\n\n")

	// Candidate competition
	fmt.Fprintf(w, "### Candidate Models\n\n")
	fmt.Fprintf(w, "| Feature Set | R² | Outcome |\n")
	fmt.Fprintf(w, "|-------------|-----|--------|\n")
	for _, c := range result.Candidates {
		outcome := ""
		switch {
		case c.Selected:
			outcome = "✅ selected"
		case c.Excluded:
			outcome = "❌ excluded (singular fit)"
		}
		r2 := fmt.Sprintf("%.3f", c.R2)
		if c.Excluded {
			r2 = "-"
		}
		fmt.Fprintf(w, "| %s | %s | %s |\n", c.Name, r2, outcome)
	}
	fmt.Fprintf(w, "\n")

	// Selected model coefficients
	global := result.Model.Global
	fmt.Fprintf(w, "### Selected Model: %s\n\n", result.Model.GlobalName)
	fmt.Fprintf(w, "| Term | Coefficient |\n")
	fmt.Fprintf(w, "|------|-------------|\n")
	fmt.Fprintf(w, "| intercept | %.3f |\n", global.Coefficients[0])
	for i, feature := range global.Features {
		fmt.Fprintf(w, "| %s | %.3f |\n", feature, global.Coefficients[i+1])
	}
	fmt.Fprintf(w, "\n")

	// Temperature segments
	fmt.Fprintf(w, "### Temperature Segments\n\n")
	fmt.Fprintf(w, "| Segment | Range (°F min) | Days | Fit |\n")
	fmt.Fprintf(w, "|---------|----------------|------|-----|\n")
	for _, seg := range result.Model.Segments {
		rangeDesc := describeSegmentRange(seg)
		if seg.Model != nil {
			fmt.Fprintf(w, "| %s | %s | %d | R² %.3f |\n", seg.Name, rangeDesc, seg.DayCount, seg.Model.R2)
		} else {
			fmt.Fprintf(w, "| %s | %s | %d | mean fallback (%.1f kWh) |\n", seg.Name, rangeDesc, seg.DayCount, seg.FallbackKwh)
		}
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Predictions use the matching fitted segment when one exists; otherwise the selected global model.\n\n")
}

// describeSegmentRange renders a segment's temperature bounds, hiding the
// open-ended sentinels.
func describeSegmentRange(seg TempSegment) string {
	switch {
	case seg.MinTemp <= segmentOpenLow && seg.MaxTemp >= segmentOpenHigh:
		return "all"
	case seg.MinTemp <= segmentOpenLow:
		return fmt.Sprintf("≤ %.0f", seg.MaxTemp)
	case seg.MaxTemp >= segmentOpenHigh:
		return fmt.Sprintf("> %.0f", seg.MinTemp)
	default:
		return fmt.Sprintf("> %.0f ≤ %.0f", seg.MinTemp, seg.MaxTemp)
	}
}

// writeAnomalies writes the anomalies section
func (r *Reporter) writeAnomalies(w io.Writer, result *AnalysisResult) {
	if len(result.Anomalies) == 0 {
		fmt.Fprintf(w, "## 🔍 Anomalies\n\n")
		fmt.Fprintf(w, "*No statistically anomalous days detected.*\n\n")
		return
	}

	fmt.Fprintf(w, "## 🔍 Anomalies\n\n")
	fmt.Fprintf(w, "Found **%d anomalous days** (|z| > %.1f against the model residuals):\n\n",
		len(result.Anomalies), AnomalyZThreshold)

	fmt.Fprintf(w, "| Date | Direction | Actual | Expected | Residual | z-score | Suspected Cause |\n")
	fmt.Fprintf(w, "|------|-----------|--------|----------|----------|---------|------------------|\n")

	for _, a := range result.Anomalies {
		icon := "⚠️ ↑"
		if a.Direction == AnomalyLow {
			icon = "🔵 ↓"
		}
		fmt.Fprintf(w, "| %s | %s %s | %.1f kWh | %.1f kWh | %+.1f kWh | %+.2f | %s |\n",
			a.Date.Format("2006-01-02"),
			icon,
			a.Direction,
			a.ActualKwh,
			a.ExpectedKwh,
			a.ResidualKwh,
			a.ZScore,
			a.SuspectedCause,
		)
	}
	fmt.Fprintf(w, "\n")
}

// writeDrillDowns writes hourly detail for the most extreme anomalies
func (r *Reporter) writeDrillDowns(w io.Writer, result *AnalysisResult) {
	if len(result.DrillDowns) == 0 {
		return
	}

	fmt.Fprintf(w, "## ⏱️ Anomaly Drill-Down\n\n")
	fmt.Fprintf(w, "Hourly load shapes for the top %d anomalies by severity:\n\n", len(result.DrillDowns))

	for _, dd := range result.DrillDowns {
		fmt.Fprintf(w, "### %s\n\n", dd.Date.Format("2006-01-02"))

		if len(dd.Tags) > 0 {
			fmt.Fprintf(w, "**Patterns:** %s\n\n", strings.Join(dd.Tags, ", "))
		}

		// Peak hours only; the full 24 rows would drown the report
		peak := peakHours(dd.Hours, 6)
		fmt.Fprintf(w, "| Hour | Consumption | Solar |\n")
		fmt.Fprintf(w, "|------|-------------|-------|\n")
		for _, h := range peak {
			fmt.Fprintf(w, "| %02d:00 | %.2f kWh | %.2f kWh |\n", h.Hour, h.HomeWh/1000, h.SolarWh/1000)
		}
		fmt.Fprintf(w, "\n")
	}
}

// peakHours returns the n highest-consumption hourly buckets, ordered by hour.
func peakHours(hours []HourlyBucket, n int) []HourlyBucket {
	sorted := make([]HourlyBucket, len(hours))
	copy(sorted, hours)
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].HomeWh > sorted[i].HomeWh {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Hour < sorted[i].Hour {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	return sorted
}

// writeConfoundingLoads writes the confounding load impact section
func (r *Reporter) writeConfoundingLoads(w io.Writer, result *AnalysisResult) {
	if result.ConfoundingDays == 0 {
		return
	}

	fmt.Fprintf(w, "## 🔥 Confounding Loads\n\n")
	fmt.Fprintf(w, "**%d days** carried known or detected non-heating high loads totalling **%.1f kWh** ",
		result.ConfoundingDays, result.ConfoundingKwhTotal)
	fmt.Fprintf(w, "(%.1f kWh per session on average). These amounts were subtracted before model fitting.\n\n",
		result.ConfoundingKwhTotal/float64(result.ConfoundingDays))
}

// writeBenchmark writes the envelope benchmark section
func (r *Reporter) writeBenchmark(w io.Writer, result *AnalysisResult) {
	bench := result.Benchmark

	fmt.Fprintf(w, "## 🏠 Envelope Benchmark\n\n")

	fmt.Fprintf(w, "| Scenario | kWh per DD | Annual kWh |\n")
	fmt.Fprintf(w, "|----------|------------|------------|\n")
	fmt.Fprintf(w, "| 📏 Measured | %.3f | %s |\n",
		bench.HeatingKwhPerDD, humanize.CommafWithDigits(bench.MeasuredAnnualKwh, 0))
	fmt.Fprintf(w, "| 🟢 %s (COP %.1f) | %.3f | %s |\n",
		bench.TightEnvelope.Name, bench.TightEnvelope.COP,
		bench.TightEnvelope.TotalKwhPerDD, humanize.CommafWithDigits(bench.TightEnvelope.AnnualKwh, 0))
	fmt.Fprintf(w, "| 🟡 %s (COP %.1f) | %.3f | %s |\n",
		bench.CodeMinEnvelope.Name, bench.CodeMinEnvelope.COP,
		bench.CodeMinEnvelope.TotalKwhPerDD, humanize.CommafWithDigits(bench.CodeMinEnvelope.AnnualKwh, 0))
	if bench.TargetAnnualKwh > 0 {
		fmt.Fprintf(w, "| 🎯 %s | - | %s |\n",
			bench.TargetName, humanize.CommafWithDigits(bench.TargetAnnualKwh, 0))
	}
	fmt.Fprintf(w, "\n")

	// Component breakdown of the two theoretical envelopes
	fmt.Fprintf(w, "### Heat Loss Components (kWh per DD)\n\n")
	fmt.Fprintf(w, "| Component | %s | %s |\n", bench.TightEnvelope.Name, bench.CodeMinEnvelope.Name)
	fmt.Fprintf(w, "|-----------|------|------|\n")
	fmt.Fprintf(w, "| 💨 Infiltration | %.3f | %.3f |\n",
		bench.TightEnvelope.InfiltrationKwhPerDD, bench.CodeMinEnvelope.InfiltrationKwhPerDD)
	fmt.Fprintf(w, "| 🌬️ Ventilation | %.3f | %.3f |\n",
		bench.TightEnvelope.VentilationKwhPerDD, bench.CodeMinEnvelope.VentilationKwhPerDD)
	fmt.Fprintf(w, "| 🧱 Conduction | %.3f | %.3f |\n",
		bench.TightEnvelope.ConductionKwhPerDD, bench.CodeMinEnvelope.ConductionKwhPerDD)
	fmt.Fprintf(w, "| **Total** | **%.3f** | **%.3f** |\n",
		bench.TightEnvelope.TotalKwhPerDD, bench.CodeMinEnvelope.TotalKwhPerDD)
	fmt.Fprintf(w, "\n")

	if bench.MeasuredAnnualKwh > 0 && bench.TightEnvelope.AnnualKwh > 0 {
		ratio := bench.MeasuredAnnualKwh / bench.TightEnvelope.AnnualKwh
		fmt.Fprintf(w, "> Measured consumption is **%.1f×** the tight-envelope model.\n\n", ratio)
	}
}

// writeBaselineDays lists the away days behind the baseload estimate and
// marks the ones whose totals were averaged into it.
func (r *Reporter) writeBaselineDays(w io.Writer, result *AnalysisResult) {
	var away []ClassifiedDay
	for _, d := range result.Days {
		if d.Type == DayAway {
			away = append(away, d)
		}
	}
	if len(away) == 0 {
		return
	}

	bench := result.Benchmark
	used := make(map[string]bool, len(bench.BaseloadDays))
	for _, key := range bench.BaseloadDays {
		used[key] = true
	}

	fmt.Fprintf(w, "## 🧳 Baseline Days\n\n")
	fmt.Fprintf(w, "Baseload of **%.1f kWh/day** derived from %d away day(s) via %s.\n\n",
		bench.BaseloadKwh, len(away), bench.BaseloadSource)

	fmt.Fprintf(w, "| Date | Total kWh | Used for Baseload |\n")
	fmt.Fprintf(w, "|------|-----------|-------------------|\n")
	for _, d := range away {
		marker := ""
		if used[dateKey(d.Date)] {
			marker = "✅"
		}
		fmt.Fprintf(w, "| %s | %.1f | %s |\n", d.Date.Format("2006-01-02"), d.HomeKwh, marker)
	}
	fmt.Fprintf(w, "\n")
}

// writeCorrelations writes the root-cause correlation section
func (r *Reporter) writeCorrelations(w io.Writer, result *AnalysisResult) {
	if len(result.Correlations) == 0 {
		return
	}

	fmt.Fprintf(w, "## 🧭 Root-Cause Correlation\n\n")
	fmt.Fprintf(w, "| Suspected Cause | Days | Mean \\|z\\| | Mean Excess |\n")
	fmt.Fprintf(w, "|-----------------|------|-----------|-------------|\n")
	for _, c := range result.Correlations {
		fmt.Fprintf(w, "| %s | %d | %.2f | %+.1f kWh |\n", c.Cause, c.Count, c.MeanZScore, c.MeanExcess)
	}
	fmt.Fprintf(w, "\n")
}

// writeRecommendations writes the recommendations section
func (r *Reporter) writeRecommendations(w io.Writer, result *AnalysisResult) {
	if len(result.Recommendations) == 0 {
		return
	}

	fmt.Fprintf(w, "## Recommendations\n\n")

	// Group recommendations by priority
	highPriority := []Recommendation{}
	mediumPriority := []Recommendation{}
	lowPriority := []Recommendation{}

	for _, rec := range result.Recommendations {
		switch rec.Priority {
		case "high":
			highPriority = append(highPriority, rec)
		case "medium":
			mediumPriority = append(mediumPriority, rec)
		case "low":
			lowPriority = append(lowPriority, rec)
		}
	}

	if len(highPriority) > 0 {
		fmt.Fprintf(w, "### 🔴 High Priority\n\n")
		for _, rec := range highPriority {
			r.writeRecommendation(w, rec)
		}
	}

	if len(mediumPriority) > 0 {
		fmt.Fprintf(w, "### 🟡 Medium Priority\n\n")
		for _, rec := range mediumPriority {
			r.writeRecommendation(w, rec)
		}
	}

	if len(lowPriority) > 0 {
		fmt.Fprintf(w, "### 🔵 Low Priority\n\n")
		for _, rec := range lowPriority {
			r.writeRecommendation(w, rec)
		}
	}
}

// writeRecommendation writes a single recommendation
func (r *Reporter) writeRecommendation(w io.Writer, rec Recommendation) {
	fmt.Fprintf(w, "#### %s\n\n", rec.Title)
	fmt.Fprintf(w, "%s\n\n", rec.Description)
	fmt.Fprintf(w, "**Recommended Action:** %s\n\n", rec.Action)
}

// writeDailyTable writes the full day-by-day table
func (r *Reporter) writeDailyTable(w io.Writer, result *AnalysisResult) {
	if len(result.Days) == 0 {
		return
	}

	fmt.Fprintf(w, "## 📅 Daily Detail\n\n")
	fmt.Fprintf(w, "| Date | Type | Total | Adjusted | Expected | Min Temp | HDD | Wind |\n")
	fmt.Fprintf(w, "|------|------|-------|----------|----------|----------|-----|------|\n")

	for i := range result.Days {
		d := &result.Days[i]

		typeIcon := "🏠"
		switch d.Type {
		case DayAway:
			typeIcon = "✈️"
		case DayHighLoad:
			typeIcon = "🔥"
		}

		expected := "-"
		tempMin := "-"
		hdd := "-"
		wind := "-"
		if d.HasWeather {
			expected = fmt.Sprintf("%.1f", result.Model.PredictDay(d))
			tempMin = fmt.Sprintf("%.0f°F", d.Weather.TempMin)
			hdd = fmt.Sprintf("%.1f", d.HeatingDegreeDays)
			wind = fmt.Sprintf("%.0f mph", d.Weather.WindMax)
		}

		fmt.Fprintf(w, "| %s | %s %s | %.1f | %.1f | %s | %s | %s | %s |\n",
			d.Date.Format("2006-01-02"),
			typeIcon,
			d.Type,
			d.HomeKwh,
			d.AdjustedKwh,
			expected,
			tempMin,
			hdd,
			wind,
		)
	}
	fmt.Fprintf(w, "\n")
}

// writeWarnings writes the data-quality warnings section
func (r *Reporter) writeWarnings(w io.Writer, result *AnalysisResult) {
	if len(result.Warnings) == 0 {
		return
	}

	fmt.Fprintf(w, "## ⚠️ Data Quality Warnings\n\n")
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "- %s\n", warning)
	}
	fmt.Fprintf(w, "\n")
}

// writeFooter writes the report footer
func (r *Reporter) writeFooter(w io.Writer) {
	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "*This report is based on historical telemetry and weather data. Envelope models use configured geometry and assumed R-values; projections vary with occupancy, setpoints and weather. Verify findings with on-site measurement before committing to remediation work.*\n\n")
	fmt.Fprintf(w, "*Generated by [heatscope](https://github.com/matthewgall/heatscope)*\n")
}
