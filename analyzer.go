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
	"fmt"
	"sort"
	"time"
)

// Analyzer runs the analysis pipeline over collected data. Stages run
// strictly in sequence; each produces a new collection from its inputs,
// with the single exception of the signal-pattern reclassification.
type Analyzer struct {
	config     *Config
	logger     *Logger
	classifier *Classifier
	detector   *SignalPatternDetector
	builder    *ModelBuilder
	anomalies  *AnomalyDetector
	drill      *DrillDownAnalyzer
	benchmark  *BenchmarkCalculator
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(config *Config, logger *Logger) *Analyzer {
	return &Analyzer{
		config:     config,
		logger:     logger,
		classifier: NewClassifier(config, logger),
		detector:   NewSignalPatternDetector(config, logger),
		builder:    NewModelBuilder(logger),
		anomalies:  NewAnomalyDetector(logger),
		drill:      NewDrillDownAnalyzer(logger),
		benchmark:  NewBenchmarkCalculator(config, logger),
	}
}

// Analyze performs the complete analysis. Only the insufficient-data
// condition is fatal; every degraded stage instead appends a warning that
// the reporters surface.
func (a *Analyzer) Analyze(data *CollectedData) (*AnalysisResult, error) {
	a.logger.Info("Starting analysis")

	result := &AnalysisResult{
		GeneratedAt: time.Now(),
		SiteID:      data.SiteID,
		SiteName:    data.SiteName,
		HasSolar:    data.HasSolar,
		HasBattery:  data.HasBattery,
		WindowStart: data.WindowStart,
		WindowEnd:   data.WindowEnd,
		Warnings:    append([]string{}, data.Warnings...),
	}

	// Stage 1-2: classification
	days := a.classifier.Classify(data)
	a.logger.LogPipelineStage("classification")

	// Stage 3: signal-pattern refinement
	reclassified := a.detector.Refine(days, data.Intervals)
	if reclassified > 0 {
		a.logger.Info("Signal-pattern refinement reclassified days", "count", reclassified)
	}
	a.logger.LogPipelineStage("signal_pattern_refinement")

	result.Days = days
	result.CountNormal, result.CountAway, result.CountHighLoad = countTypes(days)
	for _, d := range days {
		if d.ConfoundingKwh > 0 {
			result.ConfoundingDays++
			result.ConfoundingKwhTotal += d.ConfoundingKwh
		}
	}

	// Stage 4: model fitting. Insufficient data is the one fatal condition.
	model, candidates, fitWarnings, err := a.builder.Build(days)
	if err != nil {
		return nil, err
	}
	result.Model = model
	result.Candidates = candidates
	result.Warnings = append(result.Warnings, fitWarnings...)
	a.logger.LogPipelineStage("model_fitting")

	// Stage 5: anomaly detection
	result.Anomalies = a.anomalies.Detect(days, &model)
	a.logger.LogPipelineStage("anomaly_detection")

	// Stage 6: drill-down on the most extreme anomalies
	drillDowns, ddWarnings := a.drill.Analyze(result.Anomalies, data.Intervals)
	result.DrillDowns = drillDowns
	result.Warnings = append(result.Warnings, ddWarnings...)
	a.logger.LogPipelineStage("drill_down")

	// Stage 7: benchmark
	benchmark, benchWarnings := a.benchmark.Calculate(days)
	result.Benchmark = benchmark
	result.Warnings = append(result.Warnings, benchWarnings...)
	a.logger.LogPipelineStage("benchmark")

	result.Correlations = correlateCauses(result.Anomalies)
	result.Recommendations = a.generateRecommendations(result)

	a.logger.Info("Analysis completed",
		"days", len(result.Days),
		"anomalies", len(result.Anomalies),
		"warnings", len(result.Warnings),
	)

	return result, nil
}

// correlateCauses ranks suspected anomaly causes by frequency, then by
// mean |z-score|.
func correlateCauses(anomalies []AnomalyRecord) []CauseCorrelation {
	byCause := make(map[string][]AnomalyRecord)
	for _, an := range anomalies {
		byCause[an.SuspectedCause] = append(byCause[an.SuspectedCause], an)
	}

	correlations := make([]CauseCorrelation, 0, len(byCause))
	for cause, records := range byCause {
		sumZ, sumExcess := 0.0, 0.0
		for _, r := range records {
			z := r.ZScore
			if z < 0 {
				z = -z
			}
			sumZ += z
			sumExcess += r.ResidualKwh
		}
		correlations = append(correlations, CauseCorrelation{
			Cause:      cause,
			Count:      len(records),
			MeanZScore: sumZ / float64(len(records)),
			MeanExcess: sumExcess / float64(len(records)),
		})
	}

	sort.Slice(correlations, func(i, j int) bool {
		if correlations[i].Count != correlations[j].Count {
			return correlations[i].Count > correlations[j].Count
		}
		if correlations[i].MeanZScore != correlations[j].MeanZScore {
			return correlations[i].MeanZScore > correlations[j].MeanZScore
		}
		return correlations[i].Cause < correlations[j].Cause
	})

	return correlations
}

// generateRecommendations creates prioritized, actionable suggestions from
// the computed result.
func (a *Analyzer) generateRecommendations(result *AnalysisResult) []Recommendation {
	var recs []Recommendation
	bench := result.Benchmark

	// Envelope performance against the theoretical models
	if bench.HeatingKwhPerDD > 0 {
		switch {
		case bench.MeasuredAnnualKwh > bench.CodeMinEnvelope.AnnualKwh:
			recs = append(recs, Recommendation{
				Category: "envelope",
				Priority: "high",
				Title:    "Heating intensity above code-minimum model",
				Description: fmt.Sprintf("Measured %.0f kWh/yr exceeds even the code-minimum envelope model (%.0f kWh/yr).",
					bench.MeasuredAnnualKwh, bench.CodeMinEnvelope.AnnualKwh),
				Action: "Arrange a blower-door test and thermal imaging; the gap suggests an envelope defect or equipment underperformance.",
			})
		case bench.MeasuredAnnualKwh > bench.TightEnvelope.AnnualKwh:
			recs = append(recs, Recommendation{
				Category: "envelope",
				Priority: "medium",
				Title:    "Heating intensity between envelope models",
				Description: fmt.Sprintf("Measured %.0f kWh/yr sits between the tight (%.0f) and code-minimum (%.0f) envelope models.",
					bench.MeasuredAnnualKwh, bench.TightEnvelope.AnnualKwh, bench.CodeMinEnvelope.AnnualKwh),
				Action: "Air sealing and attic-bypass remediation are the likely highest-return improvements.",
			})
		default:
			recs = append(recs, Recommendation{
				Category: "envelope",
				Priority: "low",
				Title:    "Heating intensity at or below tight-envelope model",
				Description: fmt.Sprintf("Measured %.0f kWh/yr is at or below the tight envelope model (%.0f kWh/yr).",
					bench.MeasuredAnnualKwh, bench.TightEnvelope.AnnualKwh),
				Action: "No envelope action needed; keep monitoring season over season.",
			})
		}

		if bench.TargetAnnualKwh > 0 && bench.MeasuredAnnualKwh > bench.TargetAnnualKwh {
			recs = append(recs, Recommendation{
				Category: "envelope",
				Priority: "medium",
				Title:    fmt.Sprintf("%s not yet met", bench.TargetName),
				Description: fmt.Sprintf("Measured %.0f kWh/yr is %.0f kWh/yr above the %s of %.0f kWh/yr.",
					bench.MeasuredAnnualKwh, bench.MeasuredAnnualKwh-bench.TargetAnnualKwh,
					bench.TargetName, bench.TargetAnnualKwh),
				Action: "Track the gap after each improvement to confirm progress toward the target.",
			})
		}
	}

	// Confounding load impact
	if result.ConfoundingKwhTotal > 0 {
		share := result.ConfoundingKwhTotal / float64(result.ConfoundingDays)
		recs = append(recs, Recommendation{
			Category: "load",
			Priority: "medium",
			Title:    "Significant non-heating high-load sessions",
			Description: fmt.Sprintf("%d days carried an estimated %.0f kWh of confounding load (%.1f kWh per session).",
				result.ConfoundingDays, result.ConfoundingKwhTotal, share),
			Action: "Consider shifting these sessions to mild days or off-peak hours; they dominate those days' totals.",
		})
	}

	// Unexplained high anomalies
	unexplained := 0
	for _, an := range result.Anomalies {
		if an.Direction == AnomalyHigh && an.SuspectedCause == "unexplained excess consumption" {
			unexplained++
		}
	}
	if unexplained > 0 {
		recs = append(recs, Recommendation{
			Category:    "load",
			Priority:    "medium",
			Title:       "Unexplained high-consumption days",
			Description: fmt.Sprintf("%d anomalous days have no weather or calendar explanation.", unexplained),
			Action:      "Review the drill-down load shapes for these dates to identify the responsible circuit or appliance.",
		})
	}

	// Model confidence
	if result.Model.Global.R2 < 0.5 {
		recs = append(recs, Recommendation{
			Category: "model",
			Priority: "low",
			Title:    "Weather model explains little variance",
			Description: fmt.Sprintf("The selected model's R² is %.2f; predictions and anomaly flags carry wide uncertainty.",
				result.Model.Global.R2),
			Action: "Extend the analysis window or tighten day classification before acting on individual anomalies.",
		})
	}

	// Data quality
	if len(result.Warnings) > 0 {
		recs = append(recs, Recommendation{
			Category:    "data",
			Priority:    "low",
			Title:       "Data gaps during collection",
			Description: fmt.Sprintf("%d warnings were recorded while collecting or fitting; affected dates are absent from the model.", len(result.Warnings)),
			Action:      "Re-run once the gateway or weather archive recovers to fill the gaps from cache-misses.",
		})
	}

	return recs
}
