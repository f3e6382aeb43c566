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
	"html"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// HTMLReporter generates HTML reports from analysis results
type HTMLReporter struct {
	logger *Logger
}

// NewHTMLReporter creates a new HTML report generator
func NewHTMLReporter(logger *Logger) *HTMLReporter {
	return &HTMLReporter{
		logger: logger,
	}
}

// GenerateHTMLReport generates an HTML report
func (r *HTMLReporter) GenerateHTMLReport(result *AnalysisResult, outputPath string) error {
	r.logger.Info("Generating HTML report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create HTML report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.writeHTMLHeader(writer, result)
	r.writeHTMLSummary(writer, result)
	r.writeHTMLCharts(writer, result)
	r.writeHTMLModel(writer, result)
	r.writeHTMLAnomalies(writer, result)
	r.writeHTMLBenchmark(writer, result)
	r.writeHTMLBaselineDays(writer, result)
	r.writeHTMLRecommendations(writer, result)
	r.writeHTMLWarnings(writer, result)
	r.writeHTMLFooter(writer)

	if outputPath != "" {
		r.logger.Info("HTML report saved", "path", outputPath)
	}

	return nil
}

func (r *HTMLReporter) writeHTMLHeader(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Heating Performance Analysis Report</title>
    <style>
        :root {
            --primary-color: #FF6B35;
            --secondary-color: #4ECDC4;
            --warning-color: #FFB800;
            --danger-color: #FF3B5C;
            --success-color: #4ECDC4;
            --bg-color: #0E1521;
            --card-bg: #1B2838;
            --text-color: #EAF0F6;
            --text-muted: #8EA3B8;
            --border-color: #2C3E54;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: var(--bg-color);
            color: var(--text-color);
            line-height: 1.6;
            padding: 20px;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
        }

        header {
            background: linear-gradient(135deg, var(--primary-color), var(--secondary-color));
            padding: 40px;
            border-radius: 16px;
            margin-bottom: 30px;
            box-shadow: 0 8px 32px rgba(255, 107, 53, 0.2);
        }

        h1 {
            font-size: 2.5em;
            margin-bottom: 10px;
            font-weight: 700;
        }

        .subtitle {
            color: rgba(255, 255, 255, 0.9);
            font-size: 1.1em;
        }

        .card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 30px;
            margin-bottom: 30px;
            border: 1px solid var(--border-color);
            box-shadow: 0 4px 16px rgba(0, 0, 0, 0.3);
        }

        h2 {
            color: var(--primary-color);
            margin-bottom: 20px;
            font-size: 1.8em;
            border-bottom: 2px solid var(--border-color);
            padding-bottom: 10px;
        }

        h3 {
            color: var(--secondary-color);
            margin: 25px 0 15px 0;
            font-size: 1.4em;
        }

        table {
            width: 100%%;
            border-collapse: collapse;
            margin: 20px 0;
        }

        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid var(--border-color);
        }

        th {
            background: rgba(255, 107, 53, 0.1);
            color: var(--primary-color);
            font-weight: 600;
        }

        tr:hover {
            background: rgba(78, 205, 196, 0.05);
        }

        .metric-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }

        .metric-card {
            background: rgba(255, 107, 53, 0.05);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 20px;
            text-align: center;
        }

        .metric-value {
            font-size: 2em;
            font-weight: bold;
            color: var(--secondary-color);
            margin: 10px 0;
        }

        .metric-label {
            color: var(--text-muted);
            font-size: 0.9em;
        }

        .badge {
            display: inline-block;
            padding: 6px 12px;
            border-radius: 20px;
            font-size: 0.85em;
            font-weight: 600;
            margin: 5px;
        }

        .badge-success {
            background: var(--success-color);
            color: #0E1521;
        }

        .badge-warning {
            background: var(--warning-color);
            color: #0E1521;
        }

        .badge-danger {
            background: var(--danger-color);
            color: white;
        }

        .insight-box {
            background: rgba(78, 205, 196, 0.05);
            border-left: 4px solid var(--secondary-color);
            padding: 20px;
            margin: 15px 0;
            border-radius: 4px;
        }

        .insight-box.high {
            border-left-color: var(--danger-color);
            background: rgba(255, 59, 92, 0.05);
        }

        .insight-box.medium {
            border-left-color: var(--warning-color);
            background: rgba(255, 184, 0, 0.05);
        }

        .insight-title {
            font-weight: 600;
            color: var(--text-color);
            margin-bottom: 10px;
        }

        .insight-action {
            background: rgba(255, 255, 255, 0.05);
            padding: 10px;
            border-radius: 4px;
            margin-top: 10px;
            font-style: italic;
        }

        .chart-container {
            margin: 20px 0;
            text-align: center;
        }

        .chart-container img {
            max-width: 100%%;
            border-radius: 8px;
            border: 1px solid var(--border-color);
        }

        footer {
            text-align: center;
            padding: 30px;
            color: var(--text-muted);
            border-top: 1px solid var(--border-color);
            margin-top: 40px;
        }

        @media (max-width: 768px) {
            body {
                padding: 10px;
            }

            header {
                padding: 20px;
            }

            h1 {
                font-size: 1.8em;
            }

            .card {
                padding: 20px;
            }

            table {
                font-size: 0.9em;
            }
        }

        @media print {
            body {
                background: white;
                color: black;
            }

            .card {
                border: 1px solid #ddd;
                break-inside: avoid;
            }
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>🔥 Heating Performance Analysis</h1>
            <div class="subtitle">Generated: %s</div>
            <div class="subtitle">Analysis Period: %s to %s (%d days)</div>
`,
		result.GeneratedAt.Format("Monday, 2 January 2006 at 15:04"),
		result.WindowStart.Format("2 Jan 2006"),
		result.WindowEnd.Format("2 Jan 2006"),
		len(result.Days),
	)

	if result.SiteName != "" || result.SiteID != "" {
		fmt.Fprintf(w, `            <div class="subtitle">Site: %s%s</div>
`,
			html.EscapeString(describeSite(result)),
			html.EscapeString(siteCapabilities(result)),
		)
	}

	fmt.Fprintf(w, `            <div class="subtitle" style="opacity: 0.7; font-size: 0.9em; margin-top: 10px;">heatscope %s</div>
        </header>
`,
		GetVersion(),
	)
}

func (r *HTMLReporter) writeHTMLSummary(w io.Writer, result *AnalysisResult) {
	bench := result.Benchmark

	status := "success"
	statusText := "At or below target"
	if bench.TargetAnnualKwh > 0 && bench.MeasuredAnnualKwh > bench.TargetAnnualKwh {
		status = "warning"
		statusText = "Above target"
		if bench.MeasuredAnnualKwh > bench.CodeMinEnvelope.AnnualKwh {
			status = "danger"
			statusText = "Above code-minimum model"
		}
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>📊 Summary</h2>

            <div class="metric-grid">
                <div class="metric-card">
                    <div class="metric-label">Projected Annual Heating</div>
                    <div class="metric-value">%s kWh</div>
                    <span class="badge badge-%s">%s</span>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Heating Intensity</div>
                    <div class="metric-value">%.3f</div>
                    <span class="badge badge-success">kWh per degree day</span>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Baseload</div>
                    <div class="metric-value">%.1f kWh</div>
                    <span class="badge badge-success">%s</span>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Model Fit (R²)</div>
                    <div class="metric-value">%.3f</div>
                    <span class="badge badge-success">%s</span>
                </div>
            </div>

            <h3>🗓️ Day Classification</h3>
            <table>
                <thead>
                    <tr>
                        <th>Type</th>
                        <th>Days</th>
                    </tr>
                </thead>
                <tbody>
                    <tr>
                        <td>🏠 Normal</td>
                        <td>%d</td>
                    </tr>
                    <tr>
                        <td>✈️ Away</td>
                        <td>%d</td>
                    </tr>
                    <tr>
                        <td>🔥 High-Load</td>
                        <td>%d</td>
                    </tr>
                </tbody>
            </table>
        </div>
`,
		humanize.CommafWithDigits(bench.MeasuredAnnualKwh, 0),
		status,
		statusText,
		bench.HeatingKwhPerDD,
		bench.BaseloadKwh,
		html.EscapeString(bench.BaseloadSource),
		result.Model.Global.R2,
		html.EscapeString(result.Model.GlobalName),
		result.CountNormal,
		result.CountAway,
		result.CountHighLoad,
	)
}

func (r *HTMLReporter) writeHTMLCharts(w io.Writer, result *AnalysisResult) {
	if result.ConsumptionChart == "" && result.ResidualChart == "" {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>📈 Charts</h2>
`)

	if result.ConsumptionChart != "" {
		fmt.Fprintf(w, `
            <div class="chart-container">
                <img src="data:image/png;base64,%s" alt="Daily consumption vs model">
            </div>
`,
			result.ConsumptionChart,
		)
	}

	if result.ResidualChart != "" {
		fmt.Fprintf(w, `
            <div class="chart-container">
                <img src="data:image/png;base64,%s" alt="Model residuals">
            </div>
`,
			result.ResidualChart,
		)
	}

	fmt.Fprintf(w, `
        </div>
`)
}

func (r *HTMLReporter) writeHTMLModel(w io.Writer, result *AnalysisResult) {
	fmt.Fprintf(w, `
        <div class="card">
            <h2>📐 Weather Model</h2>

            <h3>Candidate Models</h3>
            <table>
                <thead>
                    <tr>
                        <th>Feature Set</th>
                        <th>R²</th>
                        <th>Outcome</th>
                    </tr>
                </thead>
                <tbody>
`)

	for _, c := range result.Candidates {
		outcome := ""
		r2 := fmt.Sprintf("%.3f", c.R2)
		switch {
		case c.Selected:
			outcome = `<span class="badge badge-success">Selected</span>`
		case c.Excluded:
			outcome = `<span class="badge badge-danger">Excluded</span>`
			r2 = "-"
		}

		fmt.Fprintf(w, `
                    <tr>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                    </tr>
`,
			html.EscapeString(c.Name),
			r2,
			outcome,
		)
	}

	fmt.Fprintf(w, `
                </tbody>
            </table>

            <h3>Temperature Segments</h3>
            <table>
                <thead>
                    <tr>
                        <th>Segment</th>
                        <th>Range (°F min)</th>
                        <th>Days</th>
                        <th>Fit</th>
                    </tr>
                </thead>
                <tbody>
`)

	for _, seg := range result.Model.Segments {
		fit := ""
		if seg.Model != nil {
			fit = fmt.Sprintf("R² %.3f", seg.Model.R2)
		} else {
			fit = fmt.Sprintf("mean fallback (%.1f kWh)", seg.FallbackKwh)
		}

		fmt.Fprintf(w, `
                    <tr>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%d</td>
                        <td>%s</td>
                    </tr>
`,
			html.EscapeString(seg.Name),
			html.EscapeString(describeSegmentRange(seg)),
			seg.DayCount,
			html.EscapeString(fit),
		)
	}

	fmt.Fprintf(w, `
                </tbody>
            </table>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLAnomalies(w io.Writer, result *AnalysisResult) {
	if len(result.Anomalies) == 0 {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🔍 Anomalies</h2>
            <p>Found <strong>%d anomalous days</strong> against the model residuals:</p>

            <table>
                <thead>
                    <tr>
                        <th>Date</th>
                        <th>Direction</th>
                        <th>Actual</th>
                        <th>Expected</th>
                        <th>z-score</th>
                        <th>Suspected Cause</th>
                    </tr>
                </thead>
                <tbody>
`,
		len(result.Anomalies),
	)

	for _, a := range result.Anomalies {
		icon := "⚠️"
		if a.Direction == AnomalyLow {
			icon = "🔵"
		}

		fmt.Fprintf(w, `
                    <tr>
                        <td>%s</td>
                        <td>%s %s</td>
                        <td>%.1f kWh</td>
                        <td>%.1f kWh</td>
                        <td>%+.2f</td>
                        <td>%s</td>
                    </tr>
`,
			a.Date.Format("2006-01-02"),
			icon,
			a.Direction,
			a.ActualKwh,
			a.ExpectedKwh,
			a.ZScore,
			html.EscapeString(a.SuspectedCause),
		)
	}

	fmt.Fprintf(w, `
                </tbody>
            </table>
`)

	if len(result.DrillDowns) > 0 {
		fmt.Fprintf(w, `
            <h3>⏱️ Drill-Down Patterns</h3>
            <table>
                <thead>
                    <tr>
                        <th>Date</th>
                        <th>Detected Patterns</th>
                    </tr>
                </thead>
                <tbody>
`)

		for _, dd := range result.DrillDowns {
			tags := "-"
			if len(dd.Tags) > 0 {
				tags = strings.Join(dd.Tags, ", ")
			}
			fmt.Fprintf(w, `
                    <tr>
                        <td>%s</td>
                        <td>%s</td>
                    </tr>
`,
				dd.Date.Format("2006-01-02"),
				html.EscapeString(tags),
			)
		}

		fmt.Fprintf(w, `
                </tbody>
            </table>
`)
	}

	fmt.Fprintf(w, `
        </div>
`)
}

func (r *HTMLReporter) writeHTMLBenchmark(w io.Writer, result *AnalysisResult) {
	bench := result.Benchmark

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🏠 Envelope Benchmark</h2>
            <table>
                <thead>
                    <tr>
                        <th>Scenario</th>
                        <th>kWh per DD</th>
                        <th>Annual kWh</th>
                    </tr>
                </thead>
                <tbody>
                    <tr>
                        <td>📏 Measured</td>
                        <td>%.3f</td>
                        <td>%s</td>
                    </tr>
                    <tr>
                        <td>🟢 %s (COP %.1f)</td>
                        <td>%.3f</td>
                        <td>%s</td>
                    </tr>
                    <tr>
                        <td>🟡 %s (COP %.1f)</td>
                        <td>%.3f</td>
                        <td>%s</td>
                    </tr>
`,
		bench.HeatingKwhPerDD,
		humanize.CommafWithDigits(bench.MeasuredAnnualKwh, 0),
		html.EscapeString(bench.TightEnvelope.Name),
		bench.TightEnvelope.COP,
		bench.TightEnvelope.TotalKwhPerDD,
		humanize.CommafWithDigits(bench.TightEnvelope.AnnualKwh, 0),
		html.EscapeString(bench.CodeMinEnvelope.Name),
		bench.CodeMinEnvelope.COP,
		bench.CodeMinEnvelope.TotalKwhPerDD,
		humanize.CommafWithDigits(bench.CodeMinEnvelope.AnnualKwh, 0),
	)

	if bench.TargetAnnualKwh > 0 {
		fmt.Fprintf(w, `
                    <tr>
                        <td>🎯 %s</td>
                        <td>-</td>
                        <td>%s</td>
                    </tr>
`,
			html.EscapeString(bench.TargetName),
			humanize.CommafWithDigits(bench.TargetAnnualKwh, 0),
		)
	}

	fmt.Fprintf(w, `
                </tbody>
            </table>

            <h3>Heat Loss Components (kWh per DD)</h3>
            <table>
                <thead>
                    <tr>
                        <th>Component</th>
                        <th>%s</th>
                        <th>%s</th>
                    </tr>
                </thead>
                <tbody>
                    <tr>
                        <td>💨 Infiltration</td>
                        <td>%.3f</td>
                        <td>%.3f</td>
                    </tr>
                    <tr>
                        <td>🌬️ Ventilation</td>
                        <td>%.3f</td>
                        <td>%.3f</td>
                    </tr>
                    <tr>
                        <td>🧱 Conduction</td>
                        <td>%.3f</td>
                        <td>%.3f</td>
                    </tr>
                    <tr style="font-weight: bold; background: rgba(78, 205, 196, 0.1);">
                        <td>Total</td>
                        <td>%.3f</td>
                        <td>%.3f</td>
                    </tr>
                </tbody>
            </table>
        </div>
`,
		html.EscapeString(bench.TightEnvelope.Name),
		html.EscapeString(bench.CodeMinEnvelope.Name),
		bench.TightEnvelope.InfiltrationKwhPerDD,
		bench.CodeMinEnvelope.InfiltrationKwhPerDD,
		bench.TightEnvelope.VentilationKwhPerDD,
		bench.CodeMinEnvelope.VentilationKwhPerDD,
		bench.TightEnvelope.ConductionKwhPerDD,
		bench.CodeMinEnvelope.ConductionKwhPerDD,
		bench.TightEnvelope.TotalKwhPerDD,
		bench.CodeMinEnvelope.TotalKwhPerDD,
	)
}

func (r *HTMLReporter) writeHTMLBaselineDays(w io.Writer, result *AnalysisResult) {
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

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🧳 Baseline Days</h2>
            <p>Baseload of <strong>%.1f kWh/day</strong> derived from %d away day(s) via %s.</p>
            <table>
                <thead>
                    <tr>
                        <th>Date</th>
                        <th>Total kWh</th>
                        <th>Used for Baseload</th>
                    </tr>
                </thead>
                <tbody>
`,
		bench.BaseloadKwh,
		len(away),
		html.EscapeString(bench.BaseloadSource),
	)

	for _, d := range away {
		marker := ""
		if used[dateKey(d.Date)] {
			marker = "✅"
		}
		fmt.Fprintf(w, `                    <tr>
                        <td>%s</td>
                        <td>%.1f</td>
                        <td>%s</td>
                    </tr>
`,
			d.Date.Format("2006-01-02"),
			d.HomeKwh,
			marker,
		)
	}

	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLRecommendations(w io.Writer, result *AnalysisResult) {
	if len(result.Recommendations) == 0 {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>💡 Recommendations</h2>
`)

	for _, rec := range result.Recommendations {
		priorityClass := "low"
		switch rec.Priority {
		case "high":
			priorityClass = "high"
		case "medium":
			priorityClass = "medium"
		}

		fmt.Fprintf(w, `
            <div class="insight-box %s">
                <div class="insight-title">%s</div>
                <p>%s</p>
                <div class="insight-action">
                    <strong>Recommended Action:</strong> %s
                </div>
            </div>
`,
			priorityClass,
			html.EscapeString(rec.Title),
			html.EscapeString(rec.Description),
			html.EscapeString(rec.Action),
		)
	}

	fmt.Fprintf(w, `
        </div>
`)
}

func (r *HTMLReporter) writeHTMLWarnings(w io.Writer, result *AnalysisResult) {
	if len(result.Warnings) == 0 {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>⚠️ Data Quality Warnings</h2>
            <ul>
`)

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, `                <li>%s</li>
`, html.EscapeString(warning))
	}

	fmt.Fprintf(w, `
            </ul>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLFooter(w io.Writer) {
	fmt.Fprintf(w, `
        <footer>
            <p><em>This report is based on historical telemetry and weather data. Envelope models use configured geometry and assumed R-values; projections vary with occupancy, setpoints and weather.</em></p>
            <p style="margin-top: 10px;">Generated by <a href="https://github.com/matthewgall/heatscope" style="color: var(--primary-color); text-decoration: none;">heatscope</a></p>
        </footer>
    </div>
</body>
</html>
`)
}
