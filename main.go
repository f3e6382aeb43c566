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
	"flag"
	"fmt"
	"os"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	siteID := flag.String("site", "", "Gateway site ID (overrides config)")
	apiKey := flag.String("key", "", "Gateway API key (overrides config)")
	outputPath := flag.String("output", "", "Output file for report (default: stdout)")
	htmlOutput := flag.Bool("html", false, "Generate HTML report instead of Markdown")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("heatscope %s\n", GetVersion())
		os.Exit(0)
	}

	// Initialize logger
	logger := NewLogger(*debug)
	logger.Info("Starting heatscope", "version", GetVersion())

	// Check for updates (non-blocking)
	go CheckForUpdates(logger)

	// Load configuration
	logger.Info("Loading configuration", "config_file", *configPath)
	config, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Override with command-line flags
	if *siteID != "" {
		config.SiteID = *siteID
	}
	if *apiKey != "" {
		config.GatewayKey = *apiKey
	}
	if *debug {
		config.Debug = true
		// Recreate logger with debug enabled
		logger = NewLogger(true)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Configuration loaded successfully")

	// Initialize storage
	logger.Info("Initializing storage", "path", config.StoragePath)
	storage, err := NewStorage(config.StoragePath, config.SiteID, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	// Create gateway and weather clients
	logger.Info("Creating API clients")
	client := NewGatewayClient(config.GatewayURL, config.GatewayKey, logger)
	weather := NewWeatherClient(config.Latitude, config.Longitude, logger)

	// Create data collector
	logger.Info("Initializing data collector")
	collector := NewCollector(client, weather, config, storage, logger)

	// Fetch all data from the gateway and weather archive
	logger.Info("Collecting telemetry and weather data")
	data, err := collector.CollectAll()
	if err != nil {
		logger.Error("Failed to collect data", "error", err)
		os.Exit(1)
	}

	// Create analyzer
	logger.Info("Initializing analyzer")
	analyzer := NewAnalyzer(config, logger)

	// Perform analysis
	logger.Info("Performing analysis")
	result, err := analyzer.Analyze(data)
	if err != nil {
		logger.Error("Failed to perform analysis", "error", err)
		os.Exit(1)
	}

	// Render charts for the report. Chart failures degrade the report but
	// never abort the run.
	chartGen := NewChartGenerator()
	if chart, err := chartGen.GenerateConsumptionChart(result); err != nil {
		logger.Warn("Failed to generate consumption chart", "error", err)
	} else {
		result.ConsumptionChart = chart
	}
	if chart, err := chartGen.GenerateResidualChart(result); err != nil {
		logger.Warn("Failed to generate residual chart", "error", err)
	} else {
		result.ResidualChart = chart
	}

	// Save analysis results
	logger.Info("Saving analysis results")
	if err := storage.SaveAnalysisResult(result, config.SiteID); err != nil {
		logger.Warn("Failed to save analysis results", "error", err)
	}

	// Generate report (HTML or Markdown)
	if *htmlOutput {
		logger.Info("Generating HTML report")
		htmlReporter := NewHTMLReporter(logger)
		if err := htmlReporter.GenerateHTMLReport(result, *outputPath); err != nil {
			logger.Error("Failed to generate HTML report", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Generating Markdown report")
		reporter := NewReporter(logger)
		if err := reporter.GenerateReport(result, *outputPath); err != nil {
			logger.Error("Failed to generate report", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Analysis completed successfully")
}
