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

const (
	// OpenMeteoArchiveEndpoint is the Open-Meteo historical weather API
	OpenMeteoArchiveEndpoint = "https://archive-api.open-meteo.com/v1/archive"

	// HDDBaseTempF is the reference temperature for heating degree days
	HDDBaseTempF = 65.0

	// IntervalMinutes is the gateway telemetry sampling granularity
	IntervalMinutes = 5

	// IntervalsPerDay is the expected sample count for a complete day
	IntervalsPerDay = 24 * 60 / IntervalMinutes

	// FetchChunkDays is the telemetry range-query window size. Successive
	// windows overlap by one day so no boundary interval is missed; the
	// aggregator deduplicates the overlap.
	FetchChunkDays = 7

	// MinNormalDays is the minimum number of normal days required before
	// any global model may be fitted. Below this the run aborts.
	MinNormalDays = 10

	// MinSegmentDays is the minimum day count for a segment to get its own
	// fitted model rather than a constant fallback.
	MinSegmentDays = 4

	// CandidateStdDevFactor gates the signal-pattern scan: only normal days
	// above mean + this many stddevs of total consumption are inspected.
	CandidateStdDevFactor = 1.5

	// AnomalyZThreshold flags a day when |residual z-score| exceeds it.
	AnomalyZThreshold = 1.5

	// MaxDrillDowns caps how many anomalies get hourly drill-down, bounding
	// sub-daily data volume.
	MaxDrillDowns = 5

	// PivotEpsilon is the singularity cutoff for Gaussian elimination.
	PivotEpsilon = 1e-10

	// BTUPerKwh converts thermal BTU to kWh in the envelope models.
	BTUPerKwh = 3412.0

	// AirHeatCapacityBTU is the volumetric heat capacity of air in
	// BTU per cubic foot per degree Fahrenheit.
	AirHeatCapacityBTU = 0.018

	// ACH50ToNaturalDivisor converts a blower-door ACH50 figure to an
	// estimated natural air-change rate (LBL N-factor for a sheltered
	// two-storey home in a cold climate).
	ACH50ToNaturalDivisor = 20.0
)

// Drill-down pattern heuristic thresholds. Hours are local clock hours;
// energy floors are watt-hours per hour.
const (
	overnightStartHour     = 0
	overnightEndHour       = 5
	morningStartHour       = 6
	morningEndHour         = 9
	overnightEscalationMin = 1.5
	morningSurgeMin        = 1.8
	sustainedHighHours     = 6
	sustainedHighFloorWh   = 2500.0
	patternFloorWh         = 1500.0
)
