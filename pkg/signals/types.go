package signals

import "time"

// RiskLevel is the forecasted risk classification consumed from the
// forecasting pipeline. The engine never computes a forecast itself.
type RiskLevel string

const (
	// RiskLow indicates no anomaly is forecast.
	RiskLow RiskLevel = "low"
	// RiskMedium indicates a possible anomaly is forecast.
	RiskMedium RiskLevel = "medium"
	// RiskHigh indicates a probable anomaly is forecast.
	RiskHigh RiskLevel = "high"
)

// Valid reports whether the risk level is one of the known classifications.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Bundle is the normalized set of health signals collected for one tick.
// All fields are populated: absent or malformed sources are substituted with
// their documented defaults before the bundle is returned.
type Bundle struct {
	// Integrity is the integrity/health score in [0, 100].
	Integrity float64 `json:"integrity"`

	// Consensus is the plain consensus agreement in [0, 100].
	Consensus float64 `json:"consensus"`

	// WeightedConsensus is the stake-weighted consensus agreement in
	// [0, 100], used by the trust-lock thresholds.
	WeightedConsensus float64 `json:"weighted_consensus"`

	// Reputation is the peer reputation score in [0, 100].
	Reputation float64 `json:"reputation"`

	// ReputationIndex is the aggregated reputation index in [0, 100],
	// used by the trust-lock thresholds.
	ReputationIndex float64 `json:"reputation_index"`

	// ForecastRisk is the forecasted risk classification.
	ForecastRisk RiskLevel `json:"forecast_risk"`

	// RecentResponses is the number of automated responses recorded in the
	// trailing window.
	RecentResponses int `json:"recent_responses"`

	// Verifications are the per-check verifier and correction signals
	// consumed by the escalation lifecycle.
	Verifications []VerificationResult `json:"verifications,omitempty"`

	// CollectedAt is the UTC time the bundle was assembled.
	CollectedAt time.Time `json:"collected_at"`
}

// VerificationResult is one check's outcome from the external verification
// pipeline, plus whether corrective-action evidence was observed for it.
type VerificationResult struct {
	Check              string `json:"check"`
	Passed             bool   `json:"passed"`
	CorrectionDetected bool   `json:"correction_detected,omitempty"`
}

// WarningKind classifies a signal-collection warning.
type WarningKind string

const (
	// WarnMalformed indicates a source file was present but unparsable.
	WarnMalformed WarningKind = "malformed"
	// WarnOutOfRange indicates a source value was parsable but outside its
	// documented range.
	WarnOutOfRange WarningKind = "out_of_range"
)

// Warning describes a degraded signal source. A warning never aborts
// collection: the affected field is substituted with its worst-case value
// and collection continues.
type Warning struct {
	Source  string      `json:"source"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Source artifact shapes. Each artifact is an independently optional JSON
// document in the signals directory.

type integrityArtifact struct {
	Score float64 `json:"score"`
}

type consensusArtifact struct {
	Agreement         float64  `json:"agreement"`
	WeightedAgreement *float64 `json:"weighted_agreement"`
}

type reputationArtifact struct {
	Score float64  `json:"score"`
	Index *float64 `json:"index"`
}

type forecastArtifact struct {
	Risk string `json:"risk"`
}

type verificationsArtifact struct {
	Results []VerificationResult `json:"results"`
}

// responseEntry is one line of the automated-response activity log
// (responses.jsonl, append-only JSONL).
type responseEntry struct {
	Timestamp time.Time `json:"ts"`
	Action    string    `json:"action"`
}
