// Package signals reads externally produced health artifacts and normalizes
// them into a typed signal bundle.
//
// Each source is read independently. A missing source yields its documented
// safe default; a source that is present but unreadable or malformed yields
// the worst-case value for that field and a warning. Collection itself never fails: the caller
// always receives a complete bundle plus the list of warnings.
package signals

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Artifact file names inside the signals directory.
const (
	integrityFile  = "integrity.json"
	consensusFile  = "consensus.json"
	reputationFile = "reputation.json"
	forecastFile      = "forecast.json"
	responsesFile     = "responses.jsonl"
	verificationsFile = "verifications.json"
)

// Defaults for absent sources. An absent source means the producing pipeline
// has not run, which is not itself a health problem; malformed data is.
const (
	defaultIntegrity  = 100.0
	defaultConsensus  = 100.0
	defaultReputation = 100.0
)

// Collector reads signal artifacts from a directory.
type Collector struct {
	dir    string
	window time.Duration
	logger *slog.Logger
}

// NewCollector creates a collector reading from dir. The window bounds which
// response-log entries count as "recent".
func NewCollector(dir string, window time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		dir:    dir,
		window: window,
		logger: logger.With("component", "signals"),
	}
}

// Collect reads all signal sources and returns the normalized bundle plus
// any warnings for degraded sources. It has no side effects and never
// returns an error: every failure mode degrades to a documented value.
func (c *Collector) Collect(now time.Time) (Bundle, []Warning) {
	var warnings []Warning

	b := Bundle{
		ForecastRisk: RiskLow,
		CollectedAt:  now.UTC(),
	}

	b.Integrity = c.readScore(integrityFile, &warnings)
	b.Consensus, b.WeightedConsensus = c.readConsensus(&warnings)
	b.Reputation, b.ReputationIndex = c.readReputation(&warnings)
	b.ForecastRisk = c.readForecast(&warnings)
	b.RecentResponses = c.readResponses(now, &warnings)
	b.Verifications = c.readVerifications(&warnings)

	return b, warnings
}

// readVerifications reads the verifier outcome list. A malformed artifact
// yields no verifications: the engine cannot invent check names, so the
// escalation lifecycle simply sees no verifier activity this tick.
func (c *Collector) readVerifications(warnings *[]Warning) []VerificationResult {
	data, ok, err := c.read(verificationsFile)
	if err != nil {
		c.warn(warnings, verificationsFile, WarnMalformed, fmt.Sprintf("unreadable: %v", err))
		return nil
	}
	if !ok {
		return nil
	}

	var art verificationsArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		c.warn(warnings, verificationsFile, WarnMalformed, fmt.Sprintf("unparsable JSON: %v", err))
		return nil
	}
	return art.Results
}

// readScore reads a single-score artifact, defaulting to a passing value
// when absent and to zero (worst case) when malformed.
func (c *Collector) readScore(name string, warnings *[]Warning) float64 {
	data, ok, err := c.read(name)
	if err != nil {
		c.warn(warnings, name, WarnMalformed, fmt.Sprintf("unreadable: %v", err))
		return 0
	}
	if !ok {
		return defaultIntegrity
	}

	var art integrityArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		c.warn(warnings, name, WarnMalformed, fmt.Sprintf("unparsable JSON: %v", err))
		return 0
	}
	return c.clampScore(name, art.Score, warnings)
}

func (c *Collector) readConsensus(warnings *[]Warning) (agreement, weighted float64) {
	data, ok, err := c.read(consensusFile)
	if err != nil {
		c.warn(warnings, consensusFile, WarnMalformed, fmt.Sprintf("unreadable: %v", err))
		return 0, 0
	}
	if !ok {
		return defaultConsensus, defaultConsensus
	}

	var art consensusArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		c.warn(warnings, consensusFile, WarnMalformed, fmt.Sprintf("unparsable JSON: %v", err))
		return 0, 0
	}

	agreement = c.clampScore(consensusFile, art.Agreement, warnings)
	weighted = agreement
	if art.WeightedAgreement != nil {
		weighted = c.clampScore(consensusFile, *art.WeightedAgreement, warnings)
	}
	return agreement, weighted
}

func (c *Collector) readReputation(warnings *[]Warning) (score, index float64) {
	data, ok, err := c.read(reputationFile)
	if err != nil {
		c.warn(warnings, reputationFile, WarnMalformed, fmt.Sprintf("unreadable: %v", err))
		return 0, 0
	}
	if !ok {
		return defaultReputation, defaultReputation
	}

	var art reputationArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		c.warn(warnings, reputationFile, WarnMalformed, fmt.Sprintf("unparsable JSON: %v", err))
		return 0, 0
	}

	score = c.clampScore(reputationFile, art.Score, warnings)
	index = score
	if art.Index != nil {
		index = c.clampScore(reputationFile, *art.Index, warnings)
	}
	return score, index
}

func (c *Collector) readForecast(warnings *[]Warning) RiskLevel {
	data, ok, err := c.read(forecastFile)
	if err != nil {
		c.warn(warnings, forecastFile, WarnMalformed, fmt.Sprintf("unreadable: %v", err))
		return RiskHigh
	}
	if !ok {
		return RiskLow
	}

	var art forecastArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		c.warn(warnings, forecastFile, WarnMalformed, fmt.Sprintf("unparsable JSON: %v", err))
		return RiskHigh
	}

	risk := RiskLevel(art.Risk)
	if !risk.Valid() {
		c.warn(warnings, forecastFile, WarnOutOfRange, fmt.Sprintf("unknown risk level %q", art.Risk))
		return RiskHigh
	}
	return risk
}

// readResponses counts response-log entries within the trailing window.
// Unparsable lines are counted as one action each: a corrupt entry still
// represents an action that was taken.
func (c *Collector) readResponses(now time.Time, warnings *[]Warning) int {
	f, err := os.Open(filepath.Join(c.dir, responsesFile))
	if err != nil {
		if !os.IsNotExist(err) {
			c.warn(warnings, responsesFile, WarnMalformed, fmt.Sprintf("unreadable: %v", err))
		} else {
			c.logger.Debug("signal source absent, using default", "source", responsesFile)
		}
		return 0
	}
	defer f.Close()

	cutoff := now.Add(-c.window)
	count := 0
	badLines := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry responseEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			badLines++
			count++
			continue
		}
		if entry.Timestamp.After(cutoff) {
			count++
		}
	}
	if badLines > 0 {
		c.warn(warnings, responsesFile, WarnMalformed,
			fmt.Sprintf("%d unparsable log lines counted as actions", badLines))
	}
	if err := scanner.Err(); err != nil {
		c.warn(warnings, responsesFile, WarnMalformed, fmt.Sprintf("read error: %v", err))
	}

	return count
}

// read returns the artifact bytes and whether the file existed. Absent files
// are logged at debug level only; they are an expected condition. A file that
// exists but cannot be read is returned as an error so callers treat it like
// malformed data rather than an absent source.
func (c *Collector) read(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Debug("signal source absent, using default", "source", name)
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// clampScore validates a [0, 100] score, substituting the worst case for
// out-of-range values.
func (c *Collector) clampScore(source string, v float64, warnings *[]Warning) float64 {
	if v < 0 || v > 100 {
		c.warn(warnings, source, WarnOutOfRange, fmt.Sprintf("score %v outside [0, 100]", v))
		return 0
	}
	return v
}

func (c *Collector) warn(warnings *[]Warning, source string, kind WarningKind, msg string) {
	c.logger.Warn("degraded signal source", "source", source, "kind", string(kind), "detail", msg)
	*warnings = append(*warnings, Warning{Source: source, Kind: kind, Message: msg})
}
