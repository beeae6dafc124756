package signals

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, dir string, now time.Time) (Bundle, []Warning) {
	t.Helper()
	c := NewCollector(dir, 24*time.Hour, nil)
	return c.Collect(now)
}

// TestCollect_AbsentSourcesYieldDefaults verifies an empty signals directory
// produces a fully healthy bundle with no warnings.
func TestCollect_AbsentSourcesYieldDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b, warnings := collect(t, t.TempDir(), now)

	if len(warnings) != 0 {
		t.Errorf("warnings for absent sources: %v", warnings)
	}
	if b.Integrity != 100 || b.Consensus != 100 || b.WeightedConsensus != 100 {
		t.Errorf("scores = %v/%v/%v, want 100 for absent sources", b.Integrity, b.Consensus, b.WeightedConsensus)
	}
	if b.Reputation != 100 || b.ReputationIndex != 100 {
		t.Errorf("reputation = %v/%v, want 100", b.Reputation, b.ReputationIndex)
	}
	if b.ForecastRisk != RiskLow {
		t.Errorf("forecast = %s, want low", b.ForecastRisk)
	}
	if b.RecentResponses != 0 {
		t.Errorf("responses = %d, want 0", b.RecentResponses)
	}
	if len(b.Verifications) != 0 {
		t.Errorf("verifications = %v, want none", b.Verifications)
	}
	if !b.CollectedAt.Equal(now) {
		t.Errorf("collected_at = %v, want %v", b.CollectedAt, now)
	}
}

func TestCollect_ReadsHealthyArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "integrity.json", `{"score": 96.5}`)
	writeArtifact(t, dir, "consensus.json", `{"agreement": 93.0, "weighted_agreement": 94.5}`)
	writeArtifact(t, dir, "reputation.json", `{"score": 88.0, "index": 90.0}`)
	writeArtifact(t, dir, "forecast.json", `{"risk": "medium"}`)
	writeArtifact(t, dir, "verifications.json", `{"results": [{"check": "metadata", "passed": false}]}`)

	b, warnings := collect(t, dir, time.Now().UTC())
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	if b.Integrity != 96.5 {
		t.Errorf("integrity = %v", b.Integrity)
	}
	if b.Consensus != 93.0 || b.WeightedConsensus != 94.5 {
		t.Errorf("consensus = %v/%v", b.Consensus, b.WeightedConsensus)
	}
	if b.Reputation != 88.0 || b.ReputationIndex != 90.0 {
		t.Errorf("reputation = %v/%v", b.Reputation, b.ReputationIndex)
	}
	if b.ForecastRisk != RiskMedium {
		t.Errorf("forecast = %s", b.ForecastRisk)
	}
	if len(b.Verifications) != 1 || b.Verifications[0].Check != "metadata" || b.Verifications[0].Passed {
		t.Errorf("verifications = %+v", b.Verifications)
	}
}

// TestCollect_MalformedSourcesAreWorstCase verifies malformed artifacts
// degrade to the failing value and raise warnings, unlike absent ones.
func TestCollect_MalformedSourcesAreWorstCase(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "integrity.json", `{not json`)
	writeArtifact(t, dir, "consensus.json", `[]`)
	writeArtifact(t, dir, "forecast.json", `{"risk": "catastrophic"}`)

	b, warnings := collect(t, dir, time.Now().UTC())
	if b.Integrity != 0 {
		t.Errorf("malformed integrity = %v, want 0", b.Integrity)
	}
	if b.Consensus != 0 || b.WeightedConsensus != 0 {
		t.Errorf("malformed consensus = %v/%v, want 0", b.Consensus, b.WeightedConsensus)
	}
	if b.ForecastRisk != RiskHigh {
		t.Errorf("unknown risk level = %s, want high", b.ForecastRisk)
	}
	if len(warnings) != 3 {
		t.Fatalf("got %d warnings, want 3: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Kind != WarnMalformed && w.Kind != WarnOutOfRange {
			t.Errorf("warning kind = %s", w.Kind)
		}
	}
}

// TestCollect_UnreadableSourcesAreWorstCase verifies a source that exists but
// cannot be read degrades like malformed data, not like an absent file.
func TestCollect_UnreadableSourcesAreWorstCase(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the artifact makes the read fail while the
	// path still exists.
	for _, name := range []string{"integrity.json", "forecast.json"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	b, warnings := collect(t, dir, time.Now().UTC())
	if b.Integrity != 0 {
		t.Errorf("unreadable integrity = %v, want 0", b.Integrity)
	}
	if b.ForecastRisk != RiskHigh {
		t.Errorf("unreadable forecast = %s, want high", b.ForecastRisk)
	}
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Kind != WarnMalformed {
			t.Errorf("warning kind = %s, want malformed", w.Kind)
		}
	}
}

func TestCollect_OutOfRangeScore(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "integrity.json", `{"score": 140}`)

	b, warnings := collect(t, dir, time.Now().UTC())
	if b.Integrity != 0 {
		t.Errorf("out-of-range integrity = %v, want 0", b.Integrity)
	}
	if len(warnings) != 1 || warnings[0].Kind != WarnOutOfRange {
		t.Errorf("warnings = %v, want one out_of_range", warnings)
	}
}

// TestCollect_ResponsesWindow verifies only entries inside the trailing
// window count and unparsable lines count as actions.
func TestCollect_ResponsesWindow(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	lines := fmt.Sprintf(`{"ts": %q, "action": "quarantine/metadata"}
{"ts": %q, "action": "quarantine/metadata"}
{"ts": %q, "action": "rollback/consensus"}
not a json line
`,
		now.Add(-time.Hour).Format(time.RFC3339),
		now.Add(-23*time.Hour).Format(time.RFC3339),
		now.Add(-25*time.Hour).Format(time.RFC3339))
	writeArtifact(t, dir, "responses.jsonl", lines)

	b, warnings := collect(t, dir, now)

	// Two in-window entries plus the unparsable line.
	if b.RecentResponses != 3 {
		t.Errorf("responses = %d, want 3", b.RecentResponses)
	}
	if len(warnings) != 1 || warnings[0].Source != "responses.jsonl" {
		t.Errorf("warnings = %v, want one for responses.jsonl", warnings)
	}
}

func TestCollect_ConsensusWeightDefaultsToAgreement(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "consensus.json", `{"agreement": 91.0}`)

	b, _ := collect(t, dir, time.Now().UTC())
	if b.WeightedConsensus != 91.0 {
		t.Errorf("weighted = %v, want agreement value 91.0", b.WeightedConsensus)
	}
}
