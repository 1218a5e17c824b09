package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/emission"
)

func testConfig() config.Config {
	return config.Config{JWTSecret: "cli-secret", JWTIssuer: "ecotrack.cli", EstimatePolicy: "lenient"}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(testConfig())
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFactorsCommand(t *testing.T) {
	out, err := execute(t, "factors")
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Regexp(t, `transport\s+car\s+0\.12\s+km`, out)
	assert.Regexp(t, `food\s+beef\s+27\s+kg`, out)
	assert.Regexp(t, `energy\s+solar\s+0\.05\s+kWh`, out)
}

func TestFactorsCommandWithCustomTable(t *testing.T) {
	path := writeFile(t, "factors.yaml", "transport:\n  scooter: 0.02\nfood: {}\nenergy: {}\n")
	out, err := execute(t, "factors", "--factors", path)
	require.NoError(t, err)
	assert.Regexp(t, `transport\s+scooter\s+0\.02`, out)
	assert.NotContains(t, out, "beef")
}

func TestEstimateCommand(t *testing.T) {
	out, err := execute(t, "estimate", "--kind", "transport", "--subtype", "car", "--quantity", "100")
	require.NoError(t, err)
	assert.Equal(t, "transport/car 100 km = 12.00 kg CO2e\n", out)

	out, err = execute(t, "estimate", "--kind", "food", "--subtype", "chicken", "--quantity", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "= 3.45 kg CO2e")

	_, err = execute(t, "estimate", "--kind", "flight", "--subtype", "jet")
	require.ErrorIs(t, err, emission.ErrUnknownKind)

	out, err = execute(t, "estimate", "--kind", "transport", "--subtype", "hovercraft", "--quantity", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "= 0.00 kg CO2e")

	_, err = execute(t, "estimate", "--policy", "strict", "--kind", "transport", "--subtype", "hovercraft", "--quantity", "5")
	require.ErrorIs(t, err, emission.ErrUnknownSubtype)
}

const exportFixture = `
- kind: transport
  subtype: car
  quantity: 100
- kind: food
  subtype: beef
  quantity: "1000"
- kind: energy
  subtype: solar
  quantity: lots
`

func TestSummarizeCommandTable(t *testing.T) {
	path := writeFile(t, "export.yaml", exportFixture)
	out, err := execute(t, "summarize", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Activities: 3")
	assert.Contains(t, out, "Total: 39.00 kg CO2e")
	assert.Regexp(t, `transport\s+1\s+12\.00\s+31%`, out)
	assert.Regexp(t, `food\s+1\s+27\.00\s+69%`, out)
	assert.Contains(t, out, "[x] Eco Starter")
	assert.Contains(t, out, "[x] Green Commute")
	assert.Contains(t, out, "Equivalent to driving")
}

func TestSummarizeCommandJSON(t *testing.T) {
	path := writeFile(t, "export.json", `[{"kind":"energy","subtype":"electricity","quantity":4}]`)
	out, err := execute(t, "summarize", "-o", "json", path)
	require.NoError(t, err)

	var report domain.FootprintReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Summary.Count)
	assert.InDelta(t, 2.0, report.Summary.TotalMass, 1e-9)
	assert.Equal(t, 100, report.Summary.Breakdown[emission.KindEnergy])
}

func TestSummarizeCommandRejectsBadRows(t *testing.T) {
	path := writeFile(t, "export.yaml", "- kind: boat\n  subtype: sail\n  quantity: 1\n")
	_, err := execute(t, "summarize", path)
	require.ErrorIs(t, err, emission.ErrUnknownKind)
	assert.Contains(t, err.Error(), "row 1")

	_, err = execute(t, "summarize", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--sub", "alice", "--name", "Alice", "--scope", auth.ScopeActivitiesRead, "--ttl", "1h")
	require.NoError(t, err)

	cfg := testConfig()
	claims, err := auth.Parse(strings.TrimSpace(out), auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.True(t, claims.HasScope(auth.ScopeActivitiesRead))
	assert.False(t, claims.HasScope(auth.ScopeActivitiesWrite))
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	_, err = execute(t, "token")
	require.Error(t, err)
}

func TestParseChallengeDates(t *testing.T) {
	c := domain.Challenge{ID: "bike", Title: "Bike June"}
	require.NoError(t, parseChallengeDates(&c, "2025-06-01", "2025-06-30"))
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), c.StartDate)
	require.NotNil(t, c.EndDate)
	assert.Equal(t, 30, c.EndDate.Day())

	open := domain.Challenge{ID: "meatless", Title: "Meatless"}
	require.NoError(t, parseChallengeDates(&open, "2025-05-01", ""))
	assert.Nil(t, open.EndDate)

	require.Error(t, parseChallengeDates(&domain.Challenge{ID: "x", Title: "x"}, "June", ""))
	require.Error(t, parseChallengeDates(&domain.Challenge{ID: "x", Title: "x"}, "2025-06-30", "2025-06-01"))
	require.Error(t, parseChallengeDates(&domain.Challenge{}, "2025-06-01", ""))
}
