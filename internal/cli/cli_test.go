package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "taskheatmap 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "taskheatmap 1.2.3", strings.TrimSpace(output))
}

func TestVersionAfterSeparatorIsNotAFlag(t *testing.T) {
	err := RunWithArgs("test", []string{"add", "--", "--version"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--duration is required")
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"daemon", "report", "export", "add", "prune", "options", "status", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestSubcommandsRunAgainstInjectedSession(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		inject func(c *commands, s *session)
	}{
		{"status", []string{"status"}, func(c *commands, s *session) { c.Status.sess = s }},
		{"report", []string{"report"}, func(c *commands, s *session) { c.Report.sess = s }},
		{"export", []string{"export"}, func(c *commands, s *session) { c.Export.sess = s }},
		{"prune", []string{"prune"}, func(c *commands, s *session) { c.Prune.sess = s }},
		{"options", []string{"options"}, func(c *commands, s *session) { c.Options.sess = s }},
		{"add", []string{"add", "--domain", "example.com", "--duration", "5m"}, func(c *commands, s *session) { c.Add.sess = s }},
		{"purge", []string{"purge", "--all", "--force"}, func(c *commands, s *session) { c.Purge.sess = s }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, out := offlineSession(t, testConfig(t))
			parser, _, cmds := buildParser("test")
			tt.inject(cmds, sess)

			_, err := parser.ParseArgs(tt.args)
			require.NoError(t, err)
			assert.NotEmpty(t, out.String())
		})
	}
}

func TestAddRequiresDuration(t *testing.T) {
	err := RunWithArgs("test", []string{"add", "--domain", "example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--duration is required")
}

func TestAddRequiresTarget(t *testing.T) {
	err := RunWithArgs("test", []string{"add", "--duration", "5m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--domain or --idle-bucket is required")
}

func TestAddTargetsAreExclusive(t *testing.T) {
	err := RunWithArgs("test", []string{"add", "--duration", "5m", "--domain", "a.com", "--idle-bucket"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all flag")
}

func TestGlobalFlags(t *testing.T) {
	parser, globals, cmds := buildParser("test")
	sess, _ := offlineSession(t, testConfig(t))
	cmds.Status.sess = sess

	_, err := parser.ParseArgs([]string{"--json", "--verbose", "--config", "/tmp/test.yaml", "status"})
	require.NoError(t, err)
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
}

func TestReportFlagDefaults(t *testing.T) {
	parser, _, cmds := buildParser("test")
	sess, _ := offlineSession(t, testConfig(t))
	cmds.Report.sess = sess

	_, err := parser.ParseArgs([]string{"report"})
	require.NoError(t, err)
	assert.Equal(t, "day", cmds.Report.Timeframe)
	assert.Equal(t, "all", cmds.Report.Filter)
	assert.Equal(t, 5, cmds.Report.Top)
	assert.False(t, cmds.Report.Rollup)
}

func TestReportRejectsUnknownTimeframe(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"report", "--timeframe", "year"})
	require.Error(t, err)
}

func TestExportFlagDefaults(t *testing.T) {
	parser, _, cmds := buildParser("test")
	sess, _ := offlineSession(t, testConfig(t))
	cmds.Export.sess = sess

	_, err := parser.ParseArgs([]string{"export"})
	require.NoError(t, err)
	assert.Equal(t, "csv", cmds.Export.Format)
	assert.Equal(t, "week", cmds.Export.Timeframe)
}

func TestOptionsSummaryHourDefaultsToUnset(t *testing.T) {
	parser, _, cmds := buildParser("test")
	sess, _ := offlineSession(t, testConfig(t))
	cmds.Options.sess = sess

	_, err := parser.ParseArgs([]string{"options"})
	require.NoError(t, err)
	assert.Equal(t, -1, cmds.Options.SummaryHour)
	assert.False(t, cmds.Options.changes())
}

func TestPruneDryRunFlag(t *testing.T) {
	parser, _, cmds := buildParser("test")
	sess, _ := offlineSession(t, testConfig(t))
	cmds.Prune.sess = sess

	_, err := parser.ParseArgs([]string{"prune", "--dry-run", "--older-than", "2w"})
	require.NoError(t, err)
	assert.True(t, cmds.Prune.DryRun)
	assert.Equal(t, "2w", cmds.Prune.OlderThan)
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}
