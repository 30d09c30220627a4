//go:build integration

package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCLIWorkflow_LogJourney logs in, creates a log, reads it back and deletes it.
func TestCLIWorkflow_LogJourney(t *testing.T) {
	config := LoadTestConfig(t)
	config.SkipIfMissingConfig(t)
	config.SkipIfMissingBinary(t)

	runner := NewCommandRunner(config, t)
	require.NoError(t, runner.Login())

	stdout, stderr, err := runner.Run("profiles", "list", "--output", "json")
	require.NoError(t, err, "Failed to list profiles: %s", stderr)
	AssertJSONOutput(t, stdout)

	name := GenerateTestName("workflow-log")

	stdout, stderr, err = runner.Run("send", "log", "activity",
		"--data", `{"attributes":{"name":"`+name+`"}}`,
		"--output", "json")
	require.NoError(t, err, "Failed to create log: %s", stderr)

	var created map[string]any

	require.NoError(t, json.Unmarshal([]byte(stdout), &created))

	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	stdout, stderr, err = runner.Run("get", "log", "activity", "--id", id, "--output", "json")
	require.NoError(t, err, "Failed to get log: %s", stderr)
	assert.Contains(t, stdout, name)

	stdout, stderr, err = runner.Run("iterate", "log", "activity",
		"--filter", "name="+name, "--output", "json")
	require.NoError(t, err, "Failed to iterate logs: %s", stderr)
	assert.Contains(t, stdout, id)

	stdout, stderr, err = runner.Run("delete", "log", "activity", id)
	require.NoError(t, err, "Failed to delete log: %s", stderr)
	assert.Contains(t, stdout, "Deleted")

	_, _, err = runner.Run("logout")
	require.NoError(t, err)

	_, _, err = runner.Run("get", "log", "activity")
	require.Error(t, err)
}

func TestCLIWorkflow_Info(t *testing.T) {
	config := LoadTestConfig(t)
	config.SkipIfMissingConfig(t)
	config.SkipIfMissingBinary(t)

	runner := NewCommandRunner(config, t)
	require.NoError(t, runner.Login())

	stdout, stderr, err := runner.Run("info", "--output", "yaml")
	require.NoError(t, err, "Failed to get info: %s", stderr)
	assert.NotEmpty(t, stdout)
}
