//go:build integration

package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fivetwenty-io/farmos/pkg/farmclient"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/joeshaw/envdecode"
	"github.com/stretchr/testify/require"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	Hostname     string `env:"FARMOS_HOSTNAME"`
	APIStyle     string `env:"FARMOS_API_STYLE,default=jsonapi"`
	Username     string `env:"FARMOS_OAUTH_USERNAME"`
	Password     string `env:"FARMOS_OAUTH_PASSWORD"`
	ClientID     string `env:"FARMOS_OAUTH_CLIENT_ID,default=farm"`
	ClientSecret string `env:"FARMOS_OAUTH_CLIENT_SECRET"`
	Scope        string `env:"FARMOS_OAUTH_SCOPE,default=farm_manager"`
	BinaryPath   string `env:"FARMOS_BINARY_PATH"`
	Verbose      bool   `env:"FARMOS_VERBOSE,default=false"`
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig(t *testing.T) *TestConfig {
	t.Helper()

	config := &TestConfig{}

	err := envdecode.Decode(config)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		t.Fatalf("failed to read integration config: %v", err)
	}

	if config.BinaryPath == "" {
		config.BinaryPath = findBinary()
	}

	return config
}

func findBinary() string {
	for _, candidate := range []string{"../../farmos", "./farmos", "../farmos"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "farmos"
}

// SkipIfMissingConfig skips the test unless a server and credentials are configured.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.Hostname == "" {
		t.Skip("FARMOS_HOSTNAME not set, skipping integration test")
	}

	if config.Username == "" || config.Password == "" {
		t.Skip("FARMOS_OAUTH_USERNAME and FARMOS_OAUTH_PASSWORD not set, skipping integration test")
	}
}

// SkipIfMissingBinary skips CLI tests when the farmos binary was not built.
func (config *TestConfig) SkipIfMissingBinary(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("farmos binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// Client creates an authenticated library client.
func (config *TestConfig) Client(t *testing.T) farmos.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := farmclient.New(ctx, &farmos.Config{
		Hostname:     config.Hostname,
		APIStyle:     farmos.APIStyle(config.APIStyle),
		Username:     config.Username,
		Password:     config.Password,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scope:        config.Scope,
		RetryMax:     2,
	})
	require.NoError(t, err)

	return client
}

// CommandRunner runs the farmos binary against a private config file.
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a new command runner.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a farmos command and returns its output.
func (runner *CommandRunner) Run(args ...string) (string, string, error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a farmos command with stdin input.
func (runner *CommandRunner) RunWithInput(input string, args ...string) (string, string, error) {
	args = append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.BinaryPath, args...) //nolint:gosec // test binary

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)
	cmd.Env = os.Environ()

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err := cmd.Run()
	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Login stores a token for the configured server in the runner's profile.
func (runner *CommandRunner) Login() error {
	_, stderr, err := runner.Run("login",
		"--hostname", runner.config.Hostname,
		"--username", runner.config.Username,
		"--password", runner.config.Password,
		"--client-id", runner.config.ClientID,
		"--scope", runner.config.Scope)
	if err != nil {
		return fmt.Errorf("failed to log in: %s", stderr)
	}

	return nil
}

// GenerateTestName creates a unique test record name.
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// AssertJSONOutput verifies command output is JSON.
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
