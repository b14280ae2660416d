// Package cmd contains testing utilities shared between command tests.
// This file provides common functions for faking AWS, capturing output,
// and running commands through a fresh root command.
package cmd

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	"github.com/PolarWolf314/sealkeeper/internal/cloud/cloudtest"
	"github.com/PolarWolf314/sealkeeper/internal/configs"
	logger "github.com/PolarWolf314/sealkeeper/internal/logging"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"
	"github.com/spf13/cobra"
)

// fakeAWS holds the in-memory services a test command runs against.
type fakeAWS struct {
	sm  *cloudtest.SecretsManager
	s3  *cloudtest.S3
	sts *cloudtest.STS

	configPath string
	outputDir  string

	// envCalls counts how often a command asked for AWS clients.
	envCalls int
}

// setupTestEnvironment writes a config into a temp directory and points
// every AWS client at in-memory fakes. State is restored on cleanup.
func setupTestEnvironment(t *testing.T) *fakeAWS {
	t.Helper()

	ResetGlobalState()
	ResetConfigState()
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("SEALKEEPER_BUCKET", "")
	t.Setenv("SEALKEEPER_ENDPOINT", "")

	tempDir := t.TempDir()
	f := &fakeAWS{
		sm:         cloudtest.NewSecretsManager(),
		s3:         cloudtest.NewS3("ops-backups"),
		sts:        cloudtest.NewSTS(),
		configPath: filepath.Join(tempDir, "config.toml"),
		outputDir:  filepath.Join(tempDir, "backups"),
	}

	cfg := configs.Default()
	cfg.AWS.Region = "eu-west-1"
	cfg.Certificate.KeyBits = 2048
	cfg.Output.Dir = f.outputDir
	cfg.Storage.Bucket = "ops-backups"
	if err := configs.Save(f.configPath, cfg); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	savedNewEnv := newEnv
	savedPromptInput := promptInput
	t.Cleanup(func() {
		newEnv = savedNewEnv
		promptInput = savedPromptInput
		ResetGlobalState()
		ResetConfigState()
	})

	newEnv = func(ctx context.Context, cfg *configs.Config) (*workflows.Env, error) {
		f.envCalls++
		return &workflows.Env{
			Config:  cfg,
			Secrets: cloud.NewSecretStore(f.sm),
			Objects: cloud.NewObjectStore(f.s3, cfg.Storage.Bucket, cfg.Storage.Prefix),
			STS:     f.sts,
		}, nil
	}
	promptInput = strings.NewReader("")

	return f
}

// answer makes the next confirmation prompts read the given input.
func answer(input string) {
	promptInput = strings.NewReader(input)
}

// currentID is the default current slot.
func (f *fakeAWS) currentID() string {
	return configs.DefaultCurrentSecretID
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	// Save original stdout and stderr
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	// Create pipes to capture output
	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	// Replace stdout and stderr
	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	// Channel to collect output
	stdoutChan := make(chan string, 1)
	stderrChan := make(chan string, 1)

	// Start goroutines to read from pipes
	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, stdoutReader); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		stdoutChan <- buf.String()
	}()

	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, stderrReader); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		stderrChan <- buf.String()
	}()

	// Execute the function
	err := fn()

	// Close writers to signal EOF
	stdoutWriter.Close()
	stderrWriter.Close()

	// Restore original stdout and stderr
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-stdoutChan + <-stderrChan, err
}

// createTestCLI creates a complete CLI instance whose args run the given command line.
func createTestCLI(args []string, verboseFlag, debugFlag bool) *cobra.Command {
	verbose = verboseFlag
	debug = debugFlag

	Logger = logger.Logger{
		Verbose: verbose,
		Debug:   debug,
	}

	rootCmd := &cobra.Command{
		Use:           "sealkeeper",
		Short:         "Sealed Secrets master key lifecycle on AWS",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(KeyCmd)
	rootCmd.AddCommand(ConfigCmd)
	rootCmd.SetArgs(args)
	return rootCmd
}

// runKey runs "sealkeeper key <args>" against the fake environment.
func (f *fakeAWS) runKey(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetKeyCobraFlagState()
	full := append([]string{"key"}, args...)
	full = append(full, "--config", f.configPath)
	return captureOutput(func() error {
		return createTestCLI(full, false, false).Execute()
	})
}

// runConfig runs "sealkeeper config <args>".
func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetConfigCobraFlagState()
	full := append([]string{"config"}, args...)
	return captureOutput(func() error {
		return createTestCLI(full, false, false).Execute()
	})
}
