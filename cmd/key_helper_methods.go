package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/cloud"
	"github.com/PolarWolf314/sealkeeper/internal/configs"
	kerrors "github.com/PolarWolf314/sealkeeper/internal/errors"
	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/briandowns/spinner"
)

// promptInput is where confirmation answers are read from. Replaced in tests.
var promptInput io.Reader = os.Stdin

// newEnv builds the AWS clients for cfg. Replaced in tests.
var newEnv = func(ctx context.Context, cfg *configs.Config) (*workflows.Env, error) {
	clients, err := cloud.Load(ctx, cloud.Options{
		Region:      cfg.AWS.Region,
		Profile:     cfg.AWS.Profile,
		Endpoint:    cfg.AWS.Endpoint,
		SSOLogin:     useSSO,
		SSOStartURL:  cfg.AWS.SSOStartURL,
		SSORegion:    cfg.AWS.SSORegion,
		SSOAccountID: cfg.AWS.SSOAccountID,
		SSORoleName:  cfg.AWS.SSORoleName,
	})
	if err != nil {
		return nil, err
	}

	return &workflows.Env{
		Config:  cfg,
		Secrets: cloud.NewSecretStore(clients.SecretsManager),
		Objects: cloud.NewObjectStore(clients.S3, cfg.Storage.Bucket, cfg.Storage.Prefix),
		STS:     clients.STS,
	}, nil
}

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
// Uses the global debug flag from the key command.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	return startSpinnerWithFlags(message, verbose, debug)
}

// startSpinnerWithFlags creates and starts a spinner with explicit verbose and debug flags.
// This is useful for commands that have their own flag variables (e.g., config commands).
func startSpinnerWithFlags(message string, verbose, debugFlag bool) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	// Ignore color errors - continue without colored spinner if it fails.
	_ = s.Color("cyan")

	quiet := !verbose && !debugFlag
	if quiet {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stderr)
		}

		// Clear FinalMSG so s.Stop() doesn't print it.
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// confirm stops the spinner, prints the warning and asks y/N.
// Anything other than y or yes, including EOF, is a no.
func confirm(s *spinner.Spinner, warning string, details ...string) bool {
	if s.Active() {
		s.Stop()
		defer s.Restart()
	}

	fmt.Printf("\n%s %s\n", ui.Warning.Sprint("Warning:"), warning)
	for _, d := range details {
		fmt.Println("  " + d)
	}
	fmt.Println()

	reader := bufio.NewReader(promptInput)
	fmt.Print("Do you want to continue? [y/N]: ")
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		Logger.Debugf("No confirmation read: %v", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// loadKeyConfig loads the config file and applies command-line overrides.
func loadKeyConfig() (*configs.Config, error) {
	cfg, err := configs.Load(configPath)
	if err != nil {
		return nil, err
	}

	if region != "" {
		cfg.AWS.Region = region
	}
	if profile != "" {
		cfg.AWS.Profile = profile
	}
	if endpoint != "" {
		cfg.AWS.Endpoint = endpoint
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if bucket != "" {
		cfg.Storage.Bucket = bucket
	}

	Logger.Debugf("Effective config: region=%q profile=%q current=%s backup=%s bucket=%q output=%s",
		cfg.AWS.Region, cfg.AWS.Profile, cfg.Secrets.CurrentID, cfg.Secrets.BackupID, cfg.Storage.Bucket, cfg.Output.Dir)
	return cfg, nil
}

// prepareEnv loads the config and connects to AWS.
func prepareEnv(ctx context.Context) (*workflows.Env, error) {
	cfg, err := loadKeyConfig()
	if err != nil {
		return nil, err
	}

	Logger.Debugf("Loading AWS credentials")
	env, err := newEnv(ctx, cfg)
	if err != nil {
		return nil, err
	}
	Logger.Infof("AWS clients ready")
	return env, nil
}

// reportedError marks an error whose message a command already printed.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// reported wraps err so that main exits 1 without printing it again.
func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// IsReported reports whether a command already printed err.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// formatKeyError renders err as a ✗ line plus a → hint when one applies.
func formatKeyError(err error) string {
	msg := ui.Error.Sprint("✗") + " " + err.Error()

	hint := func(parts ...string) string {
		return msg + "\n" + ui.Info.Sprint("→") + " " + strings.Join(parts, "")
	}

	switch {
	case errors.Is(err, kerrors.ErrMissingCredentials):
		return hint("Set ", ui.Code.Sprint("AWS_PROFILE"), ", run ", ui.Code.Sprint("aws sso login"), ", or pass ", ui.Flag.Sprint("--sso"))
	case errors.Is(err, kerrors.ErrMissingRegion):
		return hint("Pass ", ui.Flag.Sprint("--region"), " or set ", ui.Code.Sprint("AWS_REGION"))
	case errors.Is(err, kerrors.ErrSSOLoginFailed):
		return hint("Check the ", ui.Code.Sprint("sso_*"), " settings in ", ui.Code.Sprint("sealkeeper config show"))
	case errors.Is(err, kerrors.ErrRecordNotFound):
		return hint("Run ", ui.Code.Sprint("sealkeeper key setup"), " to create the master key")
	case errors.Is(err, kerrors.ErrRecordExists):
		return hint("Run ", ui.Code.Sprint("sealkeeper key setup --yes"), " to archive and replace it")
	case errors.Is(err, kerrors.ErrConfigNotFound):
		return hint("Create it with ", ui.Code.Sprint("sealkeeper config init --config <path>"), " or fix the path")
	case errors.Is(err, kerrors.ErrTagExists):
		return hint("Another operation wrote this tag within the same second. Wait a moment and run it again")
	case errors.Is(err, kerrors.ErrInvalidRecord), errors.Is(err, kerrors.ErrKeyMismatch):
		return hint("Run ", ui.Code.Sprint("sealkeeper key recover"), " from a known good backup")
	case errors.Is(err, kerrors.ErrNoSource), errors.Is(err, kerrors.ErrAmbiguousSource):
		return hint("Pass exactly one of ", ui.Flag.Sprint("--key-file"), ", ", ui.Flag.Sprint("--from-s3"), " or ", ui.Flag.Sprint("--from-aws-backup"))
	case errors.Is(err, kerrors.ErrVersionNotFound):
		return hint("Run ", ui.Code.Sprint("sealkeeper key versions"), " to list archived versions")
	case errors.Is(err, kerrors.ErrObjectNotFound):
		return hint("Run ", ui.Code.Sprint("sealkeeper key versions --s3"), " to list uploaded backups")
	case errors.Is(err, kerrors.ErrBucketRequired), errors.Is(err, kerrors.ErrInvalidS3URI):
		return hint("Pass ", ui.Flag.Sprint("--bucket"), " or set ", ui.Code.Sprint("SEALKEEPER_BUCKET"))
	case errors.Is(err, kerrors.ErrPassphraseRequired):
		return hint("Pass ", ui.Flag.Sprint("--passphrase-file"), " or run in a terminal to be prompted")
	case errors.Is(err, kerrors.ErrDecryptFailed):
		return hint("Check the passphrase printed by ", ui.Code.Sprint("sealkeeper key backup --encrypt"))
	default:
		return msg
	}
}

// formatWarnings renders non-fatal workflow warnings, one per line.
func formatWarnings(warnings []string) string {
	var b strings.Builder
	for _, w := range warnings {
		b.WriteString("\n" + ui.Warning.Sprint("⚠") + " " + w)
	}
	return b.String()
}
