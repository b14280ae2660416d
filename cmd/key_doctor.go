package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	doctorJSONOutput bool
	// doctorExitFunc is the function called to exit with a specific code.
	// Can be overridden for testing.
	doctorExitFunc = os.Exit
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSONOutput, "json", false, "output in JSON format")
}

func resetDoctorCommandState() {
	doctorJSONOutput = false
	doctorExitFunc = os.Exit
}

// SetDoctorExitFunc sets the exit function for testing purposes.
func SetDoctorExitFunc(f func(int)) {
	doctorExitFunc = f
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the master key setup",
	Long: `Runs a series of health checks and reports issues.

The doctor command checks:
  - AWS credentials
  - Current slot existence and record validity
  - Certificate expiry
  - Backup slot existence
  - S3 bucket reachability, when a bucket is configured
  - Output directory permissions and local backups

Exit codes:
  0 - No errors (warnings may be present)
  1 - Errors found

Use --json for machine-readable output.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting doctor command")

	spinner, cleanup := startSpinner("Running health checks...", verbose)
	defer cleanup()

	cfg, err := loadKeyConfig()
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	ctx := cmd.Context()
	env, err := newEnv(ctx, cfg)
	if err != nil {
		// Without AWS clients the credential check fails and the local checks still run.
		Logger.Warnf("AWS clients unavailable: %v", err)
		env = &workflows.Env{Config: cfg}
	}

	result, err := workflows.Doctor(ctx, env, workflows.DoctorOptions{})
	if err != nil {
		spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to run health checks: " + err.Error()
		return reported(err)
	}

	for _, check := range result.Checks {
		Logger.Debugf("Check %s: status=%s, message=%s", check.Name, check.Status.String(), check.Message)
	}

	// Output results.
	spinner.FinalMSG = ""
	cleanup()
	if doctorJSONOutput {
		if err := outputDoctorJSON(result); err != nil {
			return err
		}
	} else {
		printDoctorResults(result)
		fmt.Println()
		switch {
		case result.Summary.Errors > 0:
			fmt.Println(ui.Error.Sprint("✗") + " Health checks completed with errors")
		case result.Summary.Warnings > 0:
			fmt.Println(ui.Warning.Sprint("⚠") + " Health checks completed with warnings")
		default:
			fmt.Println(ui.Success.Sprint("✓") + " Health checks completed")
		}
	}

	if result.Summary.Errors > 0 {
		doctorExitFunc(1)
	}
	return nil
}

// outputDoctorJSON outputs the result as JSON.
func outputDoctorJSON(result *workflows.DoctorResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// printDoctorResults prints the doctor results in a human-readable format.
func printDoctorResults(result *workflows.DoctorResult) {
	fmt.Println("Running health checks...")
	fmt.Println()

	for _, check := range result.Checks {
		var statusIcon string
		switch check.Status {
		case workflows.CheckPass:
			statusIcon = ui.Success.Sprint("✓")
		case workflows.CheckWarning:
			statusIcon = ui.Warning.Sprint("⚠")
		case workflows.CheckError:
			statusIcon = ui.Error.Sprint("✗")
		}
		fmt.Printf("%s %-16s %s\n", statusIcon, check.Name+":", check.Message)
	}

	fmt.Println()
	fmt.Printf("Summary: %d passed", result.Summary.Passed)
	if result.Summary.Warnings > 0 {
		fmt.Printf(", %s", ui.Warning.Sprint(fmt.Sprintf("%d warning(s)", result.Summary.Warnings)))
	}
	if result.Summary.Errors > 0 {
		fmt.Printf(", %s", ui.Error.Sprint(fmt.Sprintf("%d error(s)", result.Summary.Errors)))
	}
	fmt.Println()

	if len(result.Suggestions) > 0 {
		fmt.Println()
		fmt.Println("Suggestions:")
		for _, suggestion := range result.Suggestions {
			fmt.Printf("  %s %s\n", ui.Info.Sprint("→"), suggestion)
		}
	}
}
