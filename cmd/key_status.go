package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/PolarWolf314/sealkeeper/internal/ui"
	"github.com/PolarWolf314/sealkeeper/internal/utils"
	"github.com/PolarWolf314/sealkeeper/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	statusJSON bool
)

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
}

// resetStatusCommandState resets the status command's global state for testing.
func resetStatusCommandState() {
	statusJSON = false
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current and backup slots",
	Long: `Shows whether the current and backup Secrets Manager slots exist, which
key the current slot holds, and when its certificate expires.

Examples:
  sealkeeper key status
  sealkeeper key status --json`,
	RunE: runStatus,
}

// slotJSON is the --json form of a slot. Invalid is rendered as its message.
type slotJSON struct {
	ID           string    `json:"id"`
	Exists       bool      `json:"exists"`
	ARN          string    `json:"arn,omitempty"`
	LastChanged  time.Time `json:"last_changed,omitempty"`
	VersionCount int       `json:"version_count,omitempty"`
	RecordName   string    `json:"record_name,omitempty"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	NotAfter     time.Time `json:"not_after,omitempty"`
	Invalid      string    `json:"invalid,omitempty"`
}

func toSlotJSON(s workflows.SlotStatus) slotJSON {
	out := slotJSON{
		ID:           s.ID,
		Exists:       s.Exists,
		ARN:          s.ARN,
		LastChanged:  s.LastChanged,
		VersionCount: s.VersionCount,
		RecordName:   s.RecordName,
		Fingerprint:  s.Fingerprint,
		NotAfter:     s.NotAfter,
	}
	if s.Invalid != nil {
		out.Invalid = s.Invalid.Error()
	}
	return out
}

func runStatus(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting status command")
	spinner, cleanup := startSpinner("Checking master key status...", verbose)
	defer cleanup()

	ctx := cmd.Context()
	env, err := prepareEnv(ctx)
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	result, err := workflows.Status(ctx, env, workflows.StatusOptions{})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		return reported(err)
	}

	cleanup()

	if statusJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"current":         toSlotJSON(result.Current),
			"backup":          toSlotJSON(result.Backup),
			"local_artifacts": result.LocalArtifacts,
		})
	}

	printSlot("Current slot", result.Current)
	fmt.Println()
	printSlot("Backup slot", result.Backup)
	fmt.Println()
	fmt.Printf("%s %s: %d files\n", ui.Info.Sprint("Local backups in"), ui.Path.Sprint(env.Config.Output.Dir), len(result.LocalArtifacts))
	return nil
}

func printSlot(title string, s workflows.SlotStatus) {
	fmt.Printf("%s %s\n", ui.Info.Sprint(title), ui.SecretID.Sprint(s.ID))
	if !s.Exists {
		fmt.Println("  " + ui.Warning.Sprint("⚠") + " does not exist")
		return
	}

	fmt.Printf("  %-14s %s\n", "ARN:", s.ARN)
	fmt.Printf("  %-14s %s\n", "Last changed:", s.LastChanged.UTC().Format("2006-01-02 15:04:05"))
	fmt.Printf("  %-14s %d\n", "Versions:", s.VersionCount)
	if s.RecordName != "" {
		fmt.Printf("  %-14s %s\n", "Record:", ui.Highlight.Sprint(s.RecordName))
	}
	if s.Invalid != nil {
		fmt.Println("  " + ui.Error.Sprint("✗") + " " + s.Invalid.Error())
		return
	}
	fmt.Printf("  %-14s sha256 %s\n", "Fingerprint:", utils.ShortFingerprint(s.Fingerprint))
	fmt.Printf("  %-14s %s\n", "Expires:", s.NotAfter.Format("2006-01-02"))
}
