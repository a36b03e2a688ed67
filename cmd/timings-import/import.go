package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/namaznow/timings-import/internal/form"
	"github.com/namaznow/timings-import/internal/logging"
	"github.com/namaznow/timings-import/internal/spreadsheet"
	"github.com/namaznow/timings-import/internal/strapi"
	"github.com/namaznow/timings-import/internal/timings"
	"github.com/spf13/cobra"
)

var (
	importLocation int64
	importSchool   string
	importDryRun   bool
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a timings spreadsheet for one location",
		Long: `Reads the first sheet of FILE, keys each row by DD-MM-YYYY using the current year,
and submits the timings to the given location. With --dry-run the payload is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Int64VarP(&importLocation, "location", "l", 0, "Target location id (see the locations command)")
	cmd.Flags().StringVarP(&importSchool, "school", "s", "", "School of thought: HANAFI or SHAFIEE")
	cmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Print the submission payload as JSON instead of sending it")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger("import")
	inputPath := args[0]

	school, err := timings.ParseSchoolOfThought(importSchool)
	if err != nil {
		return err
	}
	if importLocation <= 0 {
		return fmt.Errorf("--location is required")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inputPath, err)
	}

	deps := form.Dependencies{
		// Report columns the mapper could not find before they silently go missing
		Parse: func(name string, data []byte) ([]spreadsheet.Row, error) {
			rows, err := spreadsheet.ParseNamed(name, data)
			if err == nil {
				if missing := timings.MissingColumns(rows); len(missing) > 0 {
					logger.Warn().Strs("fields", missing).Msg("Spreadsheet is missing columns for some prayer times")
				}
			}
			return rows, err
		},
	}

	if !importDryRun {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := strapi.NewClient(strapi.Config{
			BaseURL:   cfg.Strapi.BaseURL,
			AuthToken: cfg.Strapi.AuthToken,
			Timeout:   cfg.Strapi.RequestTimeout,
		})
		if err != nil {
			return err
		}
		deps.Directory = client
		deps.Submitter = client
	}

	controller := form.New(deps)
	defer controller.Close()

	count, err := controller.LoadFile(inputPath, data)
	if err != nil {
		return err
	}
	controller.SelectLocation(importLocation)
	if err := controller.SelectSchoolOfThought(school); err != nil {
		return err
	}

	if importDryRun {
		snap := controller.Snapshot()
		payload := strapi.SubmissionPayload{
			PrayerTimings:   snap.Entries,
			LocationID:      snap.SelectedLocation,
			SchoolOfThought: snap.SelectedSchool,
		}
		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("serialization failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if err := controller.Submit(cmd.Context()); err != nil {
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s %s", verr.Title, verr.Description)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %d days to location %d (%s)\n", count, importLocation, school)
	return nil
}
