package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/conjunction-screener/core"
	"github.com/signalsfoundry/conjunction-screener/internal/catalog"
	"github.com/signalsfoundry/conjunction-screener/model"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run a one-shot conjunction screening",
	Long: `screen reads the primary object's element set and a TLE catalog from
local files, runs the time-grid scan, and prints the sorted conjunction
events as JSON.`,
	RunE: runScreen,
}

func init() {
	flags := screenCmd.Flags()
	flags.String("tle-file", "", "file holding the primary object's element set (name line optional)")
	flags.String("catalog-file", "", "file holding the TLE catalog text")
	flags.Float64("window-hours", 24, "look-ahead window in hours")
	flags.Float64("step-seconds", 60, "sampling step in seconds")
	flags.Float64("threshold-km", 5, "promotion threshold in kilometres")
	flags.Int("max-catalog", 200, "catalog prefix cap")
	flags.Bool("probability", true, "run the collision-probability pipeline")
	flags.Int("workers", 1, "per-candidate fan-out")
	flags.String("at", "", "scan start instant, RFC3339 (default: now; set for reproducible runs)")

	_ = screenCmd.MarkFlagRequired("tle-file")
	_ = screenCmd.MarkFlagRequired("catalog-file")

	_ = viper.BindPFlag("window_hours", flags.Lookup("window-hours"))
	_ = viper.BindPFlag("step_seconds", flags.Lookup("step-seconds"))
	_ = viper.BindPFlag("threshold_km", flags.Lookup("threshold-km"))
	_ = viper.BindPFlag("max_catalog", flags.Lookup("max-catalog"))
	_ = viper.BindPFlag("workers", flags.Lookup("workers"))
}

func runScreen(cmd *cobra.Command, args []string) error {
	tlePath, _ := cmd.Flags().GetString("tle-file")
	catalogPath, _ := cmd.Flags().GetString("catalog-file")
	withProbability, _ := cmd.Flags().GetBool("probability")
	at, _ := cmd.Flags().GetString("at")

	primary, err := readPrimary(tlePath)
	if err != nil {
		return err
	}

	catalogText, err := os.ReadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	cat := catalog.ParseTLEText(string(catalogText))
	if len(cat) == 0 {
		return fmt.Errorf("catalog file %q holds no parsable element sets", catalogPath)
	}

	start := time.Now().UTC()
	if at != "" {
		start, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
	}

	cfg := core.ScanConfig{
		Window:          time.Duration(viper.GetFloat64("window_hours") * float64(time.Hour)),
		Step:            time.Duration(viper.GetFloat64("step_seconds") * float64(time.Second)),
		ThresholdKm:     viper.GetFloat64("threshold_km"),
		MaxCatalog:      viper.GetInt("max_catalog"),
		WithProbability: withProbability,
		Workers:         viper.GetInt("workers"),
	}

	scanner := core.NewScanner()
	events, stats, err := scanner.Screen(context.Background(), primary, cat, start, cfg)
	if err != nil {
		return err
	}

	out := struct {
		Events []model.ConjunctionEvent `json:"events"`
		Stats  core.ScanStats           `json:"stats"`
	}{Events: events, Stats: stats}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readPrimary parses the primary element set from a file holding either
// two element lines or a name line followed by the two element lines.
func readPrimary(path string) (model.TLE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.TLE{}, fmt.Errorf("read TLE file: %w", err)
	}
	sets := catalog.ParseTLEText("USER-SAT\n" + string(data))
	if len(sets) == 0 {
		return model.TLE{}, fmt.Errorf("file %q holds no parsable element set", path)
	}
	return sets[0], nil
}
