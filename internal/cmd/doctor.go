package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"opentracker/internal/category"
	"opentracker/internal/collector"
	"opentracker/internal/config"
	"opentracker/internal/storage"
)

var doctorConfigPath string

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for common problems",
		RunE:  runDoctor,
	}
	cmd.Flags().StringVarP(&doctorConfigPath, "config", "c", "", "Path to config file")
	return cmd
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stdout, "opentracker Doctor\n")
	fmt.Fprintf(os.Stdout, "==================\n\n")

	failures := 0
	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Fprintf(os.Stdout, "[FAIL] %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(os.Stdout, "[ OK ] %s\n", name)
	}

	cfg, err := config.Load(doctorConfigPath)
	check("config loads", err)
	if err != nil {
		return fmt.Errorf("cannot continue without a loadable config")
	}

	_, _, err = config.ParseHHMM(cfg.Report.Time)
	check(fmt.Sprintf("report time %q is valid HH:MM", cfg.Report.Time), err)

	check("db path is creatable", cfg.Storage.EnsureDBPath())
	if db, err := storage.Open(cfg.Storage.DBPath); err != nil {
		check("activity store opens", err)
	} else {
		check("activity store opens", nil)
		db.Close()
	}

	check("report directory is creatable", cfg.Report.EnsureDir())

	check("categories file exists", cfg.Storage.EnsureCategoriesFile())
	_, err = category.LoadRules(cfg.Storage.CategoriesPath)
	check("category rules parse", err)

	if cfg.AI.Enabled {
		if cfg.AI.ResolveAPIKey() == "" {
			check("AI API key configured", fmt.Errorf("ai.enabled is true but no key is set (ai.api_key or OPENTRACKER_AI_API_KEY)"))
		} else {
			check("AI API key configured", nil)
		}
	} else {
		fmt.Fprintf(os.Stdout, "[SKIP] AI API key (ai.enabled is false)\n")
	}

	sampler := &collector.OSAScriptSampler{}
	if sampler.WindowAccessAvailable() {
		fmt.Fprintf(os.Stdout, "[ OK ] window titles readable\n")
	} else {
		fmt.Fprintf(os.Stdout, "[WARN] window titles unreadable (grant accessibility permission; samples will omit titles)\n")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, profile := range cfg.Collector.ChromeProfiles {
			historyPath := filepath.Join(home, "Library", "Application Support", "Google", "Chrome", profile, "History")
			if _, statErr := os.Stat(historyPath); statErr != nil {
				fmt.Fprintf(os.Stdout, "[WARN] chrome profile %q has no History file (profile contributes zero visits)\n", profile)
			} else {
				fmt.Fprintf(os.Stdout, "[ OK ] chrome profile %q History file found\n", profile)
			}
		}
	}

	fmt.Fprintln(os.Stdout)
	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	fmt.Fprintf(os.Stdout, "All checks passed.\n")
	return nil
}
