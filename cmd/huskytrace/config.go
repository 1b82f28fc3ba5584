package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdxmph/huskytrace/pkg/config"
	"github.com/pdxmph/huskytrace/pkg/templates"
)

func configShowCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration (%s):\n", config.Path())
	fmt.Fprintf(out, "  API URL: %s\n", cfg.APIURL)
	fmt.Fprintf(out, "  Timeout: %s\n", cfg.Timeout)
	fmt.Fprintf(out, "  Format: %s\n", cfg.Default.Format)
	fmt.Fprintf(out, "  Preview: %t\n", cfg.IsPreviewEnabled())

	fmt.Fprintf(out, "\n  Store:\n")
	fmt.Fprintf(out, "    Backend: %s\n", cfg.Store.Backend)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		fmt.Fprintf(out, "    Path: %s\n", cfg.Store.Path)
	case config.BackendRedis:
		fmt.Fprintf(out, "    Redis: %s (db %d)\n", orNotSet(cfg.Store.RedisAddr), cfg.Store.RedisDB)
	}
	fmt.Fprintf(out, "    Session TTL: %s\n", cfg.Store.TTL)

	fmt.Fprintf(out, "\n  Templates:\n")
	names := make([]string, 0, len(cfg.Templates))
	for name := range cfg.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// Truncate long templates for display
		display := cfg.Templates[name]
		if len(display) > 60 {
			display = display[:57] + "..."
		}
		fmt.Fprintf(out, "    %s: %s\n", name, display)
	}

	vars := templates.Names()
	for i, name := range vars {
		vars[i] = "%" + name + "%"
	}
	fmt.Fprintf(out, "\n  Template variables: %s\n", strings.Join(vars, " "))

	return nil
}

func configSetCommand(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	// The file alone, so environment overrides are not written back
	cfg, err := config.LoadFrom(config.Path())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)
	return nil
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
