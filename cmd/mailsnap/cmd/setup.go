package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for first-run configuration",
	Long: `Interactive setup wizard to configure mailsnap for first use.

This command asks for the snapshot manifest endpoint of your mail server,
whether to cache fetched snapshots locally, and an optional API key for
'mailsnap serve', then writes config.toml.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	manifestURL := cfg.Snapshot.ManifestURL
	cacheEnabled := !cfg.Cache.Disabled
	apiKey := cfg.Server.APIKey

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot manifest URL").
				Description("The manifest endpoint published by your mail server.").
				Placeholder("https://mail.example.com/snapshots/manifest.json").
				Validate(validateManifestURL).
				Value(&manifestURL),
			huh.NewConfirm().
				Title("Cache fetched snapshots locally?").
				Description("A cache hit skips the network on the next run.").
				Value(&cacheEnabled),
			huh.NewInput().
				Title("API key for 'mailsnap serve' (optional)").
				Description("Leave empty to serve without authentication on localhost.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	cfg.Snapshot.ManifestURL = strings.TrimSpace(manifestURL)
	cfg.Cache.Disabled = !cacheEnabled
	cfg.Server.APIKey = apiKey

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n", cfg.ConfigFilePath())

	fmt.Println()
	fmt.Println("Setup complete! Next steps:")
	fmt.Println()
	fmt.Println("  1. Fetch the current snapshot:")
	fmt.Println("     mailsnap fetch")
	fmt.Println()
	fmt.Println("  2. Browse it:")
	fmt.Println("     mailsnap tui")
	fmt.Println()
	fmt.Println("For more help: mailsnap --help")

	return nil
}

func validateManifestURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
