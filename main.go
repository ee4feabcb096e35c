package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"reqflow/internal/cmd"
	"reqflow/internal/config"
)

var version = "dev"

func main() {
	// Load settings from ~/.reqflow/settings.json
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load settings: %v\n", err)
		settings = &config.Settings{} // Use empty settings
	}

	// Parse CLI arguments with Kong
	// Container is created in CLI.AfterApply() after logging is initialized
	var cli cmd.CLI
	cli.SetSettings(settings) // Set settings before parsing
	ctx := kong.Parse(&cli,
		kong.Name("reqflow"),
		kong.Description("Human-in-the-loop requirement analysis and test case generation"),
		kong.Vars{
			"version": version,
		},
		kong.UsageOnError(),
		kong.Bind(&cli),
	)
	defer cli.Close()

	// Execute the selected command
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
