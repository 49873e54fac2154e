package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"mdsheet/engine/internal/appdirs"
	"mdsheet/engine/internal/envfile"
	"mdsheet/engine/internal/envutil"
	"mdsheet/engine/internal/export"
	"mdsheet/engine/internal/logging"
	"mdsheet/engine/internal/model"
	"mdsheet/engine/internal/settings"
)

func main() {
	root := &cobra.Command{
		Use:          "mdsheet-engine",
		Short:        "Markdown workbook engine",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), exportCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON-RPC engine over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func exportCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "export <input.md> <output.xlsx>",
		Short: "Export a markdown workbook to xlsx",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], args[1], configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML schema config file")
	return cmd
}

func runExport(inputPath, outputPath, configPath string) error {
	schema := model.DefaultSchema()
	if configPath != "" {
		loaded, err := settings.LoadSchemaFile(configPath)
		if err != nil {
			return fmt.Errorf("load schema config: %w", err)
		}
		schema = loaded
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	wb, err := model.ParseWorkbook(string(data), schema)
	if err != nil {
		return fmt.Errorf("parse workbook: %w", err)
	}
	if err := export.WriteXlsx(wb, outputPath); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", outputPath)
	return nil
}

// newLogger builds the file logger the serve loop uses; failures degrade to
// the discard logger so the engine still starts.
func newLogger() (logging.FileLogger, *settings.Store) {
	envResult := envfile.Load()
	debug := envutil.Bool("MDSHEET_DEBUG")
	dataDir, err := appdirs.DataDir()
	if err != nil {
		log.Printf("data dir unavailable: %v", err)
		return logging.FileLogger{Logger: logging.Nop()}, nil
	}
	store := settings.NewStore(dataDirSettingsPath(dataDir))
	if !debug {
		if loaded, err := store.Load(); err == nil && loaded.Debug {
			debug = true
		}
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, debug)
	if logSetup.Logger == nil {
		logSetup.Logger = logging.Nop()
	}
	logSetup.Logger = logSetup.Logger.With("component", "engine")
	if logSetup.Enabled {
		logSetup.Logger.Info("engine.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logSetup.Logger.Debug("engine.env_loaded", "path", envResult.Path, "keys", envResult.Keys)
	}
	if envResult.Err != nil {
		logSetup.Logger.Warn("engine.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logSetup.Logger.Warn("engine.log_setup_failed", "error", logErr.Error())
	}
	return logSetup, store
}
