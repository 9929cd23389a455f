package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"libstor/internal/app"
	"libstor/internal/config"
	"libstor/internal/libstor"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a LibApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Scan", "ApplyDiff").
func newApp(cmd *cobra.Command, operation string, opts app.Options) (*app.LibApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts.Operation = operation
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	if opts.Root == "" {
		opts.Root, _ = cmd.Flags().GetString("path")
	}
	if opts.DBPath == "" && cmd.Flags().Lookup("db") != nil {
		opts.DBPath, _ = cmd.Flags().GetString("db")
	}

	a, err := app.NewLibApp(cmd.Context(), cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "libstor",
	Short:         "Track a file library by content and keep copies in sync",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Host ID:     %s\n", cfg.HostID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Batch Size:  %d\n", cfg.Scan.BatchSize)
		fmt.Printf("Ignore:      %v\n", cfg.Scan.Ignore)
		fmt.Printf("Structure:   %s (page size %d)\n", cfg.Structure.Format, cfg.Structure.PageSize)
		fmt.Printf("Compression: %s\n", cfg.Diff.Compression)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		if cfg.Tracing.Endpoint != "" {
			fmt.Printf("Tracing:     %s (%s)\n", cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the diff encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair for encrypted diffs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pw, err := readNewPassphrase()
		if err != nil {
			return err
		}
		recipient, err := app.SetupKeys(cfg, pw)
		if err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		fmt.Printf("Recipient:   %s\n", recipient)
		if cfg.Encryption.Type != "age" {
			fmt.Println(`Set [encryption] type = "age" to encrypt diff packages.`)
		}
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a library and export its snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		roleName, _ := cmd.Flags().GetString("role")
		role, err := libstor.ParseRole(roleName)
		if err != nil {
			return err
		}
		structDir, _ := cmd.Flags().GetString("struct")

		a, err := newApp(cmd, "Scan", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		sinks := newSinks(cmd)
		res, err := a.Scan(cmd.Context(), role, sinks)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		printEntries(res.Entries)

		n, err := a.Export(cmd.Context(), structDir, sinks.Progress)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		printScanSummary(res)
		fmt.Printf("Exported %d record(s) to %s\n", n, structDir)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the snapshot of a library without scanning",
	RunE: func(cmd *cobra.Command, args []string) error {
		structDir, _ := cmd.Flags().GetString("struct")

		a, err := newApp(cmd, "Export", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Export(cmd.Context(), structDir, newSinks(cmd).Progress)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported %d record(s) to %s\n", n, structDir)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a snapshot into a store",
	RunE: func(cmd *cobra.Command, args []string) error {
		structDir, _ := cmd.Flags().GetString("struct")

		a, err := newApp(cmd, "Import", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Import(cmd.Context(), structDir, newSinks(cmd).Progress)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d record(s) into %s\n", n, a.StorePath())
		return nil
	},
}

// makediff command
var makediffCmd = &cobra.Command{
	Use:   "makediff",
	Short: "Package the changes of a copy against the snapshot of its original",
	RunE: func(cmd *cobra.Command, args []string) error {
		structDir, _ := cmd.Flags().GetString("struct")
		diffPath, _ := cmd.Flags().GetString("diff")
		dbPath, _ := cmd.Flags().GetString("db")

		a, err := newApp(cmd, "MakeDiff", app.Options{Scratch: dbPath == ""})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.MakeDiff(cmd.Context(), structDir, diffPath, newSinks(cmd))
		if err != nil {
			return fmt.Errorf("makediff failed: %w", err)
		}
		printEntries(res.Entries)
		printScanSummary(res)
		fmt.Printf("Wrote %s\n", diffPath)
		return nil
	},
}

// applydiff command
var applydiffCmd = &cobra.Command{
	Use:   "applydiff",
	Short: "Apply a diff package to the original library",
	RunE: func(cmd *cobra.Command, args []string) error {
		diffPath, _ := cmd.Flags().GetString("diff")

		a, err := newApp(cmd, "ApplyDiff", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ApplyDiff(cmd.Context(), diffPath, readPassphrase, newSinks(cmd))
		if err != nil {
			return fmt.Errorf("applydiff failed: %w", err)
		}
		fmt.Printf("Applied %d entr(ies), %d conflict(s), %d error(s)\n",
			res.Applied, len(res.Conflicts), len(res.Errors))
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what changed in a library since its last scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Status", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Scan(cmd.Context(), libstor.RoleOriginal, newSinks(cmd))
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if !res.HasChanges() {
			fmt.Println("No changes.")
		}
		printEntries(res.Entries)
		printScanSummary(res)

		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Store: %s\n", a.StorePath())
		fmt.Printf("Active: %d  Pending: %d  Deleted: %d  Tags: %d\n",
			st.Active, st.Pending, st.Deleted, st.Tags)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history of a library",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetHistory", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if !op.FinishedAt.IsZero() {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-10s  %5d %4d %4d  %s\n",
				op.ID,
				op.Name,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				op.Scanned,
				op.Duplicates,
				op.Errors,
				duration,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every file")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	scanCmd.Flags().StringP("path", "p", "", "Library root")
	scanCmd.Flags().StringP("struct", "s", "", "Snapshot directory")
	scanCmd.Flags().String("role", string(libstor.RoleOriginal), "original or copy")
	scanCmd.Flags().String("db", "", "Store file (default derived from the root)")
	scanCmd.MarkFlagRequired("path")
	scanCmd.MarkFlagRequired("struct")

	exportCmd.Flags().StringP("path", "p", "", "Library root")
	exportCmd.Flags().StringP("struct", "s", "", "Snapshot directory")
	exportCmd.Flags().String("db", "", "Store file (default derived from the root)")
	exportCmd.MarkFlagRequired("struct")

	importCmd.Flags().StringP("path", "p", "", "Library root the store belongs to")
	importCmd.Flags().StringP("struct", "s", "", "Snapshot directory")
	importCmd.Flags().String("db", "", "Store file (default derived from the root)")
	importCmd.MarkFlagRequired("struct")

	makediffCmd.Flags().StringP("path", "p", "", "Root of the copy")
	makediffCmd.Flags().StringP("struct", "s", "", "Snapshot of the original")
	makediffCmd.Flags().StringP("diff", "d", "", "Diff package to write")
	makediffCmd.Flags().String("db", "", "Keep the copy's store in this file instead of memory")
	makediffCmd.MarkFlagRequired("path")
	makediffCmd.MarkFlagRequired("struct")
	makediffCmd.MarkFlagRequired("diff")

	applydiffCmd.Flags().StringP("path", "p", "", "Root of the original")
	applydiffCmd.Flags().StringP("diff", "d", "", "Diff package to apply")
	applydiffCmd.Flags().String("db", "", "Store file (default derived from the root)")
	applydiffCmd.MarkFlagRequired("path")
	applydiffCmd.MarkFlagRequired("diff")

	statusCmd.Flags().StringP("path", "p", "", "Library root")
	statusCmd.Flags().String("db", "", "Store file (default derived from the root)")
	statusCmd.MarkFlagRequired("path")

	historyCmd.Flags().StringP("path", "p", "", "Library root")
	historyCmd.Flags().String("db", "", "Store file (default derived from the root)")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(makediffCmd)
	rootCmd.AddCommand(applydiffCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tagCmd)
}
