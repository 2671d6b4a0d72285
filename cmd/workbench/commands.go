package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/workbench-core/internal/auth"
	"github.com/nerrad567/workbench-core/internal/infrastructure/config"
	"github.com/nerrad567/workbench-core/internal/infrastructure/database"
	"github.com/nerrad567/workbench-core/internal/infrastructure/logging"
	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
)

// accessTokenTTL converts the configured TTL (minutes) to a Duration.
func accessTokenTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
}

// withDatabase loads config, opens the database without migrating and
// calls fn. Used by offline commands.
func withDatabase(configPath string, fn func(*config.Config, *database.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return fn(cfg, db)
}

// ─── migrate ───────────────────────────────────────────────────────

func migrateCmd(cfgPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cfgPath(), func(_ *config.Config, db *database.DB) error {
					if err := db.Migrate(cmd.Context()); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cfgPath(), func(_ *config.Config, db *database.DB) error {
					if err := db.MigrateDown(cmd.Context()); err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cfgPath(), func(_ *config.Config, db *database.DB) error {
					applied, pending, err := db.GetMigrationStatus(cmd.Context())
					if err != nil {
						return fmt.Errorf("reading migration status: %w", err)
					}
					writeMigrationStatus(cmd.OutOrStdout(), applied, pending)
					return nil
				})
			},
		},
	)
	return cmd
}

func writeMigrationStatus(out io.Writer, applied []database.MigrationRecord, pending []database.Migration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT")
	for _, m := range applied {
		fmt.Fprintf(w, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
	}
}

// ─── printers ──────────────────────────────────────────────────────

func printersCmd(cfgPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "printers",
		Aliases: []string{"printer", "p"},
		Short:   "Inspect printers without starting the server",
	}
	cmd.AddCommand(printersListCmd(cfgPath), printersProbeCmd(cfgPath), printersDiscoverCmd(cfgPath))
	return cmd
}

func printersListCmd(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored printers, connected first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cfgPath(), func(_ *config.Config, db *database.DB) error {
				printers, err := printer.NewSQLiteRepository(db.DB).List(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing printers: %w", err)
				}
				writePrinters(cmd.OutOrStdout(), printers)
				return nil
			})
		},
	}
}

func writePrinters(out io.Writer, printers []printer.Printer) {
	if len(printers) == 0 {
		fmt.Fprintln(out, "No printers found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tPROTOCOL\tADDRESS\tCONNECTED\tLAST USED")
	for i := range printers {
		p := &printers[i]
		lastUsed := "-"
		if p.LastUsedAt != nil {
			lastUsed = p.LastUsedAt.Format(time.RFC3339)
		}
		connected := ""
		if p.IsConnected {
			connected = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Name, p.Protocol, p.Target().Normalize().String(), connected, lastUsed)
	}
}

func printersProbeCmd(cfgPath func() string) *cobra.Command {
	var fields printer.Fields
	var protocol string
	var path string
	var id string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe a stored printer (--id) or an ad-hoc target (--host)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (id == "") == (fields.Host == "") {
				return errors.New("exactly one of --id or --host is required")
			}
			fields.Protocol = probe.Protocol(protocol)
			if path != "" {
				fields.Path = &path
			}

			return withDatabase(cfgPath(), func(cfg *config.Config, db *database.DB) error {
				manager := newManager(cfg, db)
				var res probe.Result
				if id != "" {
					status, err := manager.StatusOf(cmd.Context(), id)
					if err != nil {
						return err
					}
					res = status.Probe
				} else {
					var err error
					if res, err = manager.Test(cmd.Context(), fields); err != nil {
						return err
					}
				}
				writeProbeResult(cmd.OutOrStdout(), res)
				if !res.OK {
					return printer.ErrUnreachable
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "stored printer ID")
	cmd.Flags().StringVar(&fields.Host, "host", "", "printer host or IP")
	cmd.Flags().StringVar(&protocol, "protocol", string(probe.ProtocolIPP), "ipp or raw9100")
	cmd.Flags().IntVar(&fields.Port, "port", 0, "port (default per protocol)")
	cmd.Flags().StringVar(&path, "path", "", "ipp status path")
	return cmd
}

func writeProbeResult(out io.Writer, res probe.Result) {
	state := "reachable"
	if !res.OK {
		state = "unreachable"
	}
	fmt.Fprintf(out, "%s via %s in %dms", state, res.Method, res.ElapsedMs)
	if res.Status != nil {
		fmt.Fprintf(out, " (HTTP %d)", *res.Status)
	}
	if res.URL != nil {
		fmt.Fprintf(out, " %s", *res.URL)
	}
	fmt.Fprintln(out)
}

func printersDiscoverCmd(cfgPath func() string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse mDNS for IPP and raw 9100 printers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if timeout > 0 {
				cfg.Discovery.BrowseTimeout = int(timeout.Round(time.Second) / time.Second)
			}

			log := logging.New(cfg.Logging, version)
			candidates, err := newDiscoverer(cfg, log).Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("discovering printers: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "No printers found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "NAME\tPROTOCOL\tHOST\tPORT\tPATH")
			for _, c := range candidates {
				p := "-"
				if c.Path != nil {
					p = *c.Path
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.Name, c.Protocol, c.Host, c.Port, p)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "browse window (default from config)")
	return cmd
}

// ─── hash-password ─────────────────────────────────────────────────

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its Argon2id hash",
		Long: `Reads one line from stdin and prints the PHC-encoded Argon2id hash to
use as security.admin.password_hash or WORKBENCH_ADMIN_PASSWORD_HASH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("password cannot be empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
