package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/semmidev/keepsake/internal/app"
	"github.com/semmidev/keepsake/internal/config"
	"github.com/semmidev/keepsake/internal/domain"
	"github.com/semmidev/keepsake/internal/infrastructure/logger"
	"github.com/semmidev/keepsake/internal/usecase"
)

// SourceCLI marks records of backups created from the command line.
const SourceCLI = "cli"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "keepsake",
		Short:        "Compressed JSON backups with restore, retention and schedules",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("KEEPSAKE_CONFIG"), "path to config file")

	root.AddCommand(
		newServeCmd(opts),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newListCmd(opts),
		newDeleteCmd(opts),
		newCleanupCmd(opts),
		newDriveAuthCmd(opts),
	)
	return root
}

// oneShot builds an application for a single command. Logs go to stderr so
// stdout carries only results.
func (o *rootOptions) oneShot(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	application, err := app.New(cfg, app.WithConsole(cmd.ErrOrStderr()), app.WithoutNotifier())
	if err != nil {
		return nil, fmt.Errorf("initialize app: %w", err)
	}
	return application, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer application.Shutdown()

			return application.Run(cmd.Context())
		},
	}
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [file|-]",
		Short: "Back up a JSON document read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			data, err := readPayload(in)
			if err != nil {
				return err
			}

			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			_, name, err := application.Service().Backup(cmd.Context(), SourceCLI, data)
			if name != "" {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return err
		},
	}
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	var printData bool

	cmd := &cobra.Command{
		Use:   "restore NAME",
		Short: "Restore an artifact into the restore directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			restored, data, err := application.Service().Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !printData {
				fmt.Fprintln(cmd.OutOrStdout(), restored)
				return nil
			}

			out, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&printData, "print", "p", false, "print the restored document instead of its file name")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "list [FILTER]",
		Short: "List artifacts whose name contains FILTER",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}

			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			if !long {
				names, err := application.Service().List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			artifacts, err := application.Service().Artifacts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeArtifacts(cmd.OutOrStdout(), artifacts)
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size and creation time")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			return application.Service().Delete(cmd.Context(), args[0])
		},
	}
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Apply the retention policy once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			return application.Cleanup(cmd.Context())
		},
	}
}

func newDriveAuthCmd(opts *rootOptions) *cobra.Command {
	var (
		clientSecret string
		addr         string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "drive-auth",
		Short: "Obtain a Google Drive refresh token for gdrive sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if clientSecret == "" {
				clientSecret = cfg.Sources.GDrive.ClientSecretFile
			}

			log, err := logger.New(logger.Options{
				Name:    cfg.App.Name,
				Level:   cfg.App.LogLevel,
				Console: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			defer log.Close()

			auth, err := app.NewDriveAuth(log, clientSecret)
			if err != nil {
				return err
			}
			auth.Start(addr)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = auth.Shutdown(ctx)
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "Open http://localhost%s/auth/google/drive to authorize read access to Drive\n", addr)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			token, err := auth.Wait(ctx)
			if err != nil {
				return fmt.Errorf("no refresh token received: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Set sources.gdrive.refresh_token (or KEEPSAKE_SOURCES_GDRIVE_REFRESH_TOKEN) to:\n")
			fmt.Fprintln(cmd.OutOrStdout(), token.RefreshToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret JSON (defaults to sources.gdrive.client_secret_file)")
	cmd.Flags().StringVar(&addr, "addr", ":8085", "address of the local callback server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the authorization")
	return cmd
}

// readPayload decodes one JSON document, keeping numbers as written.
func readPayload(r io.Reader) (any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("payload is empty")
	}

	var data any
	if err := usecase.DecodeJSON(bytes.NewReader(raw), &data); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return data, nil
}

func writeArtifacts(w io.Writer, artifacts []domain.Artifact) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tCREATED")
	for _, a := range artifacts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", a.Name, a.Size, a.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
