package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"FundLetter/internal/config"
	"FundLetter/internal/report"
	"FundLetter/internal/scheduler"
)

// testFlagDefault marks a bare --test; the configured test recipient is used.
const testFlagDefault = "default"

func newRootCmd() *cobra.Command {
	var cfgFlag string
	var debug bool
	var testAddr string

	rootCmd := &cobra.Command{
		Use:   "fundletter",
		Short: "FundLetter - weekly fund holdings newsletter",
		Long: `FundLetter analyzes every holding of a thematic fund, publishes the results
as an HTML newsletter and mails it to the subscriber list every week.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgFlag, debug)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cmd.Flags().Changed("test") {
				addr := testAddr
				if addr == testFlagDefault {
					addr = a.cfg.Distribution.TestRecipient
				}
				return runTest(ctx, a, addr)
			}
			return runScheduled(ctx, a)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFlag, "config", "", "Configuration file path (default "+defaultConfigPath+" or $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&testAddr, "test", "", "Run once and send only to this address (configured test recipient if no value)")
	rootCmd.Flags().Lookup("test").NoOptDefVal = testFlagDefault

	rootCmd.AddCommand(newReportCmd(&cfgFlag, &debug))
	rootCmd.AddCommand(newConfigCmd(&cfgFlag))
	return rootCmd
}

func runTest(ctx context.Context, a *app, addr string) error {
	if addr == "" {
		return errors.New("no test recipient: pass --test=ADDR or set TEST_RECIPIENT")
	}
	a.logger.Info().Str("recipient", addr).Msg("test mode, sending a single report")
	_, err := a.pipeline(ctx).Run(ctx, scheduler.TriggerTest, addr)
	return err
}

func runScheduled(ctx context.Context, a *app) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	sched := scheduler.NewScheduler(ctx, a.pipeline(ctx), loc, a.cfg.Schedule.MisfireGrace, a.logger)
	if err := sched.RegisterWeekly(a.cfg.Schedule.WeeklyCron); err != nil {
		return err
	}

	// a failed startup run ends the process so the supervisor restarts it
	if err := sched.RunNow(scheduler.TriggerStartup, ""); err != nil {
		return err
	}

	sched.Start()
	a.logger.Info().Msg("FundLetter is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	a.logger.Info().Msg("shutdown signal received, stopping...")
	sched.Stop()
	return nil
}

func newReportCmd(cfgFlag *string, debug *bool) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render or send the report from the current fund state",
	}

	var out string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Render the report to an HTML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgFlag, *debug)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			html, _, err := a.distributor().Render(a.trends(ctx).Fetch(ctx), time.Now())
			if err != nil {
				return err
			}
			if out == "" {
				out = a.cfg.Report.OutputFile
			}
			if err := report.WriteFile(out, html); err != nil {
				return err
			}
			a.logger.Info().Str("path", out).Msg("report written")

			ov, err := a.overview()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d holdings analyzed (buy %d, sell %d, hold %d)\n",
				out, ov.Successful, ov.Total, ov.Actions.Buy, ov.Actions.Sell, ov.Actions.Hold)
			return nil
		},
	}
	generate.Flags().StringVar(&out, "out", "", "Output file (default report.output_file)")

	send := &cobra.Command{
		Use:   "send ADDR...",
		Short: "Render the report and mail it to the given addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgFlag, *debug)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sum, err := a.distributor().Distribute(ctx, args, a.trends(ctx).Fetch(ctx))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d/%d\n", sum.Sent, sum.Recipients)
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d sends failed", sum.Failed, sum.Recipients)
			}
			return nil
		},
	}

	reportCmd.AddCommand(generate, send)
	return reportCmd
}

func newConfigCmd(cfgFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that every required setting is present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(*cfgFlag))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if _, err := cfg.Location(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	})
	return configCmd
}
