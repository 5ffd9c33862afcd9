package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"apptbook/internal/app"
	"apptbook/internal/booking"
	"apptbook/internal/config"
	appLog "apptbook/internal/log"
	"apptbook/internal/web"
)

const version = "0.1.0"

type rootFlags struct {
	configPath string
	envFile    string
	listen     string
	debug      bool
}

var flags rootFlags

var rootCmd = &cobra.Command{
	Use:           "apptbook",
	Short:         "Appointment booking against a shared calendar",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the booking HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		a.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.Close(ctx)
		}()
		return web.Run(cmd.Context(), a)
	},
}

var bookFlags struct {
	label string
	note  string
}

var bookCmd = &cobra.Command{
	Use:   "book DATE TIME",
	Short: `Book one slot, e.g. book 2024-07-15 "10:30 AM"`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		out := a.Pipeline.Book(cmd.Context(), booking.Request{
			Date:         args[0],
			Time:         args[1],
			ServiceLabel: bookFlags.label,
			FreeText:     bookFlags.note,
		})
		if err := printJSON(cmd, out); err != nil {
			return err
		}
		if !out.IsBooked() {
			return fmt.Errorf("not booked: %s", out.Reason)
		}
		return nil
	},
}

var slotsCmd = &cobra.Command{
	Use:   "slots DATE",
	Short: "List free slots within business hours",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		free, err := a.Slots(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		loc := a.Config.Location()
		for _, s := range free {
			fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", s.Start.In(loc).Format("15:04"), s.End.In(loc).Format("15:04"))
		}
		if len(free) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no free slots")
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "./config.yaml", "Path to config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Optional KEY=VALUE file with credentials")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	serveCmd.Flags().StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	bookCmd.Flags().StringVar(&bookFlags.label, "label", "", "Service label (defaults to config)")
	bookCmd.Flags().StringVar(&bookFlags.note, "note", "", "Free-text description stored on the event")

	rootCmd.AddCommand(serveCmd, bookCmd, slotsCmd)
	rootCmd.Version = version
}

// setup loads env and config, configures logging and builds the app.
func setup(ctx context.Context) (*app.App, error) {
	loaded, err := config.LoadDotEnv(flags.envFile)
	if err != nil {
		return nil, err
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetFormat(appLog.Format(conf.Log.Format))
	level := appLog.ParseLevel(conf.Log.Level)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	logEnvironment(conf, loaded)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"backend", conf.Backend,
		"service_duration", conf.ServiceDuration.String(),
		"max_event_duration", conf.MaxEventDuration.String(),
		"business_hours", conf.BusinessHours.Open+"-"+conf.BusinessHours.Close,
		"ics_sources", len(conf.ICS.Sources),
		"reminders", len(conf.Reminders),
	)

	return app.Build(ctx, conf)
}

// logEnvironment reports which credentials are present. Values are never logged.
func logEnvironment(conf *config.Config, envFileLoaded bool) {
	appLog.Debug("env file", "path", flags.envFile, "loaded", envFileLoaded)
	status := config.EnvStatus()
	kv := make([]any, 0, len(status)*2)
	for _, name := range append(config.CredentialVars, config.EnvGoogleCalendarID) {
		state := "missing"
		if status[name] {
			state = "set"
		}
		kv = append(kv, name, state)
	}
	appLog.Info("environment check", kv...)
	if conf.Backend == config.BackendGoogle {
		if missing := config.MissingCredentials(); len(missing) > 0 {
			appLog.Warn("missing environment variables", "vars", missing)
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	appLog.Info("apptbook starting", "version", version)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("apptbook failed", err)
		cancel()
		os.Exit(1)
	}
	appLog.Info("apptbook exiting")
}
