package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/ChallengeWizard/internal/aiclient"
	"github.com/AaronLay10/ChallengeWizard/internal/api"
	"github.com/AaronLay10/ChallengeWizard/internal/channel"
	"github.com/AaronLay10/ChallengeWizard/internal/config"
	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/launch"
	"github.com/AaronLay10/ChallengeWizard/internal/logging"
	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
	"github.com/AaronLay10/ChallengeWizard/internal/mqtt"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
	"github.com/AaronLay10/ChallengeWizard/internal/storage/postgres"
	"github.com/AaronLay10/ChallengeWizard/internal/version"
	"github.com/AaronLay10/ChallengeWizard/internal/wizard"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "wizard",
		Short: "AI-assisted challenge configuration wizard",
		Long: `wizard walks through the nine steps of configuring an innovation
challenge. The first step is a conversation with the AI service that scopes
the problem; later steps are pre-filled from AI recommendations.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to wizard.yaml (defaults are used when empty)")
	flags.String("api-url", "", "AI service base URL")
	flags.String("ws-url", "", "conversation channel base URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	for _, name := range []string{"config", "api-url", "ws-url", "log-level"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	v.SetEnvPrefix("WIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(newRunCmd(v), newStepsCmd(), newVersionCmd())
	return root
}

// loadConfig reads the file named by --config, applies the environment and
// finally any flags that were set explicitly.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if s := v.GetString("api-url"); s != "" {
		cfg.API.BaseURL = s
	}
	if s := v.GetString("ws-url"); s != "" {
		cfg.Channel.BaseURL = s
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.Log.Level = s
	}
	return cfg, nil
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive wizard session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if v.GetBool("monitor") {
				cfg.Monitor.Enabled = true
			}
			if p := v.GetInt("monitor-port"); p != 0 {
				cfg.Monitor.Port = p
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Bool("monitor", false, "serve the monitor API")
	cmd.Flags().Int("monitor-port", 0, "monitor API port")
	_ = v.BindPFlag("monitor", cmd.Flags().Lookup("monitor"))
	_ = v.BindPFlag("monitor-port", cmd.Flags().Lookup("monitor-port"))
	return cmd
}

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the wizard steps and their guidance",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for i, def := range steps.Catalogue() {
				fmt.Fprintf(out, "%d. %s (%s)\n   %s\n", i+1, def.Title, def.ID, def.Description)
				if h, ok := steps.HelpFor(def.ID); ok {
					for _, tip := range h.Tips {
						fmt.Fprintf(out, "   - %s\n", tip)
					}
				}
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}

// run wires the wizard and its side services and supervises the monitor
// server and the terminal loop until either ends.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	host, _ := os.Hostname()
	events.Emit("info", "system.startup", "wizard starting", map[string]interface{}{
		"service":  "wizard",
		"version":  version.Version,
		"hostname": host,
		"pid":      os.Getpid(),
	})

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	monitorOpts := []api.Option{api.WithLogger(logger.Named("monitor")), api.WithGatherer(reg)}

	var sinks []launch.Sink
	if cfg.Postgres.Enabled {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := postgres.New(pgCtx, cfg.Postgres.Config)
		cancel()
		if err != nil {
			return err
		}
		defer pg.Close()
		events.SetSink(pg)
		defer events.SetSink(nil)
		sinks = append(sinks, launch.PostgresSink{Store: pg})
		monitorOpts = append(monitorOpts,
			api.WithChallenges(pg),
			api.WithCheck("postgres", pg.Ping))
		logger.Info("postgres connected", zap.String("database", cfg.Postgres.Database))
	}
	if cfg.MQTT.Enabled {
		mc := mqtt.NewClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger.Named("mqtt"))
		if err := mc.Connect(); err != nil {
			logger.Warn("mqtt connect failed, launches will not be announced", zap.String("broker", mc.Broker()), zap.Error(err))
		} else {
			defer mc.Disconnect()
		}
		sinks = append(sinks, launch.MQTTSink{Client: mc, Prefix: cfg.MQTT.TopicPrefix})
		monitorOpts = append(monitorOpts, api.WithCheck("mqtt", func(context.Context) error {
			if !mc.IsConnected() {
				return fmt.Errorf("not connected to %s", mc.Broker())
			}
			return nil
		}))
	}

	con := newConsole(out)
	ai := aiclient.New(cfg.API.BaseURL,
		aiclient.WithTimeout(cfg.API.Timeout),
		aiclient.WithToken(cfg.API.Token))
	w := wizard.New(ai,
		wizard.WithLogger(logger.Named("wizard")),
		wizard.WithRecorder(rec),
		wizard.WithNotifier(con),
		wizard.WithValidationDelay(cfg.Wizard.ValidationDebounce),
		wizard.WithLauncher(launch.New(sinks,
			launch.WithLogger(logger.Named("launch")),
			launch.WithRecorder(rec))),
		wizard.WithDialer(wizard.ChannelDialer(cfg.Channel.BaseURL,
			channel.WithLogger(logger.Named("channel")),
			channel.WithBearerToken(cfg.API.Token))),
	)
	if err := w.Open(ctx); err != nil {
		return err
	}
	defer w.Close()
	monitorOpts = append(monitorOpts, api.WithState(w))

	if u, p := monitorCredentials(logger); u != "" {
		monitorOpts = append(monitorOpts, api.WithBasicAuth(u, p))
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Monitor.Enabled {
		srv := api.New(monitorOpts...)
		g.Go(func() error {
			return srv.Run(gctx, ":"+strconv.Itoa(cfg.Monitor.Port))
		})
	}
	sh := newShell(w, con)
	g.Go(func() error {
		err := sh.run(gctx, in)
		// Leaving the terminal ends the session and its monitor.
		if err == nil {
			err = errQuit
		}
		return err
	})

	err = g.Wait()
	events.Emit("info", "system.shutdown", "wizard stopping", map[string]interface{}{
		"session_id": w.SessionID(),
	})
	if errors.Is(err, errQuit) || ctx.Err() != nil {
		return nil
	}
	return err
}

func monitorCredentials(logger *zap.Logger) (string, string) {
	user, err := config.ResolveSecret("WIZARD_MONITOR_USER")
	if err != nil {
		logger.Warn("monitor user unavailable", zap.Error(err))
		return "", ""
	}
	pass, err := config.ResolveSecret("WIZARD_MONITOR_PASS")
	if err != nil {
		logger.Warn("monitor password unavailable", zap.Error(err))
		return "", ""
	}
	return user, pass
}
