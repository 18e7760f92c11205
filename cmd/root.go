package cmd

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ftl/dcf39/config"
	"github.com/ftl/dcf39/feed"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/relay"
	"github.com/ftl/dcf39/rx"
	"github.com/ftl/dcf39/scope"
	"github.com/ftl/dcf39/telnet"
	"github.com/ftl/dcf39/trace"
)

var (
	version   string = "develop"
	gitCommit string = "-"
	buildTime string = "-"
)

var rootFlags = struct {
	pprof            bool
	debug            bool
	config           string
	traceContext     string
	traceDestination string
	scope            bool
	scopeAddress     string
	telnet           string
	websocket        string
	serial           string
	serialBaud       int
	silencePeriod    time.Duration
}{}

var rootCmd = &cobra.Command{
	Use:   "dcf39",
	Short: "DCF39 - decode the FSK telegrams of the DCF39 time and control service",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootFlags.pprof, "pprof", false, "enable pprof")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootFlags.config, "config", "", "read the configuration from the given YAML file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.traceContext, "trace", "", "demod | decode")
	rootCmd.PersistentFlags().StringVar(&rootFlags.traceDestination, "trace_to", "", "<filename> | udp://<host:port>")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.scope, "scope", false, "enable the scope server for insights into the inner workings")
	rootCmd.PersistentFlags().StringVar(&rootFlags.scopeAddress, "scope-address", config.DefaultScopeAddress, "listening address for the scope server")
	rootCmd.PersistentFlags().StringVar(&rootFlags.telnet, "telnet", "", "announce telegrams to telnet clients on the given address")
	rootCmd.PersistentFlags().StringVar(&rootFlags.websocket, "websocket", "", "feed telegrams to websocket clients on the given address")
	rootCmd.PersistentFlags().StringVar(&rootFlags.serial, "serial", "", "relay telegrams to the given serial port")
	rootCmd.PersistentFlags().IntVar(&rootFlags.serialBaud, "serial-baud", config.DefaultSerialBaud, "baud rate of the serial port")
	rootCmd.PersistentFlags().DurationVar(&rootFlags.silencePeriod, "silence", config.DefaultSilencePeriod, "do not announce the same telegram again via telnet within this period")

	rootCmd.PersistentFlags().MarkHidden("pprof")
	rootCmd.PersistentFlags().MarkHidden("scope")
	rootCmd.PersistentFlags().MarkHidden("scope-address")
}

// environment holds the outputs that are shared by all commands.
type environment struct {
	config   config.Config
	scope    scope.Scope
	reporter rx.MultiReporter
}

// tracer creates a new tracer as configured. The receiver using the tracer starts and stops it.
func (e *environment) tracer() trace.Tracer {
	return trace.New(e.config.Trace.Context, e.config.Trace.Destination)
}

func runWithCtx(f func(ctx context.Context, env *environment, cmd *cobra.Command, args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		log.SetReportTimestamp(true)
		if rootFlags.debug {
			log.SetLevel(log.DebugLevel)
		}

		log.Infof("DCF39 Version %s", formatVersion())

		if rootFlags.pprof {
			go func() {
				log.Infof("starting pprof on http://localhost:6060/debug/pprof")
				log.Info(http.ListenAndServe("localhost:6060", nil))
			}()
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Fatal(err)
		}

		env, shutdown := setupEnvironment(cfg)
		defer shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go handleCancelation(signals, cancel)

		f(ctx, env, cmd, args)
	}
}

// loadConfig reads the configuration file and applies the explicitly set command line flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	result, err := config.Load(rootFlags.config)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("trace") {
		result.Trace.Context = rootFlags.traceContext
	}
	if flags.Changed("trace_to") {
		result.Trace.Destination = rootFlags.traceDestination
	}
	if flags.Changed("scope") {
		result.Scope.Enabled = rootFlags.scope
	}
	if flags.Changed("scope-address") {
		result.Scope.Address = rootFlags.scopeAddress
	}
	if flags.Changed("telnet") {
		result.Outputs.Telnet = rootFlags.telnet
	}
	if flags.Changed("websocket") {
		result.Outputs.Websocket = rootFlags.websocket
	}
	if flags.Changed("serial") {
		result.Outputs.Serial = rootFlags.serial
	}
	if flags.Changed("serial-baud") {
		result.Outputs.SerialBaud = rootFlags.serialBaud
	}
	if flags.Changed("silence") {
		result.Outputs.SilencePeriod = rootFlags.silencePeriod
	}
	return result, nil
}

func setupEnvironment(cfg config.Config) (*environment, func()) {
	result := &environment{
		config: cfg,
		scope:  scope.NewNullScope(),
	}
	var shutdown []func()

	if cfg.Scope.Enabled {
		scopeServer := scope.NewScopeServer(cfg.Scope.Address)
		err := scopeServer.Start()
		if err != nil {
			log.Fatalf("cannot start scope server: %v", err)
		}
		result.scope = scopeServer
		shutdown = append(shutdown, scopeServer.Stop)
	}

	if cfg.Outputs.Telnet != "" {
		telnetServer, err := telnet.NewServer(cfg.Outputs.Telnet, formatVersion())
		if err != nil {
			log.Fatalf("cannot start telnet server: %v", err)
		}
		telnetServer.SetSilencePeriod(cfg.Outputs.SilencePeriod)
		log.Infof("announcing telegrams via telnet on %s", telnetServer.Addr())
		result.reporter = append(result.reporter, telnetServer)
		shutdown = append(shutdown, telnetServer.Stop)
	}

	if cfg.Outputs.Websocket != "" {
		hub, err := feed.NewHub(formatVersion(), fsk.SampleRate)
		if err != nil {
			log.Fatalf("cannot start websocket feed: %v", err)
		}
		feedServer := feed.ListenAndServe(cfg.Outputs.Websocket, hub)
		result.reporter = append(result.reporter, feedServer)
		shutdown = append(shutdown, feedServer.Stop)
	}

	if cfg.Outputs.Serial != "" {
		serialRelay, err := relay.Open(cfg.Outputs.Serial, cfg.Outputs.SerialBaud)
		if err != nil {
			log.Fatal(err)
		}
		result.reporter = append(result.reporter, serialRelay)
		shutdown = append(shutdown, func() {
			if err := serialRelay.Close(); err != nil {
				log.Errorf("cannot close serial port: %v", err)
			}
		})
	}

	return result, func() {
		for i := len(shutdown) - 1; i >= 0; i-- {
			shutdown[i]()
		}
	}
}

func formatVersion() string {
	if gitCommit == "-" && buildTime == "-" {
		return version
	}
	return fmt.Sprintf("%s_%s_%s", version, gitCommit, buildTime)
}

func handleCancelation(signals <-chan os.Signal, cancel context.CancelFunc) {
	count := 0
	for range signals {
		count++
		if count == 1 {
			cancel()
		} else {
			log.Fatal("hard shutdown")
		}
	}
}
