package main

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spokewise/spokewise-go/broker"
	"github.com/spokewise/spokewise-go/internal/version"
	"github.com/spokewise/spokewise-go/observability"
	"github.com/spokewise/spokewise-go/observability/prom"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// envConfig is the environment surface of the broker daemon. Flags override
// whatever the environment provides.
type envConfig struct {
	Listen        string `env:"SPOKEWISE_LISTEN" envDefault:":7070"`
	MetricsListen string `env:"SPOKEWISE_METRICS_LISTEN"`
	TLSCertFile   string `env:"SPOKEWISE_TLS_CERT_FILE"`
	TLSKeyFile    string `env:"SPOKEWISE_TLS_KEY_FILE"`

	SendAcks             bool `env:"SPOKEWISE_SEND_ACKS" envDefault:"false"`
	SendServerJoinEvents bool `env:"SPOKEWISE_SEND_SERVER_JOIN_EVENTS" envDefault:"false"`
	SendChannelEvents    bool `env:"SPOKEWISE_SEND_CHANNEL_EVENTS" envDefault:"false"`

	HeartbeatInterval    time.Duration `env:"SPOKEWISE_HEARTBEAT_INTERVAL" envDefault:"30s"`
	MaxHeartbeatFailures int           `env:"SPOKEWISE_MAX_HEARTBEAT_FAILURES" envDefault:"5"`
	MaxFrameBytes        int           `env:"SPOKEWISE_MAX_FRAME_BYTES" envDefault:"1048576"`
	MaxConns             int           `env:"SPOKEWISE_MAX_CONNS" envDefault:"10000"`
	AcceptRatePerSec     float64       `env:"SPOKEWISE_ACCEPT_RATE" envDefault:"0"`
	AcceptBurst          int           `env:"SPOKEWISE_ACCEPT_BURST" envDefault:"32"`

	LogLevel string `env:"SPOKEWISE_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"SPOKEWISE_LOG_JSON" envDefault:"false"`
}

type switchHandler struct {
	mu      sync.RWMutex
	handler http.Handler
}

func newSwitchHandler() *switchHandler {
	return &switchHandler{handler: http.NotFoundHandler()}
}

func (h *switchHandler) Set(next http.Handler) {
	if next == nil {
		next = http.NotFoundHandler()
	}
	h.mu.Lock()
	h.handler = next
	h.mu.Unlock()
}

func (h *switchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	handler.ServeHTTP(w, r)
}

// metricsController wires the Prometheus exporter in and out at runtime.
type metricsController struct {
	mu       sync.Mutex
	enabled  bool
	handler  *switchHandler
	observer *observability.AtomicBrokerObserver
	srv      *broker.Server
}

func newMetricsController(handler *switchHandler, observer *observability.AtomicBrokerObserver, srv *broker.Server) *metricsController {
	return &metricsController{handler: handler, observer: observer, srv: srv}
}

func (c *metricsController) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		return
	}
	reg := prom.NewRegistry()
	brokerObs := prom.NewBrokerObserver(reg)
	c.handler.Set(prom.Handler(reg))
	c.observer.Set(brokerObs)
	stats := c.srv.Stats()
	brokerObs.ConnCount(stats.ConnCount)
	brokerObs.ChannelCount(stats.ChannelCount)
	c.enabled = true
}

func (c *metricsController) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.handler.Set(nil)
	c.observer.Set(observability.NoopBrokerObserver)
	c.enabled = false
}

func validateTLSFiles(certFile string, keyFile string) error {
	if certFile == "" && keyFile == "" {
		return nil
	}
	if certFile == "" || keyFile == "" {
		return errors.New("tls requires both --tls-cert-file and --tls-key-file")
	}
	return nil
}

func newLogger(w io.Writer, level string, json bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	out := w
	if !json {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	// A .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		fmt.Fprintf(stderr, "invalid environment: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("spokewise-broker", flag.ContinueOnError)
	fs.SetOutput(stderr)

	showVersion := false
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&ec.Listen, "listen", ec.Listen, "broker listen address (env: SPOKEWISE_LISTEN)")
	fs.StringVar(&ec.MetricsListen, "metrics-listen", ec.MetricsListen, "listen address for metrics server (empty disables) (env: SPOKEWISE_METRICS_LISTEN)")
	fs.StringVar(&ec.TLSCertFile, "tls-cert-file", ec.TLSCertFile, "enable TLS with the given certificate file (env: SPOKEWISE_TLS_CERT_FILE)")
	fs.StringVar(&ec.TLSKeyFile, "tls-key-file", ec.TLSKeyFile, "enable TLS with the given private key file (env: SPOKEWISE_TLS_KEY_FILE)")
	fs.BoolVar(&ec.SendAcks, "send-acks", ec.SendAcks, "acknowledge relayed async messages (env: SPOKEWISE_SEND_ACKS)")
	fs.BoolVar(&ec.SendServerJoinEvents, "send-server-join-events", ec.SendServerJoinEvents, "notify clients about peers joining/leaving the server (env: SPOKEWISE_SEND_SERVER_JOIN_EVENTS)")
	fs.BoolVar(&ec.SendChannelEvents, "send-channel-events", ec.SendChannelEvents, "notify subscribers about peers joining/leaving channels (env: SPOKEWISE_SEND_CHANNEL_EVENTS)")
	fs.DurationVar(&ec.HeartbeatInterval, "heartbeat-interval", ec.HeartbeatInterval, "heartbeat cadence (0 disables) (env: SPOKEWISE_HEARTBEAT_INTERVAL)")
	fs.IntVar(&ec.MaxHeartbeatFailures, "max-heartbeat-failures", ec.MaxHeartbeatFailures, "consecutive heartbeat failures before eviction (env: SPOKEWISE_MAX_HEARTBEAT_FAILURES)")
	fs.IntVar(&ec.MaxFrameBytes, "max-frame-bytes", ec.MaxFrameBytes, "maximum inbound frame size (env: SPOKEWISE_MAX_FRAME_BYTES)")
	fs.IntVar(&ec.MaxConns, "max-conns", ec.MaxConns, "max concurrent connections (0 unlimited) (env: SPOKEWISE_MAX_CONNS)")
	fs.Float64Var(&ec.AcceptRatePerSec, "accept-rate", ec.AcceptRatePerSec, "accepted connections per second (0 disables limiting) (env: SPOKEWISE_ACCEPT_RATE)")
	fs.IntVar(&ec.AcceptBurst, "accept-burst", ec.AcceptBurst, "accept rate limiter burst (env: SPOKEWISE_ACCEPT_BURST)")
	fs.StringVar(&ec.LogLevel, "log-level", ec.LogLevel, "log level: trace..panic (env: SPOKEWISE_LOG_LEVEL)")
	fs.BoolVar(&ec.LogJSON, "log-json", ec.LogJSON, "emit JSON logs instead of console output (env: SPOKEWISE_LOG_JSON)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printSignalHelp(stderr)
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintln(stdout, version.Info{Version: buildVersion, Commit: buildCommit, Date: buildDate})
		return 0
	}
	if err := validateTLSFiles(ec.TLSCertFile, ec.TLSKeyFile); err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}

	logger, err := newLogger(stderr, ec.LogLevel, ec.LogJSON)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg := broker.DefaultConfig()
	cfg.ListenAddr = ec.Listen
	cfg.SendAcknowledgements = ec.SendAcks
	cfg.SendServerJoinNotifications = ec.SendServerJoinEvents
	cfg.SendChannelJoinNotifications = ec.SendChannelEvents
	cfg.HeartbeatInterval = ec.HeartbeatInterval
	cfg.MaxHeartbeatFailures = ec.MaxHeartbeatFailures
	cfg.MaxFrameBytes = ec.MaxFrameBytes
	cfg.MaxConns = ec.MaxConns
	cfg.AcceptRatePerSec = ec.AcceptRatePerSec
	cfg.AcceptBurst = ec.AcceptBurst
	cfg.Logger = logger

	observer := observability.NewAtomicBrokerObserver()
	cfg.Observer = observer

	if ec.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(ec.TLSCertFile, ec.TLSKeyFile)
		if err != nil {
			logger.Error().Err(err).Msg("loading tls keypair failed")
			return 1
		}
		cfg.TLS = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	s, err := broker.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("invalid broker config")
		return 1
	}
	if err := s.Start(); err != nil {
		logger.Error().Err(err).Msg("broker start failed")
		return 1
	}
	defer s.Close()

	var metrics *metricsController
	var metricsSrv *http.Server
	if ec.MetricsListen != "" {
		metricsMux := http.NewServeMux()
		metricsHandler := newSwitchHandler()
		metricsMux.Handle("/metrics", metricsHandler)
		metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		metrics = newMetricsController(metricsHandler, observer, s)
		metrics.Enable()

		ln, err := net.Listen("tcp", ec.MetricsListen)
		if err != nil {
			logger.Error().Err(err).Msg("metrics listen failed")
			return 1
		}
		metricsSrv = newHTTPServer(metricsMux)
		go func() {
			if err := metricsSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		logger.Info().Str("addr", ln.Addr().String()).Msg("metrics serving")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, notifySignals()...)
	for sig := range sigCh {
		if handleSignal(sig, logger, metrics) {
			continue
		}
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		break
	}

	if metricsSrv != nil {
		metricsSrv.Close()
	}
	s.Close()
	return 0
}
