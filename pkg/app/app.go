package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metrics_util "github.com/code-payments/token-escrow/pkg/metrics"
	"github.com/code-payments/token-escrow/pkg/osutil"
)

// App is a long lived application that serves HTTP requests and runs
// background workers.
//
// The lifecycle of the App is tied to the process. The app gets initialized
// before the HTTP server runs, and gets stopped after the HTTP server has
// stopped serving.
type App interface {
	// Init initializes the application in a blocking fashion. When Init returns,
	// the application is ready to receive requests through Handler.
	Init(config Config, metricsProvider *newrelic.Application) error

	// Handler returns the handler installed on the HTTP server.
	Handler() http.Handler

	// ShutdownChan returns a channel that is closed when the application is
	// shutdown, at which point the HTTP server initiates a shutdown if it
	// has not already done so.
	ShutdownChan() <-chan struct{}

	// Stop stops the application, allowing it to clean up any resources. When
	// Stop returns, the process exits.
	//
	// Stop should be idempotent.
	Stop()
}

var configPath = flag.String("config", "config.yaml", "configuration file path")

// Run loads the base config, initializes app and serves its handler until the
// process is signalled or either the server or the app shuts down.
func Run(app App) error {
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "app")
	fatal := func(err error, msg string) {
		logger.WithError(err).Error(msg)
		os.Exit(1)
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		fatal(err, "failed to load config")
	}
	if len(config.AppName) == 0 {
		fatal(errors.New("app_name is empty"), "must specify an application name")
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		fatal(err, "error connecting to new relic")
	}
	configureLogger(config, metricsProvider)

	// pprof and expvar install themselves on the default mux, which must never
	// be exposed on the public listener.
	http.DefaultServeMux = http.NewServeMux()
	if config.EnableExpvar || config.EnablePprof {
		go serveDebug(logger, config)
	}

	var ballast []byte
	if config.EnableBallast {
		ballast = make([]byte, ballastSize(config.BallastCapacity, osutil.GetTotalMemory()))
	}

	var memoryLeakCh <-chan struct{}
	if config.EnableMemoryLeakCron {
		scheduler, ch, err := scheduleMemoryLeakShutdown(config.MemoryLeakCronSchedule)
		if err != nil {
			fatal(err, "failed to initialize memory leak cron")
		}
		defer scheduler.Stop()
		memoryLeakCh = ch
	}

	var tlsConfig *tls.Config
	if config.TLSCertificate != "" {
		if config.TLSKey == "" {
			fatal(errors.New("tls_private_key is empty"), "tls key must be provided if certificate is specified")
		}
		if tlsConfig, err = loadTLSConfig(config.TLSCertificate, config.TLSKey); err != nil {
			fatal(err, "failed to load tls configuration")
		}
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		fatal(err, "failed to initialize application")
	}

	handler := app.Handler()
	if metricsProvider != nil {
		_, handler = newrelic.WrapHandle(metricsProvider, "/", handler)
	}

	server := &http.Server{
		Addr:              config.ListenAddress,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverDoneCh := serve(logger, server)

	signalCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stopSignals()

	select {
	case <-signalCtx.Done():
		logger.Info("interrupt received, shutting down")
	case <-serverDoneCh:
		logger.Info("http server shutdown")
	case <-memoryLeakCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	err = shutdown(logger, server, app, config.ShutdownGracePeriod)

	// Keeps the ballast reachable for the lifetime of the process.
	if len(ballast) > 0 {
		ballast[0] = 1
	}
	return err
}

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
}

func serveDebug(logger *logrus.Entry, config BaseConfig) {
	mux := newDebugMux(config)
	for {
		if err := http.ListenAndServe(config.DebugListenAddress, mux); err != nil {
			logger.WithError(err).Warn("debug http server failed, retrying in 5s")
		}
		time.Sleep(5 * time.Second)
	}
}

// scheduleMemoryLeakShutdown returns a channel that is closed the first time
// schedule fires.
func scheduleMemoryLeakShutdown(schedule string) (*cron.Cron, <-chan struct{}, error) {
	ch := make(chan struct{})
	var once sync.Once

	scheduler := cron.New(cron.WithLocation(time.Local))
	if _, err := scheduler.AddFunc(schedule, func() { once.Do(func() { close(ch) }) }); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid schedule %q", schedule)
	}
	scheduler.Start()

	return scheduler, ch, nil
}

// serve runs server in the background. The returned channel is closed once
// the server stops listening.
func serve(logger *logrus.Entry, server *http.Server) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("http server stopped")
			return
		}
		logger.Info("http server stopped")
	}()
	return done
}

// shutdown drains server and then stops app, giving up after gracePeriod.
func shutdown(logger *logrus.Entry, server *http.Server, app App, gracePeriod time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)

		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("failed to gracefully stop http server")
		}
		app.Stop()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Errorf("failed to stop the application within %v", gracePeriod)
	}
}

// loadConfig reads the config file at path, when present, overlaid with the
// environment.
func loadConfig(path string) (BaseConfig, error) {
	// viper.ReadInConfig only returns ConfigFileNotFoundError when searching for
	// a default config file, so a missing explicit file is checked here.
	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := viper.ReadInConfig()
	if _, isConfigNotFound := err.(viper.ConfigFileNotFoundError); err != nil && !isConfigNotFound {
		return BaseConfig{}, errors.Wrap(err, "failed to read config")
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, nil
}

func newDebugMux(config BaseConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// ballastSize caps the ballast at half of the total memory.
func ballastSize(capacity float32, totalMemory uint64) uint64 {
	if capacity > 0.5 {
		capacity = 0.5
	}
	if capacity < 0 {
		capacity = 0
	}
	return uint64(capacity * float32(totalMemory))
}

func loadTLSConfig(certificateURL, keyURL string) (*tls.Config, error) {
	certBytes, err := LoadFile(certificateURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	keyBytes, err := LoadFile(keyURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics_util.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
