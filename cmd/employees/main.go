package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goversion "github.com/caarlos0/go-version"
	"github.com/gartstein/employees/internal/employees/api"
	"github.com/gartstein/employees/internal/employees/cache"
	"github.com/gartstein/employees/internal/employees/config"
	"github.com/gartstein/employees/internal/employees/controller"
	gorm "github.com/gartstein/employees/internal/employees/db"
	"github.com/gartstein/employees/internal/employees/events"
	"github.com/gartstein/employees/internal/employees/handlers"
	"github.com/gartstein/employees/internal/employees/telemetry"
	"github.com/gartstein/employees/internal/employees/view"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	version   = "dev"
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""

	configPath  = flag.String("config", config.DefaultPath, "Path to the YAML configuration file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// producer is the event sink the dispatcher writes to and main closes.
type producer interface {
	controller.EventProducer
	Close()
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(buildVersion(version, commit, date, builtBy, treeState).String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	repo, err := gorm.NewRepository(&gorm.Config{Driver: cfg.JournalDriver, DSN: cfg.JournalDSN})
	if err != nil {
		logger.Fatal("failed to initialize journal", zap.Error(err))
	}
	defer repo.Close()

	eventProducer := initProducer(cfg, logger)
	defer eventProducer.Close()

	client := api.NewClient(api.Config{
		BaseURL:            cfg.APIBaseURL,
		Timeout:            cfg.APITimeout,
		InsecureSkipVerify: cfg.APIInsecureSkipVerify,
		DeleteStyle:        api.DeleteStyle(cfg.DeleteStyle),
	}, logger)

	employees := cache.New(client, logger)
	states := cache.NewStates(client, logger)
	employees.Load(ctx)

	dispatcher := controller.NewDispatcher(client, employees, eventProducer, repo, logger)
	form := controller.NewFormSession(dispatcher, logger)
	viewModel := view.NewViewModel(employees, cfg.Language(), logger)

	employeeHandler := handlers.NewEmployeeHandler(handlers.Dependencies{
		View:     viewModel,
		Mutation: dispatcher,
		Form:     form,
		Cache:    employees,
		States:   states,
		Journal:  repo,
	}, handlers.Options{
		Language:       cfg.Language(),
		CurrencyPrefix: cfg.CurrencyPrefix,
	}, logger)

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger)
	if err := server.RegisterHTTPGateway(
		ctx,
		[]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
		employeeHandler); err != nil {
		logger.Fatal("Failed to register HTTP gateway", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	waitForShutdown(server, errCh, logger)
}

// initLogger builds a production logger, or a development one for debug level.
func initLogger(level string) *zap.Logger {
	var logger *zap.Logger
	if level == "debug" {
		logger, _ = zap.NewDevelopment()
	} else {
		zapCfg := zap.NewProductionConfig()
		if lvl, err := zap.ParseAtomicLevel(level); err == nil {
			zapCfg.Level = lvl
		}
		logger, _ = zapCfg.Build()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// initProducer connects the Kafka producer, or a no-op one when no brokers
// are configured.
func initProducer(cfg *config.Config, logger *zap.Logger) producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("No Kafka brokers configured, mutation events disabled")
		return events.NopProducer{}
	}
	if err := events.EnsureTopic(cfg.KafkaBrokers, cfg.Topic, logger); err != nil {
		logger.Warn("failed to reach Kafka broker", zap.Error(err))
	}
	return events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
}

func buildVersion(version, commit, date, builtBy, treeState string) goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("employees", "Employee view model service", "https://github.com/gartstein/employees"),
		func(i *goversion.Info) {
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, or the
// servers fail, then shuts down servers.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	server.Stop()
	logger.Info("Servers stopped properly")
}
