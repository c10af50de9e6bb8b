package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/apikey"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/config"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/credstore"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/eventbus"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/pairing"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/server"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/session"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/webhook"
)

// DefaultEnvFile is loaded when no env file is given on the command line.
const DefaultEnvFile = ".env"

// DefaultDriver is the protocol driver dialed when none is given on the
// command line. Drivers register themselves through protocol.Register.
const DefaultDriver = "whatsapp"

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

type cmdoptions struct {
	envFile string
	driver  string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	slog.Info().Str("env_file", opt.envFile).Msg("loading configuration")
	if err := config.LoadConfig(opt.envFile); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	dialer, err := protocol.Open(opt.driver)
	if err != nil {
		return fmt.Errorf("opening protocol driver: %w", err)
	}

	creds, aerr := credstore.New(config.Config().SessionPath)
	if aerr != nil {
		return fmt.Errorf("opening credential store: %w", aerr)
	}
	keys := apikey.NewStore(
		config.Config().SessionPath+"/apikeys.json",
		config.Config().AdminAPIKey,
	)
	bus := eventbus.New()

	manager := session.NewManager(session.Options{
		Dialer:            dialer,
		Credentials:       creds,
		Artifacts:         pairing.NewCache(),
		Bus:               bus,
		ReconnectInterval: config.Config().ReconnectInterval,
		MaxRetries:        config.Config().MaxRetries,
		Logger:            log.Logger,
	})

	var notifier *webhook.Notifier
	if url := config.Config().WebhookURL; url != "" {
		notifier = webhook.New(url, bus, log.Logger)
		notifier.Start(ctx)
		slog.Info().Str("url", url).Msg("webhook notifier started")
	}

	serverErrors, shutdownServer, err := createGatewayServer(ctx, manager, keys)
	if err != nil {
		return fmt.Errorf("creating gateway server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		stopSessions(ctx, manager, bus, notifier)
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
		stopSessions(ctx, manager, bus, notifier)
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createGatewayServer(ctx context.Context, manager *session.Manager, keys *apikey.Store) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.New(manager, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

// stopSessions tears down the session manager, the event bus, and the
// webhook notifier in dependency order.
func stopSessions(ctx context.Context, manager *session.Manager, bus *eventbus.Bus, notifier *webhook.Notifier) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	manager.Shutdown(shutdownCtx)
	if notifier != nil {
		notifier.Stop()
	}
	bus.Shutdown()
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.envFile, "env", DefaultEnvFile, "Path to the env file")
	flag.StringVar(&opt.driver, "driver", DefaultDriver, "Protocol driver to dial sessions with")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
