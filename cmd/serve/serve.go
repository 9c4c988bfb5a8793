// Package serve runs the HealthDesk API server with its background jobs.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	api "github.com/tphakala/healthdesk/internal/api/v2"
	"github.com/tphakala/healthdesk/internal/buildinfo"
	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability"
	"github.com/tphakala/healthdesk/internal/publish"
	"github.com/tphakala/healthdesk/internal/reminder"
	"github.com/tphakala/healthdesk/internal/toast"
)

const (
	shutdownTimeout   = 10 * time.Second
	monitorInterval   = 30 * time.Second
	sentryFlushWindow = 2 * time.Second
)

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long:  "Serve the appointment API and toast streams, and run reminders and event publishing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Interface to listen on")
	cmd.Flags().StringVarP(&settings.WebServer.Port, "port", "p", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().BoolVar(&settings.Reminder.Enabled, "reminders", viper.GetBool("reminder.enabled"), "Enable the daily appointment reminder")
	cmd.Flags().BoolVar(&settings.Security.RequireAuth, "require-auth", viper.GetBool("security.requireauth"), "Require a bearer token for changes")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run wires every component and serves until ctx is done.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	defer func() { _ = central.Close() }()
	log := central.Module("main")

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, build.Release()); err != nil {
			log.Warn("sentry disabled", logger.Error(err))
		} else {
			defer errors.FlushSentry(sentryFlushWindow)
		}
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	ds, err := datastore.New(settings,
		datastore.WithLogger(central.Module("datastore")),
		datastore.WithMetrics(m.Datastore))
	if err != nil {
		return err
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}()
	ds.StartMonitoring(ctx, monitorInterval)

	bus := toast.Initialize(
		toast.WithRecorder(m.Toast),
		toast.WithDefaultTTL(settings.Toast.DefaultTTL),
		toast.WithLogger(central.Module("toast")))

	publisher, err := publish.New(settings,
		publish.WithMetrics(m.Publish),
		publish.WithLogger(central.Module("publish")))
	if err != nil {
		return err
	}
	defer publisher.Close()
	publisher.Start(ctx)

	reminders, err := reminder.New(settings.Reminder, ds, bus,
		reminder.WithPublisher(publisher),
		reminder.WithLogger(central.Module("reminder")))
	if err != nil {
		return err
	}
	reminders.Start(ctx)
	defer reminders.Stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	controller, err := api.New(e, ds, settings, bus,
		api.WithLogger(central.Module("api")),
		api.WithMetrics(m),
		api.WithAppointmentNotifier(publisher))
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(settings.WebServer.Host, settings.WebServer.Port)
	log.Info("starting HealthDesk",
		logger.String("version", build.GetVersion()),
		logger.String("address", addr),
		logger.String("database", ds.Dialect()),
		logger.Bool("auth_required", settings.Security.RequireAuth))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Category(errors.CategoryNetwork).
				Context("address", addr).
				Build()
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// streams end first so Shutdown is not held open by them
		controller.Shutdown()
		return e.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		rotateOnHangup(gctx, central, log)
		return nil
	})

	return g.Wait()
}

// rotateOnHangup reopens log files on SIGHUP, for logrotate.
func rotateOnHangup(ctx context.Context, central *logger.CentralLogger, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			if err := central.Rotate(); err != nil {
				log.Error("log rotation failed", logger.Error(err))
				continue
			}
			log.Info("log files rotated")
		case <-ctx.Done():
			return
		}
	}
}
