package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/i474232898/precip-timelapse/internal/api/http"
	"github.com/i474232898/precip-timelapse/internal/config"
	"github.com/i474232898/precip-timelapse/internal/platform/logger"
	"github.com/i474232898/precip-timelapse/internal/platform/metrics"
	"github.com/i474232898/precip-timelapse/internal/scheduler"
	"github.com/i474232898/precip-timelapse/internal/store"
	"github.com/i474232898/precip-timelapse/internal/timelapse"
	"github.com/i474232898/precip-timelapse/internal/timelapse/surfaces"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the animation HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if err := applyFlagOverrides(cmd.Flags(), cfg); err != nil {
				return err
			}

			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("port", "8080", "HTTP listen port")
	cmd.Flags().Duration("tick-interval", timelapse.DefaultInterval, "pause between revealed frames")
	cmd.Flags().String("surface", config.SurfaceMemory, "map surface: memory or webhook")
	return cmd
}

// applyFlagOverrides copies explicitly set flags over the loaded config and
// re-validates it.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.AppConfig) error {
	if flags.Changed("port") {
		port, err := flags.GetString("port")
		if err != nil {
			return err
		}
		cfg.Port = port
	}
	if flags.Changed("tick-interval") {
		d, err := flags.GetDuration("tick-interval")
		if err != nil {
			return err
		}
		cfg.TickInterval = d
	}
	if flags.Changed("surface") {
		surface, err := flags.GetString("surface")
		if err != nil {
			return err
		}
		cfg.MapSurface = surface
	}
	return cfg.Validate()
}

func runServer(ctx context.Context, cfg *config.AppConfig) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if !cfg.DotEnvLoaded {
		log.Info().Msg("no .env file found; using environment and defaults")
	}
	if cfg.ConfigFile != "" {
		log.Info().Str("path", cfg.ConfigFile).Msg("config file loaded")
	}

	resolver, err := timelapse.NewResolver(timelapse.ResolverConfig{
		TileEndpoint: cfg.TileEndpoint,
		Bucket:       cfg.RasterBucket,
	})
	if err != nil {
		return err
	}

	met := metrics.New()

	// Gocron scheduler driving animation ticks.
	sched := scheduler.New()
	sched.Start()
	defer sched.Stop()

	animator := timelapse.NewAnimator(resolver, sched, timelapse.Options{
		Interval:  cfg.TickInterval,
		OpTimeout: cfg.SurfaceOpTimeout,
		Logger:    log.With().Str("component", "animator").Logger(),
		Metrics:   met,
	})

	var (
		layers     timelapse.MapLayerPort
		label      timelapse.OverlayLabelPort
		memSurface *store.MemorySurface
	)
	switch cfg.MapSurface {
	case config.SurfaceWebhook:
		wh := surfaces.NewWebhookSurface(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.SurfaceWebhookURL, store.LabelAnchor)
		layers, label = wh, wh
	default:
		memSurface = store.NewMemorySurface()
		layers, label = memSurface, memSurface
	}

	app := fiber.New(fiber.Config{
		AppName:               "precip-timelapse",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.RequestLogger(log))
	app.Use(metrics.RequestMiddleware(met))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "precip-timelapse",
			"ready":   animator.Ready(),
			"jobs":    sched.Jobs(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(met.Handler()))

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Animator: animator,
		Surface:  memSurface,
		Attach: func(ctx context.Context) error {
			return animator.Attach(ctx, layers, label)
		},
		Location: cfg.Location,
		Logger:   log,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Dur("tick_interval", cfg.TickInterval).
			Str("map_surface", cfg.MapSurface).
			Str("timezone", cfg.Location.String()).
			Msg("server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		animator.Close(shutdownCtx)
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
