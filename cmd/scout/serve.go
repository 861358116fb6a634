package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/groblegark/scout/internal/approval"
	"github.com/groblegark/scout/internal/calendar"
	"github.com/groblegark/scout/internal/config"
	"github.com/groblegark/scout/internal/dedup"
	"github.com/groblegark/scout/internal/events"
	"github.com/groblegark/scout/internal/evidence"
	"github.com/groblegark/scout/internal/metrics"
	"github.com/groblegark/scout/internal/model"
	"github.com/groblegark/scout/internal/pipeline"
	"github.com/groblegark/scout/internal/profile"
	"github.com/groblegark/scout/internal/register"
	"github.com/groblegark/scout/internal/scheduler"
	"github.com/groblegark/scout/internal/score"
	"github.com/groblegark/scout/internal/scraper"
	"github.com/groblegark/scout/internal/server"
	"github.com/groblegark/scout/internal/store"
	"github.com/groblegark/scout/internal/store/postgres"
)

// storeHistory answers venue-novelty lookups from booked and attended events.
type storeHistory struct {
	store store.Store
}

func (h storeHistory) IsVenueVisited(ctx context.Context, venueName string) (bool, error) {
	if venueName == "" {
		return false, nil
	}
	for _, status := range []model.Status{model.StatusBooked, model.StatusScheduled, model.StatusAttended} {
		list, err := h.store.GetEventsByStatus(ctx, status)
		if err != nil {
			return false, err
		}
		for _, e := range list {
			if e.Location.Name == venueName {
				return true, nil
			}
		}
	}
	return false, nil
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the scout server and scheduled pipeline",
	GroupID: "system",
	// Override PersistentPreRun so no API client is created.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		prof, err := profile.Load(cfg.ProfilePath)
		if err != nil {
			return err
		}

		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				pg.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (SCOUT_NATS_URL not set)")
		}

		// Approval senders in priority order: SMS first when configured.
		var senders []approval.Sender
		if cfg.TwilioAccountSID != "" {
			senders = append(senders, approval.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom))
			logger.Info("sms approvals enabled", "from", cfg.TwilioFrom)
		}
		if cfg.SMTPHost != "" {
			senders = append(senders, approval.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom))
			logger.Info("email approvals enabled", "host", cfg.SMTPHost)
		}
		approvals := approval.New(pg, publisher, senders, prof, logger)

		var evStore evidence.Store
		if cfg.EvidenceS3Bucket != "" {
			evStore, err = evidence.NewS3Store(context.Background(), cfg.EvidenceS3Bucket, cfg.EvidenceS3Region, cfg.EvidenceS3Endpoint)
			if err != nil {
				pg.Close()
				return err
			}
			logger.Info("evidence stored in s3", "bucket", cfg.EvidenceS3Bucket)
		} else {
			evStore, err = evidence.NewDirStore(cfg.EvidenceDir)
			if err != nil {
				pg.Close()
				return err
			}
			logger.Info("evidence stored locally", "dir", cfg.EvidenceDir)
		}

		browser := register.NewChromeBrowser(context.Background(), true)
		automator := register.New(pg, browser, evStore, publisher, prof.Family, logger)

		var cal calendar.Checker = calendar.NoopChecker{}
		if cfg.CalendarICSURL != "" {
			cal = calendar.NewICSChecker(cfg.CalendarICSURL, logger)
			logger.Info("calendar checks enabled")
		}

		sources := scraper.NewAggregator(scraper.FromConfig(cfg.Feeds), logger)
		m := metrics.New()

		pipe := pipeline.New(
			pg,
			sources,
			dedup.New(prof.Dedup, prof.VenueAliases, logger),
			score.New(prof, storeHistory{pg}, logger),
			approvals,
			automator,
			cal,
			m,
			publisher,
			prof,
			logger,
		)

		sched := scheduler.New(logger, func(task string) {
			m.SweepErrors.WithLabelValues(task).Inc()
		})
		sched.Add("discovery", cfg.DiscoveryInterval, pipe.RunDiscovery)
		sched.Add("approval_sweep", cfg.ApprovalInterval, pipe.RunApprovalSweep)
		sched.Add("registration_sweep", cfg.RegistrationInterval, pipe.RunRegistrationSweep)
		sched.Add("calendar_sync", cfg.CalendarInterval, pipe.RunCalendarSync)
		sched.Add("report", cfg.ReportInterval, pipe.RunReport)
		sched.Add("health", cfg.HealthInterval, func(ctx context.Context) error {
			_, err := pg.ListOpenApprovals(ctx)
			return err
		})
		sched.Start()

		srv := server.New(pg, pipe, m, cfg.TwilioAuthToken, logger)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.APIKey),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		logger.Info("scout started",
			"http_addr", cfg.HTTPAddr,
			"feeds", len(cfg.Feeds),
			"senders", len(senders),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		sched.Stop()
		logger.Info("scheduler stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := browser.Close(); err != nil {
			logger.Error("error closing browser", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := pg.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
