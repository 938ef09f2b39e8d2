package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/smartgov/exgratia/internal/api"
	"github.com/smartgov/exgratia/internal/classifier"
	"github.com/smartgov/exgratia/internal/config"
	"github.com/smartgov/exgratia/internal/content"
	"github.com/smartgov/exgratia/internal/dialog"
	"github.com/smartgov/exgratia/internal/genai"
	"github.com/smartgov/exgratia/internal/lockfile"
	"github.com/smartgov/exgratia/internal/messaging"
	"github.com/smartgov/exgratia/internal/scheduler"
	"github.com/smartgov/exgratia/internal/status"
	"github.com/smartgov/exgratia/internal/store"
	"github.com/smartgov/exgratia/internal/submission"
	"github.com/smartgov/exgratia/internal/telegram"
	"github.com/smartgov/exgratia/internal/twiliowhatsapp"
	"github.com/smartgov/exgratia/internal/whatsapp"
	"golang.org/x/sync/errgroup"
)

// DefaultWhatsAppDBFileName is the whatsmeow device store inside the state directory.
const DefaultWhatsAppDBFileName = "whatsmeow.db"

// resources owns the databases and watchers opened during startup.
type resources struct {
	stores  map[string]store.SQLStore
	closers []func() error
	pingers map[string]api.Pinger
}

func newResources() *resources {
	return &resources{
		stores:  make(map[string]store.SQLStore),
		pingers: make(map[string]api.Pinger),
	}
}

// openStore opens the SQL store for dsn once and shares it between callers.
func (r *resources) openStore(name, dsn string) (store.SQLStore, error) {
	if st, ok := r.stores[dsn]; ok {
		r.pingers[name] = st.DB()
		return st, nil
	}
	st, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	r.stores[dsn] = st
	r.closers = append(r.closers, st.Close)
	r.pingers[name] = st.DB()
	slog.Debug("Opened SQL store", "name", name, "driver", st.Driver())
	return st, nil
}

// Close releases everything in reverse order of acquisition.
func (r *resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// run wires every component and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg config.Config) error {
	lock, err := lockfile.AcquireLock(cfg.StateDir, cfg.Transport)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	res := newResources()
	defer func() {
		if err := res.Close(); err != nil {
			slog.Warn("Failed to close resources", "error", err)
		}
	}()

	cls, err := buildClassifier(cfg)
	if err != nil {
		return err
	}
	src, err := buildStatusSource(ctx, cfg, res)
	if err != nil {
		return err
	}
	lookup := status.NewLookup(src)

	states, dedup, err := buildStateStore(cfg, res)
	if err != nil {
		return err
	}
	texts := content.NewFileStore(cfg.Content.Dir, cfg.Content.Files)
	controller := dialog.NewController(cls, lookup, texts, states, dialog.WithSupportPhone(cfg.SupportPhone))

	jobs, err := buildScheduler(ctx, cfg, src, dedup)
	if err != nil {
		return err
	}
	if jobs != nil {
		jobs.Start()
		defer jobs.Stop()
	}

	svc, transportOpts, err := buildTransport(ctx, cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if svc != nil {
		if err := svc.Start(gctx); err != nil {
			return fmt.Errorf("start %s transport: %w", cfg.Transport, err)
		}
		defer func() {
			if err := svc.Stop(); err != nil {
				slog.Warn("Failed to stop transport", "error", err)
			}
		}()

		dispatcherOpts := []dialog.DispatcherOption{}
		if cfg.MaxConversations > 0 {
			dispatcherOpts = append(dispatcherOpts, dialog.WithMaxConversations(cfg.MaxConversations))
		}
		if dedup != nil {
			dispatcherOpts = append(dispatcherOpts, dialog.WithDedup(dedup))
		}
		dispatcher := dialog.NewDispatcher(controller, svc, dispatcherOpts...)
		g.Go(func() error {
			return dispatcher.Run(gctx, svc.Events())
		})
	}

	if cfg.API.Addr != "" {
		subs, err := submission.Open(cfg.API.SubmissionPath)
		if err != nil {
			return err
		}
		apiOpts := append([]api.Option{
			api.WithAddr(cfg.API.Addr),
			api.WithSubmissions(subs),
			api.WithChat(controller),
		}, transportOpts...)
		for name, p := range res.pingers {
			apiOpts = append(apiOpts, api.WithHealthCheck(name, p))
		}
		server := api.NewServer(lookup, apiOpts...)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	slog.Info("Ex-gratia assistant running", "transport", cfg.Transport, "api_addr", cfg.API.Addr)
	return g.Wait()
}

// buildClassifier returns the rule-based classifier or a model-backed one
// that falls back to the rules on any failure.
func buildClassifier(cfg config.Config) (classifier.Classifier, error) {
	c := cfg.Classifier
	switch c.Mode {
	case config.ClassifierRemote:
		gen, err := genai.NewHTTPClient(genai.WithEndpoint(c.RemoteURL), genai.WithTimeout(c.Timeout))
		if err != nil {
			return nil, fmt.Errorf("remote classifier: %w", err)
		}
		slog.Info("Using remote intent classifier", "endpoint", c.RemoteURL)
		return classifier.NewFallbackClassifier(classifier.NewRemoteClassifier(gen, c.Timeout)), nil
	case config.ClassifierOpenAI:
		opts := []genai.Option{genai.WithAPIKey(c.OpenAIKey), genai.WithTimeout(c.Timeout)}
		if c.OpenAIModel != "" {
			opts = append(opts, genai.WithModel(c.OpenAIModel))
		}
		gen, err := genai.NewOpenAIClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai classifier: %w", err)
		}
		slog.Info("Using OpenAI intent classifier", "model_set", c.OpenAIModel != "")
		return classifier.NewFallbackClassifier(classifier.NewRemoteClassifier(gen, c.Timeout)), nil
	default:
		slog.Info("Using rule-based intent classifier")
		return classifier.NewRuleBasedClassifier(), nil
	}
}

// buildStatusSource picks the SQL table, the watched CSV cache or the plain CSV file.
func buildStatusSource(ctx context.Context, cfg config.Config, res *resources) (status.Source, error) {
	if cfg.Status.DSN != "" {
		st, err := res.openStore("status", cfg.Status.DSN)
		if err != nil {
			return nil, err
		}
		src := status.NewSQLSource(st.DB(), status.Dialect(st.Driver()))
		if cfg.Status.ImportCSV {
			recs, err := status.NewCSVSource(cfg.Status.CSVPath).Records(ctx)
			if err != nil {
				return nil, fmt.Errorf("read %s for import: %w", cfg.Status.CSVPath, err)
			}
			if _, err := src.Import(ctx, recs); err != nil {
				return nil, fmt.Errorf("import status records: %w", err)
			}
		}
		return src, nil
	}

	if cfg.Status.Cache {
		cached, err := status.NewCachedSource(cfg.Status.CSVPath)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, cached.Close)
		if err := cached.Start(ctx); err != nil {
			return nil, err
		}
		return cached, nil
	}

	slog.Info("Reading status records from CSV", "path", cfg.Status.CSVPath)
	return status.NewCSVSource(cfg.Status.CSVPath), nil
}

// buildStateStore keeps dialog state in memory unless a DSN is configured.
// Inbound message IDs for deduplication live in the same place.
func buildStateStore(cfg config.Config, res *resources) (dialog.StateStore, store.DedupRepo, error) {
	if cfg.State.DSN == "" {
		slog.Info("Conversation state kept in memory")
		return dialog.NewMemoryStateStore(), store.NewInMemoryStore(), nil
	}
	st, err := res.openStore("state", cfg.State.DSN)
	if err != nil {
		return nil, nil, err
	}
	return dialog.NewStoreBasedStateStore(st), st, nil
}

// buildScheduler registers the maintenance jobs that apply to this setup.
// It returns nil when no job is needed.
func buildScheduler(ctx context.Context, cfg config.Config, src status.Source, dedup store.DedupRepo) (*scheduler.Scheduler, error) {
	m := cfg.Maintenance
	sqlSrc, _ := src.(*status.SQLSource)
	prune := dedup != nil && m.PruneSchedule != "" && m.DedupRetention > 0
	importCSV := sqlSrc != nil && m.ImportSchedule != ""
	if !prune && !importCSV {
		return nil, nil
	}

	s := scheduler.NewScheduler(ctx)
	if prune {
		err := s.AddJob("dedup-prune", m.PruneSchedule, func(ctx context.Context) error {
			n, err := dedup.PruneInbound(ctx, time.Now().Add(-m.DedupRetention))
			if err != nil {
				return err
			}
			slog.Info("Pruned inbound dedup records", "count", n, "retention", m.DedupRetention)
			return nil
		})
		if err != nil {
			s.Stop()
			return nil, err
		}
	}
	if importCSV {
		csvSrc := status.NewCSVSource(cfg.Status.CSVPath)
		err := s.AddJob("status-import", m.ImportSchedule, func(ctx context.Context) error {
			recs, err := csvSrc.Records(ctx)
			if err != nil {
				return err
			}
			_, err = sqlSrc.Import(ctx, recs)
			return err
		})
		if err != nil {
			s.Stop()
			return nil, err
		}
	}
	return s, nil
}

// whatsAppDSN returns the configured device store or a SQLite file in the state directory.
func whatsAppDSN(cfg config.Config) string {
	if cfg.WhatsApp.DBDSN != "" {
		return cfg.WhatsApp.DBDSN
	}
	return "file:" + filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// buildTransport connects the configured chat transport. It returns a nil
// service for the API-only mode, plus any routes the API must mount.
func buildTransport(ctx context.Context, cfg config.Config) (messaging.Service, []api.Option, error) {
	switch cfg.Transport {
	case config.TransportTelegram:
		var opts []telegram.Option
		if cfg.Telegram.PollTimeout > 0 {
			opts = append(opts, telegram.WithPollTimeout(cfg.Telegram.PollTimeout))
		}
		client, err := telegram.NewClient(cfg.Telegram.Token, opts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTelegramService(client), nil, nil

	case config.TransportWhatsApp:
		opts := []whatsapp.Option{whatsapp.WithDBDSN(whatsAppDSN(cfg))}
		if cfg.WhatsApp.QRPath != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(cfg.WhatsApp.QRPath))
		}
		if cfg.WhatsApp.NumericCode {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil

	case config.TransportTwilio:
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.Twilio.AccountSID),
			twiliowhatsapp.WithAuthToken(cfg.Twilio.AuthToken),
			twiliowhatsapp.WithFromWhats(cfg.Twilio.From),
		)
		if err != nil {
			return nil, nil, err
		}
		var opts []messaging.TwilioOption
		if cfg.Twilio.WebhookURL != "" {
			opts = append(opts, messaging.WithSignatureValidation(client, cfg.Twilio.WebhookURL))
		} else {
			slog.Warn("TWILIO_WEBHOOK_URL not set; inbound webhook signatures are not verified")
		}
		svc := messaging.NewTwilioService(client, opts...)
		return svc, []api.Option{api.WithTwilioWebhook(svc.TwilioWebhookHandler)}, nil

	case config.TransportNone:
		slog.Info("No chat transport configured; serving the API only")
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport)
	}
}
