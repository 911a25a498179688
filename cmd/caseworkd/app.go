package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/config"
	"github.com/goliatone/go-casework/events"
	"github.com/goliatone/go-casework/flow"
	"github.com/goliatone/go-casework/notify"
	"github.com/goliatone/go-casework/notify/kafkachannel"
	"github.com/goliatone/go-casework/platform"
	"github.com/goliatone/go-casework/scanner"
)

// caseStore is what the daemon needs from either store implementation.
type caseStore interface {
	flow.CaseStore
	flow.IDAllocator
	flow.HistoryStore
	scanner.Source
}

// app holds the wired daemon.
type app struct {
	cfg      config.Config
	logger   casework.Logger
	registry *prometheus.Registry
	store    caseStore
	gateway  *notify.Gateway
	executor *flow.Executor
	scanner  *scanner.Scanner
	closers  []io.Closer
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, error) {
	if out == nil {
		out = os.Stdout
	}
	a := &app{
		cfg:      cfg,
		logger:   casework.NewGlogLogger(out, cfg.Log.Level, cfg.Log.Format),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	service, err := a.notifications(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	reg, perms, err := events.New(events.Deps{
		Policy:   cfg.Policy,
		Notifier: service,
		Renderer: notify.TemplateRenderer{},
		Logger:   a.logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.executor, err = flow.New(reg, perms,
		flow.WithStore(a.store),
		flow.WithHistory(a.store),
		flow.WithLogger(a.logger),
		flow.WithMetrics(flow.NewMetrics(a.registry)),
		flow.WithTracer(otel.Tracer("github.com/goliatone/go-casework/flow")),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.scanner, err = scanner.New(a.store, a.executor, cfg.Scanner.ActorID, scanner.WithLogger(a.logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch strings.ToLower(a.cfg.Store.Driver) {
	case "sqlite":
		store, err := platform.Open(ctx, a.cfg.Store.DSN)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store)
	default:
		a.store = &memoryStore{MemoryStore: platform.NewMemoryStore(), MemoryHistory: flow.NewMemoryHistory()}
	}
	return nil
}

func (a *app) notifications(ctx context.Context) (*notify.Service, error) {
	ncfg := a.cfg.Notifications

	var (
		email   notify.EmailSender
		letters notify.LetterSender
	)
	switch strings.ToLower(ncfg.Channel) {
	case "kafka":
		writer := kafkachannel.NewWriter(ncfg.Kafka.Brokers)
		a.closers = append(a.closers, writer)
		ch, err := kafkachannel.New(writer, kafkachannel.Config{
			EmailTopic:  ncfg.Kafka.EmailTopic,
			LetterTopic: ncfg.Kafka.LetterTopic,
		})
		if err != nil {
			return nil, err
		}
		email, letters = ch, ch
	default:
		sender := notify.NewLogSender(a.logger)
		email, letters = sender, sender
	}

	var deliveries notify.DeliveryLog = notify.NewMemoryDeliveryLog()
	if strings.EqualFold(ncfg.DeliveryLog, "sqlite") {
		sqlStore, ok := a.store.(*platform.SQLiteStore)
		if !ok {
			return nil, fmt.Errorf("sqlite delivery log requires the sqlite store")
		}
		log, err := notify.NewSQLDeliveryLog(ctx, sqlStore.DB())
		if err != nil {
			return nil, err
		}
		deliveries = log
	}

	gateway, err := notify.NewGateway(email, letters, notify.TemplateRenderer{},
		notify.WithDeliveryLog(deliveries),
		notify.WithDispatchMetrics(notify.NewDispatchMetrics(a.registry)),
		notify.WithGatewayLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.gateway = gateway

	builder, err := notify.NewVariableBuilder(a.cfg.Policy)
	if err != nil {
		return nil, err
	}
	selector := notify.NewSelector(
		notify.WithTemplates(ncfg.Templates),
		notify.WithPartnerReminder(ncfg.NotifyPendingPartner),
		notify.WithSelectorLogger(a.logger),
	)
	return notify.NewService(selector, builder, gateway, notify.WithServiceLogger(a.logger))
}

// Close releases the store and channel connections.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// memoryStore pairs the in-memory case store with in-memory history.
type memoryStore struct {
	*platform.MemoryStore
	*flow.MemoryHistory
}
