// Command caseworkd runs the casework executor with its notification pipeline
// and due-date sweeper.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/config"
	"github.com/goliatone/go-casework/events"
	"github.com/goliatone/go-casework/flow"
	"github.com/goliatone/go-casework/scanner"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config    string   `help:"Path to a YAML configuration file." type:"existingfile" env:"CASEWORK_CONFIG"`
	LogLevel  string   `help:"Override the log level (trace, debug, info, warn, error)." env:"CASEWORK_LOG_LEVEL"`
	SQLite    string   `help:"Use the SQLite store at this path." name:"sqlite" env:"CASEWORK_SQLITE"`
	Brokers   []string `help:"Publish notifications to these Kafka brokers." env:"CASEWORK_KAFKA_BROKERS"`
	Scheduled bool     `help:"Enable the due-date sweeper." name:"scan"`

	stdout io.Writer `kong:"-"`
}

// load resolves the configuration file and applies flag overrides.
func (g *Globals) load() (config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		loaded, err := config.Load(g.Config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.SQLite != "" {
		cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: g.SQLite}
		if cfg.Notifications.DeliveryLog == "memory" {
			cfg.Notifications.DeliveryLog = "sqlite"
		}
	}
	if len(g.Brokers) > 0 {
		cfg.Notifications.Channel = "kafka"
		cfg.Notifications.Kafka.Brokers = g.Brokers
	}
	if g.Scheduled {
		cfg.Scanner.Enabled = true
	}
	return cfg, cfg.Validate()
}

func (g *Globals) open(ctx context.Context) (*app, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, g.stdout)
}

type cli struct {
	Globals

	Serve  serveCmd  `cmd:"" default:"withargs" help:"Serve the executor over HTTP and run the sweeper."`
	Run    runCmd    `cmd:"" help:"Run one event against a case."`
	Events eventsCmd `cmd:"" help:"List the event catalogue and its grants."`
	Sweep  sweepCmd  `cmd:"" help:"Progress every due case once."`
}

type serveCmd struct {
	Address string        `help:"HTTP listen address." default:":8080"`
	Grace   time.Duration `help:"Shutdown grace period." default:"10s"`
}

func (c *serveCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Scanner.Enabled {
		opts := []scanner.SchedulerOption{
			scanner.InZone(a.cfg.Policy.Location()),
			scanner.WithSchedulerLogger(a.logger),
			scanner.WithJobTimeout(time.Hour),
		}
		if lvl := strings.ToLower(a.cfg.Log.Level); lvl == "debug" || lvl == "trace" {
			opts = append(opts, scanner.Verbose())
		}
		sched := scanner.NewScheduler(opts...)
		id, err := scanner.ScheduleSweeps(sched, a.scanner, a.cfg.Scanner.Schedule)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		a.logger.Info("sweeper scheduled %q, next run %s", a.cfg.Scanner.Schedule, sched.Next(id).Format(time.RFC3339))
		defer func() {
			shutdown, cancel := context.WithTimeout(context.Background(), c.Grace)
			defer cancel()
			_ = sched.Stop(shutdown)
		}()
	}

	servers := []*http.Server{{Addr: c.Address, Handler: a.routes(), ReadHeaderTimeout: 5 * time.Second}}
	if addr := a.cfg.Metrics.Address; addr != "" && addr != c.Address {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			a.logger.Info("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errs:
	}

	shutdown, cancel := context.WithTimeout(context.Background(), c.Grace)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdown)
	}
	return serveErr
}

type runCmd struct {
	Event   string `arg:"" help:"Event id."`
	CaseID  int64  `arg:"" optional:"" help:"Case id; omit for events that create a case."`
	Role    string `help:"Acting role." default:"CASE_WORKER"`
	Actor   string `help:"Acting user id." default:"cli"`
	Payload string `help:"Path to a JSON case data payload, or - for stdin." type:"path"`
}

func (c *runCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := flow.Request{EventID: c.Event, CaseID: c.CaseID, ActorID: c.Actor, ActorRole: c.Role}
	if c.Payload != "" {
		payload, err := readPayload(c.Payload)
		if err != nil {
			return err
		}
		req.Payload = payload
	}

	resp := a.executor.Handle(ctx, req)
	enc := json.NewEncoder(g.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("event %s failed: %s", c.Event, strings.Join(resp.Errors, "; "))
	}
	return nil
}

func readPayload(path string) (*casework.CaseData, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var data casework.CaseData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &data, nil
}

type eventsCmd struct {
	Role string `help:"Only list events this role can execute."`
}

func (c *eventsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	reg, perms, err := events.New(events.Deps{Policy: cfg.Policy})
	if err != nil {
		return err
	}
	var role casework.Role
	if c.Role != "" {
		if role, err = casework.ParseRole(c.Role); err != nil {
			return err
		}
	}
	for _, id := range reg.IDs() {
		if role != "" && !perms.For(id, role).CanExecute() {
			continue
		}
		evt, _ := reg.Lookup(id)
		grants := perms.Grants(id)
		names := make([]string, 0, len(grants))
		for _, gr := range grants {
			names = append(names, fmt.Sprintf("%s:%s", gr.Role, gr.Access))
		}
		sort.Strings(names)
		fmt.Fprintf(g.stdout, "%-48s %-32s %s\n", id, describeTarget(evt), strings.Join(names, " "))
	}
	return nil
}

type sweepCmd struct{}

func (c *sweepCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	report, err := a.scanner.Sweep(ctx)
	fmt.Fprintf(g.stdout, "due=%d progressed=%d skipped=%d failed=%d\n",
		report.Due, report.Progressed, report.Skipped, report.Failed)
	return err
}

func main() {
	var root cli
	root.stdout = os.Stdout
	ctx := kong.Parse(&root,
		kong.Name("caseworkd"),
		kong.Description("Case lifecycle executor and notification dispatcher."),
		kong.UsageOnError(),
		kong.Bind(&root.Globals),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
