package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/httpapi"
	"github.com/ankittk/devcrew/internal/orchestrator"
	"github.com/ankittk/devcrew/internal/otel"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/internal/store/mysql"
	"github.com/ankittk/devcrew/internal/store/postgres"
	redisstore "github.com/ankittk/devcrew/internal/store/redis"
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Service is everything the daemon runs: config, store, runner and HTTP app.
type Service struct {
	Config *config.System
	Store  store.Store
	Runner *orchestrator.Runner
	App    *httpapi.App
	Log    *slog.Logger

	closers []func() error
}

// OpenStore opens the backend named by db.Driver. The DSN comes from the
// config, then DATABASE_URL. SQLite with neither lives under home.
func OpenStore(ctx context.Context, db config.Database, home string) (store.Store, error) {
	dsn := db.DSN
	if dsn == "" {
		dsn = config.SecretsFromEnv().DatabaseURL
	}
	switch strings.ToLower(db.Driver) {
	case "", "sqlite":
		if db.Path != "" {
			return store.OpenWithOptions(store.OpenOptions{Driver: "sqlite", DSN: db.Path})
		}
		return store.Open(home)
	case "postgres":
		return postgres.Open(dsn)
	case "redis":
		if dsn == "" {
			dsn = os.Getenv("REDIS_URL")
		}
		if dsn == "" {
			return nil, fmt.Errorf("%w: redis store needs database.dsn, DATABASE_URL or REDIS_URL", errs.ErrConfiguration)
		}
		return redisstore.Open(ctx, dsn)
	case "mysql":
		return mysql.Open(dsn)
	}
	return nil, fmt.Errorf("%w: unknown database driver %q", errs.ErrConfiguration, db.Driver)
}

// Boot loads the config under opts.Home, opens the store and wires the runner
// and HTTP app. Nothing is started; Close releases what Boot opened.
func Boot(ctx context.Context, opts StartOptions) (*Service, error) {
	if opts.Home == "" {
		return nil, errors.New("home is required")
	}
	path := opts.ConfigPath
	if path == "" {
		path = config.Path(opts.Home)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(log)

	svc := &Service{Config: cfg, Log: log}
	st, err := OpenStore(ctx, cfg.Database, opts.Home)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc.Store = st
	svc.closers = append(svc.closers, st.Close)

	hub := httpapi.NewSSEHub()
	pub := events.Multi{hub}
	if cfg.Events.RedisURL != "" {
		ropt, err := redis.ParseURL(cfg.Events.RedisURL)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("%w: events.redis_url: %v", errs.ErrConfiguration, err)
		}
		rdb := redis.NewClient(ropt)
		svc.closers = append(svc.closers, rdb.Close)
		pub = append(pub, events.NewRedisStream(rdb, cfg.Events.Stream))
		log.Info("publishing events to redis", "stream", cfg.Events.Stream)
	}

	runner, err := orchestrator.New(orchestrator.Options{
		Config:    cfg,
		Store:     st,
		Home:      opts.Home,
		Publisher: pub,
		Logger:    log,
	})
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.Runner = runner

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if addr == "" {
		if opts.Port == 0 {
			opts.Port = DefaultPort
		}
		addr = fmt.Sprintf("0.0.0.0:%d", opts.Port)
	}
	apiKey := cfg.Server.APIKey
	if k := config.SecretsFromEnv().APIKey; k != "" {
		apiKey = k
	}
	srvOpts := httpapi.ServerOptions{
		Addr:    addr,
		Dev:     opts.Dev,
		APIKey:  apiKey,
		Version: firstNonEmpty(opts.Version, cfg.Version),
	}
	if opts.EnableOtel {
		mp, err := otel.InitMeterProvider(ctx, otel.Resource{
			ServiceName: cfg.Name,
			Version:     srvOpts.Version,
			Environment: cfg.Environment,
		})
		if err != nil {
			log.Warn("otel init failed, serving the default registry", "err", err)
		} else {
			svc.closers = append(svc.closers, func() error { return mp.Shutdown(context.Background()) })
			srvOpts.MetricsHandler = mp.Handler
			srvOpts.UseOtelHTTP = true
			if err := otel.InitMetricsWithGauges(ctx, gauges(runner)); err != nil {
				log.Warn("otel gauges failed", "err", err)
			}
		}
	}
	app, err := httpapi.NewApp(srvOpts, runner, hub)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.App = app
	return svc, nil
}

// StartAgents starts one agent when name is set, otherwise every enabled agent.
func (s *Service) StartAgents(ctx context.Context, name string) error {
	if name != "" {
		s.Log.Info("starting single agent", "agent", name)
		return s.Runner.Start(ctx, name)
	}
	s.Log.Info("starting all agents")
	for n, err := range s.Runner.StartAll(ctx) {
		s.Log.Error("agent failed to start", "agent", n, "err", err)
	}
	return nil
}

// Close stops every running agent, then releases the store and clients.
func (s *Service) Close() error {
	if s.Runner != nil {
		s.Runner.StopAll(context.Background())
	}
	var all []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		all = append(all, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(all...)
}

func gauges(r *orchestrator.Runner) otel.GaugeFuncs {
	return otel.GaugeFuncs{
		RunningAgents: func() int64 { return int64(len(r.RunningNames())) },
		TasksByStatus: func() map[string]int64 {
			s, err := r.Stats(context.Background())
			if err != nil {
				return nil
			}
			out := make(map[string]int64, len(s.TasksByStatus))
			for _, st := range []models.TaskStatus{models.TaskAssigned, models.TaskWorking, models.TaskCompleted, models.TaskFailed} {
				out[string(st)] = int64(s.TasksByStatus[string(st)])
			}
			return out
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
