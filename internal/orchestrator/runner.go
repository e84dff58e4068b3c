// Package orchestrator owns the registry of live agents. It starts, stops and
// restarts them, aggregates their status and is the entry point used by the
// HTTP facade and the daemon.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ankittk/devcrew/internal/agent"
	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/memory"
	"github.com/ankittk/devcrew/internal/otel"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/internal/tasks"
	"github.com/ankittk/devcrew/pkg/models"
)

// Options configure a Runner. Config and Store are required.
type Options struct {
	Config *config.System
	Store  store.Store
	// Home holds per-agent journals, instructions and overrides. Empty disables them.
	Home      string
	Build     Builder
	Publisher events.Publisher
	Logger    *slog.Logger
	// RestartDelay overrides the configured delay when non-nil.
	RestartDelay *time.Duration
}

type entry struct {
	agent   *agent.Agent
	running bool
}

// Runner is safe for concurrent use. mu guards the registry; lifecycle
// operations on one name are serialized by that name's lock.
type Runner struct {
	cfg          *config.System
	st           store.Store
	ledger       *tasks.Ledger
	home         string
	build        Builder
	pub          events.Publisher
	log          *slog.Logger
	restartDelay time.Duration

	mu     sync.Mutex
	agents map[string]*entry
	locks  map[string]*sync.Mutex
}

// New returns a Runner with an empty registry.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: runner needs a system config", errs.ErrConfiguration)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: runner needs a store", errs.ErrConfiguration)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Build == nil {
		opts.Build = NewBuilder(opts.Config, config.SecretsFromEnv(), opts.Logger)
	}
	delay := opts.Config.Restart()
	if opts.RestartDelay != nil {
		delay = *opts.RestartDelay
	}
	return &Runner{
		cfg:          opts.Config,
		st:           opts.Store,
		ledger:       tasks.New(opts.Store),
		home:         opts.Home,
		build:        opts.Build,
		pub:          opts.Publisher,
		log:          opts.Logger,
		restartDelay: delay,
		agents:       make(map[string]*entry),
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// Config returns the system config the runner was built with.
func (r *Runner) Config() *config.System { return r.cfg }

func (r *Runner) lockFor(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}

func (r *Runner) lookup(name string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.agents[name]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// Initialize builds the named agent and registers it without starting it.
// An agent already in the registry is returned as-is.
func (r *Runner) Initialize(ctx context.Context, name string) (*agent.Agent, error) {
	l := r.lockFor(name)
	l.Lock()
	defer l.Unlock()
	return r.initializeLocked(ctx, name)
}

func (r *Runner) initializeLocked(ctx context.Context, name string) (*agent.Agent, error) {
	if e, ok := r.lookup(name); ok {
		return e.agent, nil
	}
	ac, ok := r.cfg.Agent(name)
	if !ok {
		return nil, fmt.Errorf("%w: agent %q is not configured", errs.ErrNotFound, name)
	}
	in, err := r.build(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}
	opts := agent.Options{
		Store:          r.st,
		Ledger:         r.ledger,
		Completer:      in.Completer,
		Messenger:      in.Messenger,
		CodeHost:       in.CodeHost,
		Publisher:      r.pub,
		DefaultChannel: r.cfg.DefaultChannel(),
		DefaultRepo:    r.cfg.GitHub.DefaultRepo,
		BaseBranch:     r.cfg.GitHub.BaseBranch,
		Model:          ac.Model,
		MaxTokens:      r.cfg.Completion.MaxTokens,
		Temperature:    r.cfg.Completion.Temperature,
		Logger:         r.log,
	}
	if opts.Model == "" {
		opts.Model = r.cfg.Completion.Model
	}
	if r.home != "" {
		r.applyHome(name, &opts)
	}
	a, err := agent.New(ctx, identityFor(ac), opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.agents[name] = &entry{agent: a}
	r.mu.Unlock()
	r.log.Info("agent initialized", "agent", name, "role", ac.ParsedRole(), "integrations", a.Integrations())
	return a, nil
}

// applyHome layers home/agents/<name> files over opts. Unreadable files are logged and skipped.
func (r *Runner) applyHome(name string, opts *agent.Options) {
	dir := memory.AgentDir(r.home, name)
	if over, err := memory.LoadAgentConfig(dir); err != nil {
		r.log.Warn("agent config override unreadable", "agent", name, "err", err)
	} else {
		m := over.Merge(memory.AgentConfig{Model: opts.Model, MaxTokens: opts.MaxTokens, Temperature: opts.Temperature})
		opts.Model, opts.MaxTokens, opts.Temperature = m.Model, m.MaxTokens, m.Temperature
	}
	if instr, err := memory.ReadInstructions(dir); err != nil {
		r.log.Warn("agent instructions unreadable", "agent", name, "err", err)
	} else {
		opts.Instructions = instr
	}
	opts.Journal = &memory.Journal{AgentName: name, Home: r.home}
}

func identityFor(ac config.Agent) agent.Identity {
	id := agent.NewIdentity(ac.Name, ac.ParsedRole())
	id.Model = ac.Model
	id.Personality = ac.Personality
	id.JobDescription = ac.JobDescription
	id.Goal = ac.Goal
	id.SystemPrompt = ac.SystemPrompt
	id.SlackUsername = ac.SlackUsername
	id.GitHubUsername = ac.GitHubUsername
	return id
}

// Start initializes the agent if needed, opens its messenger session and
// announces it on the default channel. Starting a running agent is a no-op.
// A messenger that fails to start is logged; the agent runs without inbound messages.
func (r *Runner) Start(ctx context.Context, name string) error {
	l := r.lockFor(name)
	l.Lock()
	defer l.Unlock()

	if e, ok := r.lookup(name); ok && e.running {
		return nil
	}
	a, err := r.initializeLocked(ctx, name)
	if err != nil {
		r.log.Error("agent start failed", "agent", name, "err", err)
		return err
	}
	if m := a.Messenger(); m != nil {
		if err := m.Start(ctx, a.HandleInbound); err != nil {
			r.log.Warn("messenger start failed", "agent", name, "messenger", m.Name(), "err", err)
		}
	}
	r.mu.Lock()
	r.agents[name].running = true
	r.mu.Unlock()

	r.announce(ctx, a, fmt.Sprintf("🚀 %s is now online and ready to help with %s tasks!", name, a.Identity().Role))
	r.log.Info("agent started", "agent", name)
	otel.RecordLifecycle(ctx, name, "start")
	r.publish(ctx, events.AgentStarted, name)
	return nil
}

// Stop announces the departure, shuts the agent down and removes it from the
// registry. Stopping an agent that is not running does nothing.
func (r *Runner) Stop(ctx context.Context, name string) error {
	l := r.lockFor(name)
	l.Lock()
	defer l.Unlock()
	return r.stopLocked(ctx, name)
}

func (r *Runner) stopLocked(ctx context.Context, name string) error {
	e, ok := r.lookup(name)
	if !ok || !e.running {
		return nil
	}
	r.announce(ctx, e.agent, fmt.Sprintf("👋 %s is going offline. Goodbye!", name))
	e.agent.Shutdown(ctx)

	r.mu.Lock()
	delete(r.agents, name)
	r.mu.Unlock()
	r.log.Info("agent stopped", "agent", name)
	otel.RecordLifecycle(ctx, name, "stop")
	r.publish(ctx, events.AgentStopped, name)
	return nil
}

// Restart stops the agent, waits the restart delay and starts it again. The
// wait ignores ctx.
func (r *Runner) Restart(ctx context.Context, name string) error {
	if _, ok := r.cfg.Agent(name); !ok {
		return fmt.Errorf("%w: agent %q is not configured", errs.ErrNotFound, name)
	}
	r.log.Info("restarting agent", "agent", name)
	if err := r.Stop(ctx, name); err != nil {
		return err
	}
	time.Sleep(r.restartDelay)
	if err := r.Start(ctx, name); err != nil {
		return err
	}
	otel.RecordLifecycle(ctx, name, "restart")
	r.publish(ctx, events.AgentRestarted, name)
	return nil
}

// StartAll starts every enabled agent in config order. Failures are collected
// per name and do not stop the loop.
func (r *Runner) StartAll(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, ac := range r.cfg.Agents {
		if !ac.IsEnabled() {
			continue
		}
		if err := r.Start(ctx, ac.Name); err != nil {
			failed[ac.Name] = err
		}
	}
	r.log.Info("start all finished", "running", r.RunningNames(), "failed", len(failed))
	return failed
}

// StopAll stops every running agent in config order, then any others by name.
func (r *Runner) StopAll(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	seen := make(map[string]bool)
	names := append([]string(nil), r.cfg.AgentNames()...)
	for _, n := range r.RunningNames() {
		if !contains(names, n) {
			names = append(names, n)
		}
	}
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if err := r.Stop(ctx, n); err != nil {
			failed[n] = err
		}
	}
	r.log.Info("stop all finished", "failed", len(failed))
	return failed
}

// Running returns the live agent, if it is running.
func (r *Runner) Running(name string) (*agent.Agent, bool) {
	e, ok := r.lookup(name)
	if !ok || !e.running {
		return nil, false
	}
	return e.agent, true
}

// RunningNames returns the names of running agents, sorted.
func (r *Runner) RunningNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for n, e := range r.agents {
		if e.running {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Status reports on one agent. It never fails: an agent that is not running
// reports not_running, and a panic while reading degrades to status error.
func (r *Runner) Status(name string) (rep models.AgentStatusReport) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("status read failed", "agent", name, "panic", p)
			rep = models.AgentStatusReport{Name: name, Status: models.AgentError, Error: fmt.Sprint(p)}
		}
	}()
	a, ok := r.Running(name)
	if !ok {
		return models.AgentStatusReport{Name: name, Status: models.AgentNotRunning}
	}
	return a.Report()
}

// StatusAll reports on every configured agent.
func (r *Runner) StatusAll() map[string]models.AgentStatusReport {
	out := make(map[string]models.AgentStatusReport, len(r.cfg.Agents))
	for _, n := range r.cfg.AgentNames() {
		out[n] = r.Status(n)
	}
	return out
}

// Agents lists configured agents with their running state.
func (r *Runner) Agents() []models.Agent {
	out := make([]models.Agent, 0, len(r.cfg.Agents))
	for _, ac := range r.cfg.Agents {
		rep := r.Status(ac.Name)
		out = append(out, models.Agent{
			ID:      agent.IDFor(ac.Name),
			Name:    ac.Name,
			Role:    ac.ParsedRole(),
			Model:   ac.Model,
			Enabled: ac.IsEnabled(),
			Running: rep.Status != models.AgentNotRunning,
			Status:  rep.Status,
		})
	}
	return out
}

func (r *Runner) announce(ctx context.Context, a *agent.Agent, text string) {
	m, ch := a.Messenger(), a.DefaultChannel()
	if m == nil || ch == "" {
		return
	}
	if err := m.Send(ctx, ch, text, ""); err != nil {
		r.log.Warn("presence notice failed", "agent", a.Name(), "err", err)
	}
}

func (r *Runner) publish(ctx context.Context, typ, name string) {
	if err := r.pub.Publish(ctx, events.Stamp(events.Event{Type: typ, Agent: name})); err != nil {
		r.log.Debug("publish event failed", "type", typ, "err", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
