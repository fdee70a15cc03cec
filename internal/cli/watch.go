package cli

import (
	"bufio"
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawinfra/smartroute/internal/config"
	"github.com/clawinfra/smartroute/internal/metrics"
	"github.com/clawinfra/smartroute/internal/router"
	"github.com/clawinfra/smartroute/internal/scheduler"
)

// WatchRequest is one line of 'smartroute watch' input. A line that is not
// a JSON object is routed as plain input text.
type WatchRequest struct {
	Input       string `json:"input"`
	Attachments bool   `json:"attachments,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	RequestID   string `json:"requestId,omitempty"`

	// Answer, when present, is checked against the decision for RequestID.
	// An empty answer is still assessed.
	Answer *string `json:"answer,omitempty"`

	// Report feeds a model call outcome into the health tracker.
	Report *ModelReport `json:"report,omitempty"`
}

// ModelReport is the outcome of one call to a model.
type ModelReport struct {
	Model string `json:"model"`
	Error string `json:"error,omitempty"`
}

// WatchResponse is one line of 'smartroute watch' output.
type WatchResponse struct {
	Decision  *router.RoutingDecision `json:"decision,omitempty"`
	Resolved  string                  `json:"resolvedModel,omitempty"`
	Promotion *router.PromotionResult `json:"promotion,omitempty"`
	Health    *router.ModelHealth     `json:"health,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// watchSession routes requests read line by line.
type watchSession struct {
	router  *router.Router
	health  *router.HealthTracker
	avail   router.Availability
	logger  *slog.Logger
	pending *pendingDecisions
}

// WatchCommand handles 'smartroute watch': a long-running router reading
// newline-delimited requests from stdin and writing one JSON response per
// line, with config hot reload and an optional metrics endpoint. A value on
// reload forces a config re-read.
func WatchCommand(ctx context.Context, args []string, configPath string, s Streams, reload <-chan os.Signal) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(s.Err)
	interval := fs.Duration("interval", 2*time.Second, "Config poll interval")
	notify := fs.Bool("notify", false, "Watch the config file with filesystem events instead of polling")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides server.metricsAddr)")
	requireKeys := fs.Bool("require-keys", false, "Only resolve models whose provider API key is set")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	level := new(slog.LevelVar)
	logger := newLogger(s.Err, level)
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	level.Set(config.ParseLevel(cfg.Server.LogLevel))

	hc, err := cfg.HealthConfig()
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	reg := metrics.New()
	r, err := buildRouter(cfg, logger, router.WithRecorder(reg))
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}

	ws := &watchSession{
		router:  r,
		health:  router.NewHealthTracker(hc, logger),
		logger:  logger,
		pending: newPendingDecisions(maxPending),
	}
	ws.avail = ws.health
	if *requireKeys {
		ws.avail = router.AllOf(router.EnvCredentialCheck(nil), ws.health)
	}

	var reloader *config.Reloader
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			reloader = config.NewReloader(configPath, cfg, r, level, logger)
			stop := startWatcher(configPath, *interval, *notify, logger, reloader.OnChange)
			defer stop()
		}
	}

	sched, err := newMaintenance(cfg.Maintenance, ws, logger)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}

	addr := cfg.Server.MetricsAddr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if reloader != nil && reload != nil {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case sig := <-reload:
					logger.Info("reload signal received", "signal", sig)
					reloader.OnChange()
				}
			}
		})
	}

	sched.Start(gCtx)

	g.Go(func() error {
		defer cancel()
		return ws.serve(gCtx, s.In, s.Out)
	})

	err = g.Wait()
	sched.Stop()

	persistOnExit(sched, ws, logger)
	ws.logStats("watch stopped", "jobs", sched.GetStats())

	if err != nil {
		fmt.Fprintf(s.Err, "Error: %v\n", err)
		return 1
	}
	return 0
}

const persistHealthJob = "persist-health"

// newMaintenance builds the periodic jobs named in the maintenance section.
func newMaintenance(mc config.MaintenanceConfig, ws *watchSession, logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(logger)
	jobs := []struct {
		name, spec string
		run        scheduler.Func
	}{
		{persistHealthJob, mc.PersistHealth, func(context.Context) error { return ws.health.Persist() }},
		{"report-stats", mc.ReportStats, func(context.Context) error {
			ws.logStats("routing stats", "jobs", sched.GetStats())
			return nil
		}},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		job, err := scheduler.NewJob(j.name, j.spec, j.run)
		if err != nil {
			return nil, fmt.Errorf("maintenance: %w", err)
		}
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// persistOnExit saves model health one last time, through the persist-health
// job when it is scheduled so its run counters stay accurate.
func persistOnExit(sched *scheduler.Scheduler, ws *watchSession, logger *slog.Logger) {
	if _, ok := sched.State(persistHealthJob); ok {
		// failures are logged by the scheduler
		_ = sched.RunJobNow(context.Background(), persistHealthJob)
		return
	}
	if err := ws.health.Persist(); err != nil {
		logger.Error("failed to persist model health", "error", err)
	}
}

func (ws *watchSession) logStats(msg string, attrs ...any) {
	stats := ws.router.Stats()
	args := []any{
		"events", stats.Total,
		"promotions", stats.Promotions,
		"avg_score", stats.AverageScore,
		"degraded", strings.Join(ws.health.DegradedModels(), ","),
	}
	ws.logger.Info(msg, append(args, attrs...)...)
}

func startWatcher(path string, interval time.Duration, notify bool, logger *slog.Logger, onChange func()) (stop func()) {
	if notify {
		nw, err := config.NewNotifyWatcher(path, 200*time.Millisecond, logger, onChange)
		if err == nil {
			if err = nw.Start(); err == nil {
				return nw.Stop
			}
			nw.Stop()
		}
		logger.Warn("fsnotify unavailable, falling back to polling", "error", err)
	}
	w := config.NewWatcher(path, interval, logger, onChange)
	w.Start()
	return w.Stop
}

// serve handles lines from in until EOF or cancellation.
func (ws *watchSession) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read requests: %w", err)
					}
				default:
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := enc.Encode(ws.handle(line)); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

func parseWatchRequest(line string) (WatchRequest, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return WatchRequest{Input: line}, nil
	}
	var req WatchRequest
	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return WatchRequest{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

func (ws *watchSession) handle(line string) WatchResponse {
	req, err := parseWatchRequest(line)
	if err != nil {
		return WatchResponse{Error: err.Error()}
	}

	switch {
	case req.Report != nil:
		return ws.report(*req.Report)
	case req.Answer != nil:
		return ws.check(req)
	default:
		return ws.route(req)
	}
}

func (ws *watchSession) route(req WatchRequest) WatchResponse {
	d := ws.router.Route(router.RouteRequest{
		Input:          req.Input,
		HasAttachments: req.Attachments,
		SessionID:      req.SessionID,
		RequestID:      req.RequestID,
	})
	ws.remember(d)

	resp := WatchResponse{Decision: &d}
	if m, err := ws.router.ResolveModel(d.Tier, ws.avail); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Resolved = m
	}
	return resp
}

func (ws *watchSession) check(req WatchRequest) WatchResponse {
	d, ok := ws.pending.take(req.RequestID)
	if !ok {
		return WatchResponse{Error: fmt.Sprintf("unknown request id %q", req.RequestID)}
	}

	p := ws.router.CheckAndPromote(d, *req.Answer, req.SessionID)
	resp := WatchResponse{Promotion: &p}
	if p.Promoted && p.NewDecision != nil {
		if m, err := ws.router.ResolveModel(p.NewDecision.Tier, ws.avail); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Resolved = m
		}
	}
	return resp
}

func (ws *watchSession) report(rep ModelReport) WatchResponse {
	if rep.Model == "" {
		return WatchResponse{Error: "report without model"}
	}
	if rep.Error == "" {
		ws.health.RecordSuccess(rep.Model)
	} else {
		ws.health.RecordFailure(rep.Model, router.ClassifyError(errors.New(rep.Error)))
	}
	h, _ := ws.health.Status(rep.Model)
	return WatchResponse{Health: &h}
}

// maxPending bounds decisions held for a later answer check.
const maxPending = 1000

func (ws *watchSession) remember(d router.RoutingDecision) {
	if id, evicted := ws.pending.put(d); evicted {
		ws.logger.Debug("dropping unanswered decision", "request_id", id)
	}
}

// pendingDecisions holds decisions awaiting an answer, evicting the oldest
// once limit is reached.
type pendingDecisions struct {
	limit int
	order *list.List // of string request ids, oldest first
	byID  map[string]*list.Element
	items map[string]router.RoutingDecision
}

func newPendingDecisions(limit int) *pendingDecisions {
	return &pendingDecisions{
		limit: limit,
		order: list.New(),
		byID:  make(map[string]*list.Element),
		items: make(map[string]router.RoutingDecision),
	}
}

// put stores d under its request id. A reused id counts as the newest entry.
func (p *pendingDecisions) put(d router.RoutingDecision) (evictedID string, evicted bool) {
	if el, ok := p.byID[d.RequestID]; ok {
		p.order.MoveToBack(el)
		p.items[d.RequestID] = d
		return "", false
	}
	if p.order.Len() >= p.limit {
		oldest := p.order.Front()
		evictedID = p.order.Remove(oldest).(string)
		delete(p.byID, evictedID)
		delete(p.items, evictedID)
		evicted = true
	}
	p.byID[d.RequestID] = p.order.PushBack(d.RequestID)
	p.items[d.RequestID] = d
	return evictedID, evicted
}

func (p *pendingDecisions) take(id string) (router.RoutingDecision, bool) {
	el, ok := p.byID[id]
	if !ok {
		return router.RoutingDecision{}, false
	}
	p.order.Remove(el)
	delete(p.byID, id)
	d := p.items[id]
	delete(p.items, id)
	return d, true
}

func (p *pendingDecisions) size() int { return p.order.Len() }
