// Package notifications wires the notification system into a runnable
// unit: Postgres and Redis connections, storages, the notifier facade,
// the delivery worker and scheduler, and an HTTP surface with REST and
// WebSocket endpoints. Hosts supply the employee directory and request
// authentication; everything else is assembled here.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zayyadi/paroll-sub001/pkg/aggregate"
	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/delivery"
	"github.com/zayyadi/paroll-sub001/pkg/digest"
	"github.com/zayyadi/paroll-sub001/pkg/email"
	"github.com/zayyadi/paroll-sub001/pkg/event"
	"github.com/zayyadi/paroll-sub001/pkg/httpserver"
	"github.com/zayyadi/paroll-sub001/pkg/logger"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/notifier"
	"github.com/zayyadi/paroll-sub001/pkg/pg"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
	"github.com/zayyadi/paroll-sub001/pkg/push"
	"github.com/zayyadi/paroll-sub001/pkg/queue"
	"github.com/zayyadi/paroll-sub001/pkg/ratelimit"
	"github.com/zayyadi/paroll-sub001/pkg/realtime"
	"github.com/zayyadi/paroll-sub001/pkg/redis"
	"github.com/zayyadi/paroll-sub001/pkg/sms"
	"github.com/zayyadi/paroll-sub001/pkg/template"
)

// Periodic task names registered with the scheduler. They double as the
// queue task names the worker dispatches on.
const (
	taskDigestHourly = "notifications.digest.hourly"
	taskDigestDaily  = "notifications.digest.daily"
	taskDigestWeekly = "notifications.digest.weekly"
	taskArchiveSweep = "notifications.archive.sweep"
)

// Deps are the host-supplied collaborators the module cannot know about
// itself: who employees are and how requests prove who they are.
type Deps struct {
	// Directory resolves employee IDs to delivery contact details.
	Directory delivery.Directory

	// Events resolves event actors to recipients (HR staff, display
	// names) for the event-to-notification fan-out.
	Events event.Directory

	// Auth extracts the authenticated recipient from an HTTP request,
	// used by both the REST and WebSocket endpoints.
	Auth realtime.Authenticator
}

func (d Deps) validate() error {
	if d.Directory == nil {
		return errors.New("notifications: Deps.Directory is required")
	}
	if d.Events == nil {
		return errors.New("notifications: Deps.Events is required")
	}
	if d.Auth == nil {
		return errors.New("notifications: Deps.Auth is required")
	}
	return nil
}

// Module is the assembled notification system.
type Module struct {
	cfg    Config
	deps   Deps
	log    *slog.Logger
	pool   *pgxpool.Pool
	rdb    *goredis.Client
	hub    *realtime.Hub
	svc    *notifier.Service
	prefs  *preference.Service
	disp   *event.Dispatcher
	orch   *delivery.Orchestrator
	tokens push.TokenRegistry
	worker *queue.Worker
	sched  *queue.Scheduler
	server *httpserver.Server
	router chi.Router
}

// New connects the infrastructure, applies migrations and wires every
// service. The returned module is inert until Run is called.
func New(ctx context.Context, cfg Config, deps Deps) (*Module, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	log := logger.NewFromConfig(cfg.Logger).With(slog.String("module", "notifications"))

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.Migrate(ctx, pool, Migrations()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	m := &Module{cfg: cfg, deps: deps, log: log, pool: pool, rdb: rdb}
	if err := m.wire(ctx); err != nil {
		m.Close()
		return nil, err
	}

	m.disp = event.NewDispatcher(event.WithLogger(log))
	event.NewNotifications(m.svc, deps.Events,
		event.WithNotificationsLogger(log),
		event.WithBaseURL(cfg.BaseURL),
	).RegisterAll(m.disp)

	ws := realtime.NewHandler(m.hub, m.svc, deps.Auth, realtime.WithLogger(log))
	m.router = newRouter(routerDeps{
		svc:      m.svc,
		prefs:    m.prefs,
		registry: m.tokens,
		ws:       ws,
		auth:     deps.Auth,
		logger:   log,
		health: []func(context.Context) error{
			pg.Healthcheck(pool),
			redis.Healthcheck(rdb),
		},
	})
	m.server = httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	return m, nil
}

// wire assembles storages and services over the established connections.
// Deps.Directory is already captured in the orchestrator and notifier.
func (m *Module) wire(ctx context.Context) error {
	c := cache.NewRedisCache(m.rdb, cache.WithTTLs(m.cfg.Cache.ListTTL, m.cfg.Cache.PreferenceTTL))

	store := notification.NewPostgresStorage(m.pool)
	prefStore := preference.NewPostgresStorage(m.pool)
	logStore := delivery.NewPostgresLogStorage(m.pool)
	queueStore := queue.NewPostgresStorage(m.pool)
	m.tokens = push.NewPostgresRegistry(m.pool)

	enq, err := queue.NewEnqueuer(queueStore)
	if err != nil {
		return fmt.Errorf("create enqueuer: %w", err)
	}

	m.hub = realtime.NewHub()
	m.prefs = preference.NewService(prefStore, c)

	m.orch = delivery.NewOrchestrator(logStore, store, m.deps.Directory, enq, delivery.WithLogger(m.log))
	m.orch.Register(delivery.NewRealtimeHandler(m.hub, c, m.log))
	m.orch.Register(delivery.NewEmailHandler(m.emailSender(), template.NewRegistry(), m.log))

	smsSender, err := sms.NewSNSSender(ctx, m.cfg.SMS)
	if err != nil {
		return fmt.Errorf("create sms sender: %w", err)
	}
	smsLimiter, err := ratelimit.NewLimiter(ratelimit.NewRedisStore(m.rdb), m.cfg.SMSRate)
	if err != nil {
		return fmt.Errorf("create sms rate limiter: %w", err)
	}
	m.orch.Register(delivery.NewSMSHandler(smsSender, smsLimiter, m.log))
	m.orch.Register(delivery.NewPushHandler(m.pushProvider(ctx), m.tokens, m.log))

	m.svc = notifier.NewService(store, m.prefs, aggregate.NewService(store), m.orch, c, m.deps.Directory, notifier.WithLogger(m.log))

	digests := digest.NewService(store, prefStore, m.svc, digest.WithLogger(m.log))
	archiver := notification.NewArchiver(store, notification.NewPostgresArchiveStorage(m.pool),
		notification.WithArchiverLogger(m.log))

	m.worker, err = queue.NewWorker(queueStore,
		queue.WithWorkerLogger(m.log),
		queue.WithPullInterval(m.cfg.Queue.PollInterval),
		queue.WithLockTimeout(m.cfg.Queue.LockTimeout),
		queue.WithShutdownTimeout(m.cfg.Queue.ShutdownTimeout),
		queue.WithMaxConcurrentTasks(m.cfg.Queue.MaxConcurrentTasks),
	)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	m.worker.RegisterHandlers(
		queue.NewTaskHandler(m.orch.Process),
		periodicDigest(taskDigestHourly, digests, preference.DigestHourly),
		periodicDigest(taskDigestDaily, digests, preference.DigestDaily),
		periodicDigest(taskDigestWeekly, digests, preference.DigestWeekly),
		queue.NewPeriodicTaskHandler(taskArchiveSweep, func(ctx context.Context) error {
			_, err := archiver.Sweep(ctx)
			return err
		}),
	)

	m.sched, err = queue.NewScheduler(queueStore, queue.WithSchedulerLogger(m.log))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	for _, t := range []struct {
		name     string
		schedule queue.Schedule
	}{
		{taskDigestHourly, queue.HourlyAt(0)},
		{taskDigestDaily, queue.DailyAt(7, 0)},
		{taskDigestWeekly, queue.WeeklyOn(time.Monday, 7, 0)},
		{taskArchiveSweep, queue.DailyAt(3, 0)},
	} {
		if err := m.sched.AddTask(t.name, t.schedule, queue.WithTaskLane(queue.LaneLow)); err != nil {
			return fmt.Errorf("schedule %s: %w", t.name, err)
		}
	}
	return nil
}

func periodicDigest(name string, svc *digest.Service, freq preference.DigestFrequency) queue.Handler {
	return queue.NewPeriodicTaskHandler(name, func(ctx context.Context) error {
		_, err := svc.Run(ctx, freq)
		return err
	})
}

// emailSender picks the Postmark sender when tokens are configured, the
// logging dev sender otherwise.
func (m *Module) emailSender() email.Sender {
	if m.cfg.Email.PostmarkServerToken == "" {
		m.log.Warn("postmark not configured, using dev email sender")
		return email.NewDevSender(m.log)
	}
	sender, err := email.NewPostmarkSender(m.cfg.Email)
	if err != nil {
		m.log.Warn("postmark config invalid, using dev email sender", logger.Error(err))
		return email.NewDevSender(m.log)
	}
	return sender
}

// pushProvider returns nil when no platform application is configured;
// the push handler reports configuration_missing and the delivery log
// records it as a retryable failure.
func (m *Module) pushProvider(ctx context.Context) push.Provider {
	if m.cfg.Push.PlatformAppARN == "" {
		m.log.Warn("push platform application not configured")
		return nil
	}
	provider, err := push.NewSNSProvider(ctx, m.cfg.Push)
	if err != nil {
		m.log.Warn("push provider unavailable", logger.Error(err))
		return nil
	}
	return provider
}

// Dispatcher exposes the event dispatcher so business workflows can
// raise events: m.Dispatcher().Dispatch(ctx, event.PayrollProcessed, ev).
func (m *Module) Dispatcher() *event.Dispatcher { return m.disp }

// Notifier exposes the notification facade for direct sends.
func (m *Module) Notifier() *notifier.Service { return m.svc }

// Handler returns the module's HTTP surface for mounting into a host
// router.
func (m *Module) Handler() http.Handler { return m.router }

// Run starts the worker, the scheduler and the HTTP server, and blocks
// until the context is canceled or one of them fails. Shutdown is
// graceful: in-flight deliveries finish within the queue's shutdown
// timeout.
func (m *Module) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(m.worker.Run(ctx))
	g.Go(func() error { return m.sched.Start(ctx) })
	g.Go(func() error { return m.server.Run(ctx, m.router) })

	err := g.Wait()
	m.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases connections and disconnects realtime clients. Safe to
// call more than once.
func (m *Module) Close() {
	if m.hub != nil {
		_ = m.hub.Close()
	}
	if m.rdb != nil {
		_ = m.rdb.Close()
	}
	if m.pool != nil {
		m.pool.Close()
	}
}
