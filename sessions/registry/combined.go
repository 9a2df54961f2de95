// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/manager"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
	"github.com/deephaven/deephaven-mcp-sub000/shared/tracing"
)

// ErrClosed is returned by Initialize on a registry that has been closed.
var ErrClosed = errors.New("registry closed")

// CombinedOptions configures a CombinedRegistry.
type CombinedOptions struct {
	// CommunityConnect opens community sessions. Required.
	CommunityConnect manager.CommunityConnectFunc

	// FactoryBuilder creates enterprise factories. Required.
	FactoryBuilder FactoryBuilder

	// EnterpriseConnect overrides how discovered sessions connect. By
	// default the source's cached controller client is used.
	EnterpriseConnect manager.EnterpriseConnectFunc

	Logger  *logger.Logger
	Metrics *Metrics
	Tracer  trace.Tracer

	// Now is the clock used for backoff. Defaults to time.Now.
	Now func() time.Time
}

// discoveryTask is the handle of the background discovery goroutine.
type discoveryTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// CombinedRegistry unifies static community sessions with enterprise
// sessions discovered from each system's controller.
//
// Two locks guard it. mu (the main lock) protects all mutable state and is
// only held for fast, non-blocking work. refresh (the refresh lock, a
// one-slot semaphore so waiters can give up) serializes reconciliation
// passes and is held across network I/O. Lock order is refresh then mu;
// mu is never held while waiting for refresh.
type CombinedRegistry struct {
	mu      sync.Mutex
	refresh *semaphore.Weighted

	// passes is cancelled by Close to abort in-flight passes that outlive
	// its deadline.
	passes       context.Context
	cancelPasses context.CancelFunc

	initialized bool
	closed      bool
	phase       InitializationPhase
	phaseCh     chan struct{} // closed and replaced on every phase change
	items       map[string]*manager.SessionManager
	errors      map[string]string
	clients     map[string]base.ControllerClient
	added       map[string]bool // added full name -> listed by its controller yet
	quotas      map[string]int
	community   *CommunityRegistry
	factories   *FactoryRegistry
	task        *discoveryTask
	discovery   config.DiscoveryConfig
	backoff     *sourceBackoff

	communityConnect  manager.CommunityConnectFunc
	factoryBuilder    FactoryBuilder
	enterpriseConnect manager.EnterpriseConnectFunc

	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time
	logger  *logger.Logger
}

// NewCombinedRegistry creates an uninitialized registry.
func NewCombinedRegistry(opts CombinedOptions) *CombinedRegistry {
	log := opts.Logger
	if log == nil {
		log = logger.New("combined_registry")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	passes, cancelPasses := context.WithCancel(context.Background())
	r := &CombinedRegistry{
		refresh:          semaphore.NewWeighted(1),
		passes:           passes,
		cancelPasses:     cancelPasses,
		phase:            PhaseNotStarted,
		phaseCh:          make(chan struct{}),
		items:            make(map[string]*manager.SessionManager),
		errors:           make(map[string]string),
		clients:          make(map[string]base.ControllerClient),
		added:            make(map[string]bool),
		quotas:           make(map[string]int),
		backoff:          newSourceBackoff(0, 0),
		communityConnect: opts.CommunityConnect,
		factoryBuilder:   opts.FactoryBuilder,
		metrics:          metrics,
		tracer:           tracer,
		now:              now,
		logger:           log,
	}
	r.enterpriseConnect = opts.EnterpriseConnect
	if r.enterpriseConnect == nil {
		r.enterpriseConnect = r.connectViaClient
	}
	r.metrics.phase.Set(float64(PhaseNotStarted))
	return r
}

// Initialize loads the configuration from src once, builds the community
// sessions and enterprise factories from it, moves to PhasePartial and
// starts background discovery. Calling it again is a no-op. Invalid
// configuration is rejected before anything is built.
func (r *CombinedRegistry) Initialize(ctx context.Context, src config.Source) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	// The source may hit disk or an object store, so it is read without
	// the main lock.
	cfg, err := src.Config(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loaded := config.NewStaticSource(cfg)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.initialized {
		r.mu.Unlock()
		return nil
	}

	community := NewCommunityRegistry(r.communityConnect, r.logger)
	if err := community.Initialize(ctx, loaded); err != nil {
		r.mu.Unlock()
		return err
	}
	factories := NewFactoryRegistry(r.factoryBuilder, r.logger)
	if err := factories.Initialize(ctx, loaded); err != nil {
		r.mu.Unlock()
		_ = community.Close(ctx)
		return err
	}

	snap, err := community.GetAll()
	if err != nil || !snap.IsSimple() || len(snap.Errors()) != 0 {
		panic(base.NewInvariantError(fmt.Sprintf("community registry returned phase %s with %d errors", snap.Phase(), len(snap.Errors())), err))
	}
	for key, m := range snap.Items() {
		r.items[key] = m
	}

	for source, sys := range cfg.Enterprise.Systems {
		r.quotas[source] = sys.MaxAddedSessions
	}
	r.discovery = cfg.Discovery
	r.backoff = newSourceBackoff(cfg.Discovery.BackoffInitial, cfg.Discovery.BackoffMax)
	r.community = community
	r.factories = factories
	r.initialized = true
	r.setPhaseLocked(PhasePartial)
	r.updateItemGauges()

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := &discoveryTask{cancel: cancel, done: make(chan struct{})}
	r.task = task
	r.mu.Unlock()

	r.logger.Info("Combined registry initialized", map[string]interface{}{
		"community_sessions": snap.Len(),
		"enterprise_systems": len(cfg.Enterprise.Systems),
	})

	go r.runDiscovery(taskCtx, task)
	return nil
}

// runDiscovery is the background task: one full discovery pass, then
// periodic passes when discovery.refresh_interval is set.
func (r *CombinedRegistry) runDiscovery(ctx context.Context, task *discoveryTask) {
	defer close(task.done)

	r.mu.Lock()
	if r.phase == PhasePartial {
		r.setPhaseLocked(PhaseLoading)
	}
	interval := r.discovery.RefreshInterval
	r.mu.Unlock()

	sources, err := r.Sources()
	if err == nil {
		err = r.syncEnterpriseSessions(ctx, sources, syncBackground)
	}
	if err != nil || ctx.Err() != nil {
		r.mu.Lock()
		r.setPhaseLocked(PhaseFailed)
		r.mu.Unlock()
		r.logger.Info("Enterprise discovery cancelled", nil)
		return
	}

	r.mu.Lock()
	r.setPhaseLocked(PhaseCompleted)
	errCount := len(r.errors)
	r.mu.Unlock()
	r.logger.Info("Enterprise discovery completed", map[string]interface{}{
		"sources":       len(sources),
		"source_errors": errCount,
	})

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sources, err := r.Sources()
			if err != nil {
				return
			}
			if err := r.syncEnterpriseSessions(ctx, sources, syncBackground); err != nil {
				return
			}
		}
	}
}

// setPhaseLocked must be called with the main lock held.
func (r *CombinedRegistry) setPhaseLocked(phase InitializationPhase) {
	if r.phase == phase {
		return
	}
	r.phase = phase
	close(r.phaseCh)
	r.phaseCh = make(chan struct{})
	r.metrics.phase.Set(float64(phase))
}

// Phase returns the current initialization phase.
func (r *CombinedRegistry) Phase() InitializationPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// WaitForPhase blocks until the registry is in one of phases or ctx is done.
func (r *CombinedRegistry) WaitForPhase(ctx context.Context, phases ...InitializationPhase) (InitializationPhase, error) {
	for {
		r.mu.Lock()
		current, ch := r.phase, r.phaseCh
		r.mu.Unlock()

		for _, p := range phases {
			if current == p {
				return current, nil
			}
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return current, ctx.Err()
		}
	}
}

// Sources returns the configured enterprise source names, sorted.
func (r *CombinedRegistry) Sources() ([]string, error) {
	r.mu.Lock()
	factories := r.factories
	initialized := r.initialized
	r.mu.Unlock()

	if !initialized {
		return nil, base.ErrNotInitialized
	}
	snap, err := factories.GetAll()
	if err != nil {
		return nil, err
	}
	return snap.Names(), nil
}

// readPhase returns the phase, failing when not initialized.
func (r *CombinedRegistry) readPhase() (InitializationPhase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return 0, base.ErrNotInitialized
	}
	return r.phase, nil
}

// Get returns the manager of the session name ("type:source:name"). Once
// discovery completed, an enterprise name first refreshes its source.
func (r *CombinedRegistry) Get(ctx context.Context, name string) (*manager.SessionManager, error) {
	phase, err := r.readPhase()
	if err != nil {
		return nil, err
	}
	fn, err := base.ParseFullName(name)
	if err != nil {
		return nil, err
	}

	if phase == PhaseCompleted && fn.SystemType == base.SystemTypeEnterprise && r.isKnownSource(fn.Source) {
		if err := r.syncEnterpriseSessions(ctx, []string{fn.Source}, syncOnDemand); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return nil, base.ErrNotInitialized
	}
	if m, ok := r.items[name]; ok {
		return m, nil
	}
	lookupErr := &LookupError{Name: name, Phase: r.phase}
	if fn.SystemType == base.SystemTypeEnterprise {
		lookupErr.SourceError = r.errors[fn.Source]
	}
	return nil, lookupErr
}

// GetAll returns a snapshot of every session with the phase and the
// per-source discovery errors. Once discovery completed, every source is
// refreshed first.
func (r *CombinedRegistry) GetAll(ctx context.Context) (Snapshot[*manager.SessionManager], error) {
	phase, err := r.readPhase()
	if err != nil {
		return Snapshot[*manager.SessionManager]{}, err
	}

	if phase == PhaseCompleted {
		sources, err := r.Sources()
		if err != nil {
			return Snapshot[*manager.SessionManager]{}, err
		}
		if err := r.syncEnterpriseSessions(ctx, sources, syncOnDemand); err != nil {
			return Snapshot[*manager.SessionManager]{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized {
		return Snapshot[*manager.SessionManager]{}, base.ErrNotInitialized
	}
	return NewPhasedSnapshot(r.items, r.phase, r.errors), nil
}

// SyncSources runs a reconciliation pass for sources, or for every source
// when none are given. Backoff does not apply. Per-source failures are
// reported through GetAll, not returned.
func (r *CombinedRegistry) SyncSources(ctx context.Context, sources ...string) error {
	if _, err := r.readPhase(); err != nil {
		return err
	}
	if len(sources) == 0 {
		all, err := r.Sources()
		if err != nil {
			return err
		}
		sources = all
	}
	return r.syncEnterpriseSessions(ctx, sources, syncExplicit)
}

func (r *CombinedRegistry) isKnownSource(source string) bool {
	r.mu.Lock()
	factories := r.factories
	r.mu.Unlock()
	if factories == nil {
		return false
	}
	_, err := factories.Get(source)
	return err == nil
}

// connectViaClient connects a discovered session through the source's
// cached controller client.
func (r *CombinedRegistry) connectViaClient(ctx context.Context, source, name string) (base.Session, error) {
	r.mu.Lock()
	client := r.clients[source]
	r.mu.Unlock()

	if client == nil {
		return nil, base.NewSessionError(source, "ConnectSession", "no controller client available for source", base.ErrNotFound)
	}
	sess, err := client.ConnectSession(ctx, name)
	if err != nil {
		return nil, base.NewSessionError(source, "ConnectSession", fmt.Sprintf("failed to connect to '%s'", name), err)
	}
	return sess, nil
}

// connectEnterprise is the connect function wired into discovered session
// managers.
func (r *CombinedRegistry) connectEnterprise(ctx context.Context, source, name string) (base.Session, error) {
	return r.enterpriseConnect(ctx, source, name)
}

// updateItemGauges must be called with the main lock held.
func (r *CombinedRegistry) updateItemGauges() {
	counts := map[base.SystemType]int{}
	for _, m := range r.items {
		counts[m.SystemType()]++
	}
	for _, st := range base.ValidSystemTypes {
		r.metrics.items.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	r.metrics.addedSessions.Set(float64(len(r.added)))
}

// Close shuts the registry down. The steps are ordered so that no resource
// is closed while a reconciliation pass may still use it:
//
//	(a) main lock: mark uninitialized, take the task and sub-registries
//	(b) acquire and release the refresh lock to wait out an in-flight pass;
//	    if ctx expires first, in-flight passes are cancelled and the wait
//	    continues until they unwind
//	(c) cancel the discovery task and wait for it
//	(d) close both sub-registries
//	(e) main lock: clear clients, added set, phase and errors, drain items
//	(f) close the drained items and clients
//
// Closing an uninitialized registry is a no-op.
func (r *CombinedRegistry) Close(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, tracing.SpanShutdown)
	defer span.End()

	// (a)
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.initialized = false
	r.closed = true
	task := r.task
	r.task = nil
	community, factories := r.community, r.factories
	r.community, r.factories = nil, nil
	r.mu.Unlock()

	// (b)
	if err := r.refresh.Acquire(ctx, 1); err != nil {
		r.logger.Warn("Reconciliation still running at shutdown deadline, cancelling it", nil)
		r.cancelPasses()
		if task != nil {
			task.cancel()
		}
		_ = r.refresh.Acquire(context.Background(), 1)
	}
	r.refresh.Release(1)

	// (c)
	r.cancelPasses()
	if task != nil {
		task.cancel()
		select {
		case <-task.done:
		case <-ctx.Done():
			// The task was cancelled above and only needs the main lock
			// to finish; it must not outlive step (e).
			r.logger.Warn("Shutdown deadline passed, waiting for discovery task to unwind", nil)
			<-task.done
		}
	}

	// (d)
	if err := community.Close(ctx); err != nil {
		r.logger.ErrorWithErr("Failed to close community registry", err, nil)
	}
	if err := factories.Close(ctx); err != nil {
		r.logger.ErrorWithErr("Failed to close factory registry", err, nil)
	}

	// (e)
	r.mu.Lock()
	clients := r.clients
	items := r.items
	r.clients = make(map[string]base.ControllerClient)
	r.items = make(map[string]*manager.SessionManager)
	r.added = make(map[string]bool)
	r.errors = make(map[string]string)
	r.backoff.reset()
	r.setPhaseLocked(PhaseNotStarted)
	r.updateItemGauges()
	r.mu.Unlock()

	// (f)
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := items[key].Close(ctx); err != nil {
			r.logger.ErrorWithErr("Failed to close session", err, map[string]interface{}{"full_name": key})
		}
	}
	for source, c := range clients {
		if err := c.Close(ctx); err != nil {
			r.logger.WarnWithErr("Failed to close controller client", err, map[string]interface{}{"source": source})
		}
	}

	r.logger.Info("Combined registry closed", map[string]interface{}{"sessions": len(items)})
	return nil
}
