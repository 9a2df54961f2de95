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
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/manager"
	"github.com/deephaven/deephaven-mcp-sub000/shared/tracing"
)

// syncMode says who started a reconciliation pass.
type syncMode string

const (
	// syncBackground passes are run by the discovery goroutine.
	syncBackground syncMode = "background"
	// syncOnDemand passes are run by reads once discovery completed.
	// Sources in backoff are skipped.
	syncOnDemand syncMode = "on_demand"
	// syncExplicit passes are requested through SyncSources.
	syncExplicit syncMode = "explicit"
)

// factorySnapshot is the per-source input of the query step.
type factorySnapshot struct {
	source  string
	factory *manager.FactoryManager
	client  base.ControllerClient // last known client, may be nil
}

// queryResult is the outcome of querying one source: *querySuccess or
// *queryFailure.
type queryResult interface {
	sourceName() string
}

// querySuccess carries the client used and every remote session name.
type querySuccess struct {
	source string
	client base.ControllerClient
	names  []string
}

// queryFailure carries the client created before failing, if any.
type queryFailure struct {
	source string
	client base.ControllerClient
	err    string
}

func (r *querySuccess) sourceName() string { return r.source }
func (r *queryFailure) sourceName() string { return r.source }

// applyOutcome is what the apply step hands to the close step.
type applyOutcome struct {
	removed     []*manager.SessionManager
	staleClient []base.ControllerClient
	added       int
	failures    int
}

// syncEnterpriseSessions reconciles the items of sources against their
// controllers. Passes are serialized by the refresh lock. The main lock is
// only taken briefly inside a pass and is never held across I/O or while
// waiting for the refresh lock:
//
//  1. snapshot (main lock): cached client and factory manager per source
//  2. query (no lock): concurrent, one source's failure never affects another
//  3. apply (main lock): the whole diff is committed in one acquisition
//  4. close (no lock): managers removed in step 3
func (r *CombinedRegistry) syncEnterpriseSessions(ctx context.Context, sources []string, mode syncMode) error {
	if err := r.refresh.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.refresh.Release(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.passes, cancel)
	defer stop()

	passID := uuid.NewString()
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, tracing.SpanReconcile, trace.WithAttributes(
		tracing.AttrPassID.String(passID),
		tracing.AttrMode.String(string(mode)),
		tracing.AttrSources.StringSlice(sources),
	))
	defer span.End()

	snapshots, missing, err := r.snapshotSources(sources, mode)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if len(snapshots) == 0 && len(missing) == 0 {
		return nil
	}

	results := r.queryAll(ctx, snapshots)
	if err := ctx.Err(); err != nil {
		r.discardResults(results)
		r.metrics.reconcileTotal.WithLabelValues(string(mode), "cancelled").Inc()
		tracing.RecordError(span, err)
		return err
	}
	for _, source := range missing {
		results = append(results, &queryFailure{source: source, err: "source is no longer configured"})
	}

	outcome := r.apply(results)
	r.closeRemoved(ctx, outcome)

	duration := time.Since(start)
	r.metrics.reconcileDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
	r.metrics.reconcileTotal.WithLabelValues(string(mode), "ok").Inc()
	span.SetAttributes(
		tracing.AttrAdded.Int(outcome.added),
		tracing.AttrRemoved.Int(len(outcome.removed)),
		tracing.AttrFailures.Int(outcome.failures),
	)
	r.logger.InfoWithDuration("Reconciled enterprise sessions", float64(duration.Milliseconds()), map[string]interface{}{
		"pass_id":  passID,
		"mode":     string(mode),
		"sources":  len(results),
		"added":    outcome.added,
		"removed":  len(outcome.removed),
		"failures": outcome.failures,
	})
	return nil
}

// snapshotSources is step 1. Sources unknown to the factory registry are
// returned in missing. On-demand passes skip sources still backing off.
func (r *CombinedRegistry) snapshotSources(sources []string, mode syncMode) ([]factorySnapshot, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, nil, base.ErrNotInitialized
	}

	now := r.now()
	seen := make(map[string]struct{}, len(sources))
	var snapshots []factorySnapshot
	var missing []string
	for _, source := range sources {
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}

		if mode == syncOnDemand && r.backoff.skip(source, now) {
			r.metrics.sourceQueries.WithLabelValues(source, "skipped").Inc()
			continue
		}
		fm, err := r.factories.Get(source)
		if err != nil {
			missing = append(missing, source)
			continue
		}
		snapshots = append(snapshots, factorySnapshot{source: source, factory: fm, client: r.clients[source]})
	}
	return snapshots, missing, nil
}

// queryAll is step 2: every snapshot is queried concurrently, bounded by
// discovery.max_concurrency. Failures are values, never errors, so the
// group never cancels.
func (r *CombinedRegistry) queryAll(ctx context.Context, snapshots []factorySnapshot) []queryResult {
	results := make([]queryResult, len(snapshots))

	var g errgroup.Group
	if r.discovery.MaxConcurrency > 0 {
		g.SetLimit(r.discovery.MaxConcurrency)
	}
	for i, snap := range snapshots {
		i, snap := i, snap
		g.Go(func() error {
			results[i] = r.query(ctx, snap)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// query lists the remote sessions of one source, reusing the cached client
// when it is still alive.
func (r *CombinedRegistry) query(ctx context.Context, snap factorySnapshot) (result queryResult) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanQuerySource, trace.WithAttributes(tracing.AttrSource.String(snap.source)))
	defer span.End()

	var fresh base.ControllerClient
	defer func() {
		if rec := recover(); rec != nil {
			result = &queryFailure{source: snap.source, client: fresh, err: fmt.Sprintf("panic while querying controller: %v", rec)}
		}
		if f, ok := result.(*queryFailure); ok {
			span.SetAttributes(attribute.String("sessions.error", f.err))
			r.metrics.sourceQueries.WithLabelValues(snap.source, "failure").Inc()
		} else {
			r.metrics.sourceQueries.WithLabelValues(snap.source, "success").Inc()
		}
	}()

	client := snap.client
	if client != nil {
		if ok, err := client.Ping(ctx); err != nil || !ok {
			client = nil
		}
	}
	span.SetAttributes(tracing.AttrReusedConn.Bool(client != nil))

	if client == nil {
		factory, err := snap.factory.Get(ctx)
		if err != nil {
			return &queryFailure{source: snap.source, err: err.Error()}
		}
		fresh, err = factory.ControllerClient(ctx)
		if err != nil {
			return &queryFailure{source: snap.source, err: fmt.Sprintf("failed to create controller client: %v", err)}
		}
		client = fresh
	}

	names, err := client.ListSessions(ctx)
	if err != nil {
		return &queryFailure{source: snap.source, client: fresh, err: fmt.Sprintf("failed to list sessions: %v", err)}
	}
	span.SetAttributes(tracing.AttrRemote.Int(len(names)))
	return &querySuccess{source: snap.source, client: client, names: names}
}

// apply is step 3. The whole diff is committed under one acquisition of
// the main lock so readers never see a partial pass.
func (r *CombinedRegistry) apply(results []queryResult) applyOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out applyOutcome
	now := r.now()
	for _, res := range results {
		switch res := res.(type) {
		case *querySuccess:
			r.replaceClient(res.source, res.client, &out)

			local := r.sourceNames(res.source)
			remote := make(map[string]struct{}, len(res.names))
			for _, name := range res.names {
				fn, err := base.NewFullName(base.SystemTypeEnterprise, res.source, name)
				if err != nil {
					r.logger.WarnWithErr("Ignoring remote session with invalid name", err, map[string]interface{}{
						"source": res.source,
						"name":   name,
					})
					continue
				}
				remote[fn.String()] = struct{}{}
			}

			for key := range remote {
				if _, ok := r.added[key]; ok {
					r.added[key] = true
				}
			}

			toAdd, toRemove := diffNames(local, remote)
			for _, key := range toAdd {
				fn := base.MustParseFullName(key)
				r.items[key] = manager.NewEnterpriseSessionManager(fn.Source, fn.Name, r.connectEnterprise, r.logger)
			}
			for _, key := range toRemove {
				// An added session the controller has not listed yet is
				// still starting up.
				if listed, ok := r.added[key]; ok && !listed {
					continue
				}
				out.removed = append(out.removed, r.items[key])
				delete(r.items, key)
				delete(r.added, key)
			}
			out.added += len(toAdd)

			delete(r.errors, res.source)
			r.backoff.success(res.source)

		case *queryFailure:
			out.failures++
			r.errors[res.source] = res.err
			if res.client != nil {
				r.replaceClient(res.source, res.client, &out)
			} else if old, ok := r.clients[res.source]; ok {
				out.staleClient = append(out.staleClient, old)
				delete(r.clients, res.source)
			}

			for key := range r.sourceNames(res.source) {
				out.removed = append(out.removed, r.items[key])
				delete(r.items, key)
				delete(r.added, key)
			}

			delay := r.backoff.failure(res.source, now)
			r.logger.Warn("Enterprise source query failed", map[string]interface{}{
				"source":   res.source,
				"error":    res.err,
				"failures": r.backoff.failures(res.source),
				"backoff":  delay.String(),
			})

		default:
			panic(base.NewInvariantError(fmt.Sprintf("unexpected reconciliation record %T", res), nil))
		}
	}

	r.updateItemGauges()
	return out
}

func (r *CombinedRegistry) replaceClient(source string, client base.ControllerClient, out *applyOutcome) {
	if old, ok := r.clients[source]; ok && old != client {
		out.staleClient = append(out.staleClient, old)
	}
	r.clients[source] = client
}

// sourceNames returns the keys of every enterprise item of source.
// Must be called with the main lock held.
func (r *CombinedRegistry) sourceNames(source string) map[string]struct{} {
	names := make(map[string]struct{})
	for key := range r.items {
		fn := base.MustParseFullName(key)
		if fn.SystemType == base.SystemTypeEnterprise && fn.Source == source {
			names[key] = struct{}{}
		}
	}
	return names
}

// diffNames returns remote − local and local − remote, sorted.
func diffNames(local, remote map[string]struct{}) (toAdd, toRemove []string) {
	for name := range remote {
		if _, ok := local[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}
	for name := range local {
		if _, ok := remote[name]; !ok {
			toRemove = append(toRemove, name)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// closeRemoved is step 4. Close failures are logged and skipped.
func (r *CombinedRegistry) closeRemoved(ctx context.Context, out applyOutcome) {
	for _, m := range out.removed {
		if err := m.Close(ctx); err != nil {
			r.logger.ErrorWithErr("Failed to close removed session", err, map[string]interface{}{
				"full_name": m.FullName().String(),
			})
		}
	}
	for _, c := range out.staleClient {
		if err := c.Close(ctx); err != nil {
			r.logger.WarnWithErr("Failed to close stale controller client", err, nil)
		}
	}
}

// discardResults closes clients created by a pass that is abandoned
// before apply.
func (r *CombinedRegistry) discardResults(results []queryResult) {
	ctx := context.Background()
	for _, res := range results {
		var fresh base.ControllerClient
		switch res := res.(type) {
		case *querySuccess:
			r.mu.Lock()
			cached := r.clients[res.source]
			r.mu.Unlock()
			if res.client != cached {
				fresh = res.client
			}
		case *queryFailure:
			fresh = res.client
		}
		if fresh != nil {
			_ = fresh.Close(ctx)
		}
	}
}
