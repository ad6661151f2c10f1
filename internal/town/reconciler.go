package town

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultReconcileInterval = 5 * time.Second

// reconciler is the per-town background loop that keeps participants' local
// playback snapshots loosely synchronized with the streaming service. It is
// started when the town first becomes non-empty and stops itself after a tick
// that finds the town empty. Destroying the town shuts it down for good.
type reconciler struct {
	c        *Controller
	interval time.Duration
	logger   *slog.Logger

	// mu may be held while taking the controller lock (stopIfEmpty does), so
	// controller methods must never call into the reconciler while holding
	// theirs.
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	dead    bool
}

func newReconciler(c *Controller, interval time.Duration, logger *slog.Logger) *reconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &reconciler{
		c:        c,
		interval: interval,
		logger:   logger,
	}
}

// start launches the polling loop. Starting a loop that is already running,
// or one that was shut down with the town, is a no-op.
func (r *reconciler) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead || r.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	go r.run(ctx)
}

// stop cancels the loop immediately. In-flight external calls may still
// complete, but their results are discarded: applyPlayback rejects updates
// once the tick context is cancelled.
func (r *reconciler) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.cancel()
	r.running = false
}

// shutdown stops the loop and refuses every future start. Called when the
// town is destroyed.
func (r *reconciler) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead = true
	if !r.running {
		return
	}
	r.cancel()
	r.running = false
}

// stopIfEmpty ends the loop when the town has no participants, re-reading the
// occupancy under r.mu so a join that raced the empty tick keeps the loop
// alive: start serializes on the same lock, so either the join's start sees
// running and this re-check sees its participant, or the stop commits first
// and the join's start relaunches.
func (r *reconciler) stopIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return true
	}
	if r.c.Occupancy() > 0 {
		return false
	}
	r.cancel()
	r.running = false
	return true
}

func (r *reconciler) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
			if r.stopIfEmpty() {
				return
			}
		}
	}
}

// tick polls the streaming service for every current participant
// concurrently and applies the results.
func (r *reconciler) tick(ctx context.Context) {
	participants := r.c.Participants()

	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)
		go func(p *Participant) {
			defer wg.Done()
			r.poll(ctx, p)
		}(p)
	}
	wg.Wait()
}

// poll fetches one participant's current track and playback state. A failed
// call or a "not playing" answer clears the snapshot rather than leaving it
// stale: absence of a signal means nothing is playing.
func (r *reconciler) poll(ctx context.Context, p *Participant) {
	song, err := r.c.media.CurrentTrack(ctx, r.c.id, p.ID)
	if err != nil {
		r.logger.DebugContext(ctx, "current track lookup failed",
			"town_id", r.c.id, "participant_id", p.ID, "error", err)
		song = nil
	}

	state, err := r.c.media.PlaybackState(ctx, r.c.id, p.ID)
	if err != nil {
		r.logger.DebugContext(ctx, "playback state lookup failed",
			"town_id", r.c.id, "participant_id", p.ID, "error", err)
		state = nil
	}
	if state == nil || !state.IsPlaying {
		song = nil
	}

	r.c.applyPlayback(ctx, p.ID, song)
}
