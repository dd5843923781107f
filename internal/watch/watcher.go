// Package watch decides when an external, uncooperative process has finished
// producing content in a file, with no signal from that process other than
// the file's own content over time. It polls on a fixed interval rather than
// relying on filesystem events, because event delivery is unreliable across
// platforms for rapid successive writes.
package watch

import (
	"context"
	"crypto/sha256"
	"os"
	"time"

	"github.com/specflow/specflow/internal/logging"
)

// Default thresholds. Each guards a distinct failure mode: the minimum length
// keeps a freshly written template stub from counting as real content, the
// change delta filters cosmetic edits, the stability window keeps the watcher
// from settling mid-write, and the grace interval covers the race where the
// watcher starts an instant after the writer finished but before the
// filesystem fully flushed.
const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultMinValidLength = 100
	DefaultMinChangeDelta = 50
	DefaultStabilityPolls = 3
	DefaultGraceInterval  = 200 * time.Millisecond
)

// Config holds the watcher's thresholds.
type Config struct {
	PollInterval   time.Duration
	MinValidLength int
	MinChangeDelta int
	StabilityPolls int
	GraceInterval  time.Duration
}

// DefaultConfig returns the default watcher thresholds.
func DefaultConfig() Config {
	return Config{
		PollInterval:   DefaultPollInterval,
		MinValidLength: DefaultMinValidLength,
		MinChangeDelta: DefaultMinChangeDelta,
		StabilityPolls: DefaultStabilityPolls,
		GraceInterval:  DefaultGraceInterval,
	}
}

// Watcher watches file paths for completed external edits.
type Watcher struct {
	cfg   Config
	clock Clock
	log   *logging.Logger
}

// Option is a functional option for configuring a Watcher.
type Option func(*Watcher)

// WithConfig replaces the watcher thresholds wholesale.
func WithConfig(cfg Config) Option {
	return func(w *Watcher) {
		w.cfg = cfg
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(w *Watcher) {
		w.clock = clock
	}
}

// WithLogger sets the logger used by the watcher.
func WithLogger(log *logging.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// NewWatcher creates a Watcher with default thresholds.
func NewWatcher(opts ...Option) *Watcher {
	w := &Watcher{
		cfg:   DefaultConfig(),
		clock: RealClock(),
		log:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// snapshot is one observation of the watched file.
type snapshot struct {
	exists bool
	hash   [sha256.Size]byte
	length int
}

// read observes the file. Read errors are transient: a missing or locked file
// reports exists=false and the caller retries on the next poll.
func read(path string) snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}
	}
	return snapshot{exists: true, hash: sha256.Sum256(data), length: len(data)}
}

// valid reports whether a snapshot holds enough content to count as real.
func (w *Watcher) valid(s snapshot) bool {
	return s.exists && s.length >= w.cfg.MinValidLength
}

// substantial reports whether the length delta between two snapshots exceeds
// the minimum substantial-change threshold.
func (w *Watcher) substantial(from, to snapshot) bool {
	delta := to.length - from.length
	if delta < 0 {
		delta = -delta
	}
	return delta > w.cfg.MinChangeDelta
}

// WatchForCompletion watches path until it judges the file's content to
// reflect a completed external edit, returning true, or until timeout
// elapses, returning false. Timeout is the expected outcome when the writer
// never finishes and is not an error.
//
// With waitForChange false, a file that already holds valid content at
// watch-start settles true after a short grace re-read confirms it is not
// still being written (the process-resume case). With waitForChange true that
// early exit is skipped: the caller wants to observe a change from the
// current state, not merely confirm existing validity.
func (w *Watcher) WatchForCompletion(ctx context.Context, path string, timeout time.Duration, waitForChange bool) (bool, error) {
	log := w.log.With("path", path)
	timeoutCh := w.clock.After(timeout)

	baseline := read(path)

	// Early exit: the file was already complete before watching started.
	if !waitForChange && w.valid(baseline) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timeoutCh:
			return false, nil
		case <-w.clock.After(w.cfg.GraceInterval):
		}
		confirm := read(path)
		if confirm.hash == baseline.hash && w.valid(confirm) {
			log.Debug("settled on pre-existing content", "length", confirm.length)
			return true, nil
		}
		baseline = confirm
	}

	var (
		candidate   snapshot
		stableCount int
		confirmed   = baseline.exists
	)

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timeoutCh:
			log.Debug("watch timed out", "timeout", timeout.String())
			return false, nil
		case <-w.clock.After(w.cfg.PollInterval):
		}

		cur := read(path)
		if !cur.exists {
			continue
		}

		// First appearance of the file: valid content is itself the
		// completion signal, anything shorter becomes the baseline.
		if !baseline.exists {
			if w.valid(cur) {
				log.Debug("settled on first appearance", "length", cur.length)
				return true, nil
			}
			baseline = cur
			confirmed = true
			continue
		}

		if cur.hash == baseline.hash {
			confirmed = true
			continue
		}

		if !w.substantial(baseline, cur) || !w.valid(cur) {
			continue
		}

		// Substantive change: require the hash to hold across consecutive
		// polls before trusting it, so a writer mid-stream never settles us.
		if candidate.exists && cur.hash == candidate.hash {
			stableCount++
			if stableCount >= w.cfg.StabilityPolls {
				log.Debug("settled on stable change",
					"length", cur.length, "stable_polls", stableCount, "baseline_confirmed", confirmed)
				return true, nil
			}
			continue
		}
		candidate = cur
		stableCount = 1
	}
}
