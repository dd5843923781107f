package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the watcher with virtual time.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

// Advance moves virtual time forward, firing every waiter that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	var remaining []*fakeWaiter
	for _, w := range c.waiters {
		if w.at.After(c.now) {
			remaining = append(remaining, w)
			continue
		}
		w.ch <- c.now
	}
	c.waiters = remaining
}

// fastConfig keeps wall-clock tests quick without changing the algorithm.
func fastConfig() Config {
	return Config{
		PollInterval:   10 * time.Millisecond,
		MinValidLength: 100,
		MinChangeDelta: 50,
		StabilityPolls: 3,
		GraceInterval:  20 * time.Millisecond,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_TimeoutOnMissingFile_VirtualTime(t *testing.T) {
	clock := newFakeClock()
	w := NewWatcher(WithConfig(fastConfig()), WithClock(clock))
	path := filepath.Join(t.TempDir(), "never.md")

	start := clock.Now()
	type outcome struct {
		settled bool
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		settled, err := w.WatchForCompletion(context.Background(), path, 200*time.Millisecond, false)
		done <- outcome{settled, err}
	}()

	var got outcome
	fired := false
	for i := 0; i < 100 && !fired; i++ {
		clock.Advance(10 * time.Millisecond)
		select {
		case got = <-done:
			fired = true
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !fired {
		t.Fatal("watch never resolved")
	}
	if got.err != nil {
		t.Fatalf("timeout path returned error: %v", got.err)
	}
	if got.settled {
		t.Error("missing file should time out, not settle")
	}
	if elapsed := clock.Now().Sub(start); elapsed < 200*time.Millisecond {
		t.Errorf("resolved after %v of virtual time, want >= 200ms", elapsed)
	}
}

func TestWatcher_SettlesAfterSubstantialStableRewrite(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "prd.md")

	// Below the minimum-valid threshold: a template stub, not content.
	writeFile(t, path, strings.Repeat("x", 40))

	go func() {
		time.Sleep(100 * time.Millisecond)
		writeFile(t, path, strings.Repeat("Real generated content. ", 25))
	}()

	start := time.Now()
	settled, err := w.WatchForCompletion(context.Background(), path, 5*time.Second, false)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("WatchForCompletion failed: %v", err)
	}
	if !settled {
		t.Fatal("stable rewrite should settle true")
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("settled after %v, before the rewrite happened", elapsed)
	}
	// Settlement is bounded by the stability window after the rewrite, far
	// below the timeout.
	if elapsed > 2*time.Second {
		t.Errorf("settled after %v, expected within the stability window", elapsed)
	}
}

func TestWatcher_EarlyExitOnPreexistingContent(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "prd.md")
	writeFile(t, path, strings.Repeat("Already complete content. ", 80))

	start := time.Now()
	settled, err := w.WatchForCompletion(context.Background(), path, 5*time.Second, false)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("WatchForCompletion failed: %v", err)
	}
	if !settled {
		t.Fatal("pre-existing valid content should settle immediately")
	}
	if elapsed < 20*time.Millisecond {
		t.Errorf("settled after %v, before the grace re-read", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("early exit took %v", elapsed)
	}
}

func TestWatcher_WaitForChangeSkipsEarlyExit(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "prd.md")
	writeFile(t, path, strings.Repeat("Prior run output. ", 120))

	// No change ever happens: the watch must run to timeout despite the file
	// already holding valid content.
	start := time.Now()
	settled, err := w.WatchForCompletion(context.Background(), path, 250*time.Millisecond, true)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("WatchForCompletion failed: %v", err)
	}
	if settled {
		t.Error("waitForChange must not settle on unchanged content")
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("resolved after %v, want the full timeout", elapsed)
	}
}

func TestWatcher_WaitForChangeSettlesOnStableChange(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "prd.md")
	writeFile(t, path, strings.Repeat("Prior run output. ", 120))

	go func() {
		time.Sleep(60 * time.Millisecond)
		writeFile(t, path, strings.Repeat("Refined run output, longer this time. ", 120))
	}()

	settled, err := w.WatchForCompletion(context.Background(), path, 5*time.Second, true)
	if err != nil {
		t.Fatalf("WatchForCompletion failed: %v", err)
	}
	if !settled {
		t.Error("substantial stable change should settle true")
	}
}

func TestWatcher_FirstAppearanceOfValidContentSettles(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "prd.md")

	go func() {
		time.Sleep(50 * time.Millisecond)
		writeFile(t, path, strings.Repeat("Content written from nothing. ", 20))
	}()

	settled, err := w.WatchForCompletion(context.Background(), path, 5*time.Second, false)
	if err != nil {
		t.Fatalf("WatchForCompletion failed: %v", err)
	}
	if !settled {
		t.Error("first appearance of valid content should settle true")
	}
}

func TestWatcher_CosmeticChangeDoesNotSettle(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "prd.md")
	base := strings.Repeat("Prior run output. ", 120)
	writeFile(t, path, base)

	go func() {
		time.Sleep(50 * time.Millisecond)
		// Under the substantial-change threshold.
		writeFile(t, path, base+"tweak")
	}()

	settled, err := w.WatchForCompletion(context.Background(), path, 250*time.Millisecond, true)
	if err != nil {
		t.Fatalf("WatchForCompletion failed: %v", err)
	}
	if settled {
		t.Error("cosmetic edit must not settle the watch")
	}
}

func TestWatcher_ContextCancellation(t *testing.T) {
	w := NewWatcher(WithConfig(fastConfig()))
	path := filepath.Join(t.TempDir(), "never.md")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	settled, err := w.WatchForCompletion(ctx, path, 5*time.Second, false)
	if settled {
		t.Error("canceled watch must not settle")
	}
	if err == nil {
		t.Error("canceled watch should surface the context error")
	}
}
