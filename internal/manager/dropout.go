package manager

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"device-engine/internal/models"
)

// StartDropout selects and schedules a programmed-failure run over a
// group's running simulated members, per §4.1's selection and timing
// rules. It returns immediately with the affected count and an estimate
// of the run's total duration; the actual disconnects happen asynchronously.
func (m *Manager) StartDropout(groupID string, cfg models.DropoutConfig) (affectedCount int, estimatedDurationMs int64, err error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return 0, 0, err
	}
	group, err := m.GetGroup(groupID)
	if err != nil {
		return 0, 0, err
	}

	running := m.runningSimulatedMembers(group)
	n := len(running)
	if n == 0 {
		return 0, 0, nil
	}

	selectedCount := cfg.Count
	if selectedCount <= 0 {
		selectedCount = int(math.Floor(cfg.Percentage / 100 * float64(n)))
	}
	if selectedCount > n {
		selectedCount = n
	}
	if selectedCount <= 0 {
		return 0, 0, nil
	}

	selected, offsets := selectDropoutMembers(running, cfg, selectedCount, groupID)

	var estimated int64
	if len(offsets) > 0 {
		estimated = offsets[len(offsets)-1]
	}

	go m.runDropout(selected, offsets, cfg)
	return selectedCount, estimated, nil
}

// runningSimulatedMembers returns a group's currently RUNNING simulated
// members, ascending by deviceId (the tie-break every non-random strategy
// selects and times by).
func (m *Manager) runningSimulatedMembers(group *models.Group) []string {
	out := make([]string, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		dev, err := m.GetDevice(id)
		if err != nil || dev.IsProxy() || dev.Status != models.StatusRunning {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// selectDropoutMembers picks which members drop and when. Non-random
// strategies select the first selectedCount members ascending by deviceId
// and time them by the strategy's d(k) formula. The random strategy
// selects uniformly without replacement using a PRNG seeded from
// (groupId, wallClock()), and times disconnects by independent uniform
// samples over [0, durationMs) sorted ascending.
func selectDropoutMembers(running []string, cfg models.DropoutConfig, count int, groupID string) (selected []string, offsets []int64) {
	if cfg.Strategy != "random" {
		selected = running[:count]
		offsets = make([]int64, count)
		for k := range offsets {
			offsets[k] = dropoutOffset(cfg, k)
		}
		return selected, offsets
	}

	rng := rand.New(rand.NewSource(dropoutSeed(groupID)))
	pool := append([]string{}, running...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	selected = pool[:count]

	duration := cfg.DurationMs
	if duration <= 0 {
		duration = 1
	}
	offsets = make([]int64, count)
	for i := range offsets {
		offsets[i] = rng.Int63n(duration)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return selected, offsets
}

func dropoutSeed(groupID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(groupID))
	_, _ = h.Write([]byte(time.Now().String()))
	return int64(h.Sum64())
}

// dropoutOffset computes d(k) for the non-random strategies.
func dropoutOffset(cfg models.DropoutConfig, k int) int64 {
	switch cfg.Strategy {
	case "immediate":
		return 0
	case "linear":
		return int64(k) * cfg.DelayMs
	case "exponential":
		d := float64(cfg.DelayMs) * math.Pow(cfg.ExponentBase, float64(k))
		cap := cfg.MaxDelayMs
		if cap <= 0 {
			cap = cfg.DurationMs
		}
		if cap > 0 && d > float64(cap) {
			d = float64(cap)
		}
		return int64(d)
	default:
		return 0
	}
}

// runDropout fires each selected member's disconnect at its offset from
// the run's epoch. Offsets are non-decreasing in k for every strategy
// (random's are pre-sorted), so a single sequential wait suffices.
func (m *Manager) runDropout(selected []string, offsets []int64, cfg models.DropoutConfig) {
	epoch := time.Now()
	var wg sync.WaitGroup
	for i, id := range selected {
		target := epoch.Add(time.Duration(offsets[i]) * time.Millisecond)
		if wait := time.Until(target); wait > 0 {
			time.Sleep(wait)
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.disconnectMember(context.Background(), id, cfg)
		}(id)
	}
	wg.Wait()
}

// disconnectMember tears down a running device's connection. With
// reconnect=false it stops the device outright (→ STOPPED); with
// reconnect=true it marks the device RECONNECTING and schedules
// reconnectMember after reconnectDelayMs.
func (m *Manager) disconnectMember(ctx context.Context, id string, cfg models.DropoutConfig) {
	e, err := m.entry(id)
	if err != nil {
		return
	}

	e.mu.Lock()
	if e.dev.Status != models.StatusRunning {
		e.mu.Unlock()
		return
	}
	if !cfg.Reconnect {
		e.mu.Unlock()
		_ = m.StopDevice(ctx, id)
		return
	}
	e.dev.Status = models.StatusReconnecting
	e.dev.ConnectionState = models.ConnReconnecting
	vd := e.virtual
	e.mu.Unlock()

	m.writeDeviceEvent(e.dev, "disconnected")

	if vd != nil {
		stopCtx, cancel := context.WithTimeout(ctx, gracefulStopTimeout)
		_ = vd.Stop(stopCtx)
		cancel()
	}
	e.mu.Lock()
	e.virtual = nil
	e.adapter = nil
	e.mu.Unlock()

	go m.reconnectMember(id, cfg)
}

// reconnectMember waits reconnectDelayMs then re-establishes the device,
// retrying with exponential backoff capped at 30s per §4.1. A failed
// attempt leaves the device in StatusError; that's still reconnectMember's
// to retry, so it re-asserts StatusReconnecting before each attempt. It
// gives up silently only once the device leaves both states (a
// control-plane stop/delete/start superseded the dropout).
func (m *Manager) reconnectMember(id string, cfg models.DropoutConfig) {
	time.Sleep(time.Duration(cfg.ReconnectDelayMs) * time.Millisecond)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	_ = backoff.Retry(func() error {
		e, err := m.entry(id)
		if err != nil {
			return nil
		}
		e.mu.Lock()
		// StartDevice leaves a failed attempt in StatusError rather than
		// StatusReconnecting, so a prior retry's failure is still ours to
		// keep retrying. Anything else (stopped, deleted, started by a
		// direct control-plane call) means something superseded the
		// dropout and this loop should give up.
		switch e.dev.Status {
		case models.StatusReconnecting, models.StatusError:
			e.dev.Status = models.StatusReconnecting
		default:
			e.mu.Unlock()
			return nil
		}
		e.mu.Unlock()
		return m.StartDevice(context.Background(), id)
	}, b)
}
