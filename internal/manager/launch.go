package manager

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"device-engine/internal/engineerr"
	"device-engine/internal/idgen"
	"device-engine/internal/models"
)

// groupLauncher runs one group's start sequence as a single cancellable
// cooperative loop — not one goroutine per member — so stopGroup can cancel
// every pending start with one signal regardless of group size.
type groupLauncher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// CreateGroup allocates count devices from a model under one group id,
// rolling back any already-created members on partial failure.
func (m *Manager) CreateGroup(modelID string, count int, groupID, idPattern string) (*models.Group, error) {
	if count < 1 {
		return nil, engineerr.NewValidation("count", "must be >= 1")
	}
	if count > m.cfg.MaxGroupSize() {
		return nil, engineerr.NewValidation("count", "exceeds configured max group size")
	}
	if _, err := m.GetModel(modelID); err != nil {
		return nil, err
	}
	if groupID == "" {
		groupID = idgen.ULID()
	}
	if idPattern == "" {
		idPattern = groupID + "-{index}"
	}

	m.mu.Lock()
	if _, exists := m.groups[groupID]; exists {
		m.mu.Unlock()
		return nil, engineerr.NewConflict("group", groupID, "group id already exists")
	}
	m.mu.Unlock()

	memberIDs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := idgen.GroupMemberID(idPattern, i)
		if _, err := m.CreateDevice(modelID, id, groupID); err != nil {
			for _, created := range memberIDs {
				_ = m.DeleteDevice(context.Background(), created)
			}
			return nil, err
		}
		memberIDs = append(memberIDs, id)
	}

	group := &models.Group{
		ID:            groupID,
		ModelID:       modelID,
		ExpectedCount: count,
		IDPattern:     idPattern,
		MemberIDs:     memberIDs,
	}
	m.mu.Lock()
	m.groups[groupID] = group
	m.mu.Unlock()
	return group, nil
}

// GetGroup looks up a group by id.
func (m *Manager) GetGroup(id string) (*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, engineerr.NewNotFound("group", id)
	}
	return g, nil
}

// ListGroups returns every group.
func (m *Manager) ListGroups() []*models.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartGroup launches a group's simulated members per §4.1's exact d(i)
// timing formulas. It returns immediately with the accepted count and an
// estimate of how long the whole sequence will take to fire every start.
func (m *Manager) StartGroup(groupID string, launch models.LaunchConfig) (acceptedCount int, estimatedDurationMs int64, err error) {
	launch.Normalize()
	if err := launch.Validate(); err != nil {
		return 0, 0, err
	}
	group, err := m.GetGroup(groupID)
	if err != nil {
		return 0, 0, err
	}

	members := m.simulatedMembers(group)
	sort.Strings(members)
	n := len(members)
	if n == 0 {
		return 0, 0, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	gl := &groupLauncher{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if prev, ok := m.launchers[groupID]; ok {
		prev.cancel()
	}
	m.launchers[groupID] = gl
	m.mu.Unlock()

	go m.runLauncher(ctx, gl, members, launch)

	lastOffset := launchOffset(launch, n-1)
	return n, lastOffset, nil
}

func (m *Manager) simulatedMembers(group *models.Group) []string {
	out := make([]string, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		dev, err := m.GetDevice(id)
		if err != nil || dev.IsProxy() {
			continue
		}
		out = append(out, id)
	}
	return out
}

// launchOffset computes d(i), the start-time offset in ms for member index
// i under the given strategy.
func launchOffset(launch models.LaunchConfig, i int) int64 {
	switch launch.Strategy {
	case "immediate":
		return 0
	case "linear":
		return int64(i) * launch.DelayMs
	case "batch":
		b := launch.BatchSize
		if b < 1 {
			b = 1
		}
		return int64(i/b) * launch.DelayMs
	case "exponential":
		d := float64(launch.DelayMs) * math.Pow(launch.ExponentBase, float64(i))
		if d > float64(launch.MaxDelayMs) {
			d = float64(launch.MaxDelayMs)
		}
		return int64(d)
	default:
		return 0
	}
}

// runLauncher fires one start per member at its computed offset from the
// group-start epoch, as a single cooperative loop driven by a sorted
// schedule rather than N independent timers.
func (m *Manager) runLauncher(ctx context.Context, gl *groupLauncher, members []string, launch models.LaunchConfig) {
	defer close(gl.done)
	epoch := time.Now()

	var wg sync.WaitGroup
	for i, id := range members {
		offset := time.Duration(launchOffset(launch, i)) * time.Millisecond
		fireAt := epoch.Add(offset)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(fireAt)):
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = m.StartDevice(ctx, id)
		}(id)
	}
	wg.Wait()
}

// StopGroup cancels any in-flight launcher for the group, then stops every
// member in ascending deviceId order.
func (m *Manager) StopGroup(ctx context.Context, groupID string) error {
	group, err := m.GetGroup(groupID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	gl, ok := m.launchers[groupID]
	m.mu.Unlock()
	if ok {
		gl.cancel()
		<-gl.done
	}

	members := append([]string{}, group.MemberIDs...)
	sort.Strings(members)
	for _, id := range members {
		_ = m.StopDevice(ctx, id)
	}
	return nil
}

// DeleteGroup stops and deletes every member, then removes the group.
func (m *Manager) DeleteGroup(ctx context.Context, groupID string) error {
	if err := m.StopGroup(ctx, groupID); err != nil {
		return err
	}
	group, err := m.GetGroup(groupID)
	if err != nil {
		return err
	}
	for _, id := range group.MemberIDs {
		_ = m.DeleteDevice(ctx, id)
	}
	m.mu.Lock()
	delete(m.groups, groupID)
	delete(m.launchers, groupID)
	m.mu.Unlock()
	return nil
}
