package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TeamPulse/internal/compliance"
	"TeamPulse/internal/model"
	"TeamPulse/internal/queue"
	"TeamPulse/internal/repository"
)

type fakePublisher struct {
	mu    sync.Mutex
	tasks []queue.ReminderTask
	fail  map[string]error
}

func (p *fakePublisher) PublishReminder(_ context.Context, task queue.ReminderTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[task.Channel]; err != nil {
		return err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *fakePublisher) sent() []queue.ReminderTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReminderTask(nil), p.tasks...)
}

type fakeLocker struct {
	held bool
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	return !l.held, nil
}

func (l *fakeLocker) Unlock(context.Context, string) error { return nil }

func sequence() func() (int64, error) {
	var n int64
	return func() (int64, error) {
		return atomic.AddInt64(&n, 1), nil
	}
}

func seedReminderStore() *repository.MemStore {
	store := repository.NewMemStore()
	store.PutOrganization(&model.Organization{
		BaseModel:        model.BaseModel{ID: 1},
		WeekStartDay:     1,
		DueWeekday:       5,
		DueTime:          "17:00",
		ReminderTime:     "09:00",
		Timezone:         "America/Chicago",
		ReminderChannels: "slack,email",
	})

	manager := int64(1)
	for _, id := range []int64{2, 3, 4} {
		store.PutUser(&model.User{
			BaseModel:      model.BaseModel{ID: id},
			OrganizationID: 1,
			ManagerID:      &manager,
			Active:         true,
			JoinedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	at := time.Date(2025, 10, 9, 15, 0, 0, 0, time.UTC)
	store.AddCheckIn(&model.CheckIn{
		BaseModel:      model.BaseModel{ID: 10},
		UserID:         2,
		OrganizationID: 1,
		WeekID:         "2025-10-06",
		SubmittedAt:    &at,
		IsComplete:     true,
	})
	store.AddVacation(&model.Vacation{UserID: 4, OrganizationID: 1, WeekID: "2025-10-06"})
	return store
}

func newTestSweeper(store *repository.MemStore, ledger compliance.Ledger, pub queue.Publisher, now time.Time, opts ...SweeperOption) *ReminderSweeper {
	agg := compliance.NewAggregator(store, compliance.WithClock(func() time.Time { return now }))
	return NewReminderSweeper(agg, store, ledger, pub, sequence(), opts...)
}

// 周五 10:00 CDT，已过提醒时刻、未到截止
var afterReminder = time.Date(2025, 10, 10, 15, 0, 0, 0, time.UTC)

func TestSweep_EmitsOncePerUserWeekChannel(t *testing.T) {
	store := seedReminderStore()
	ledger := repository.NewMemoryLedger()
	pub := &fakePublisher{}
	sweeper := newTestSweeper(store, ledger, pub, afterReminder)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Organizations)
	assert.Equal(t, 2, result.Emitted)

	tasks := pub.sent()
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, int64(3), task.UserID)
		assert.Equal(t, "2025-10-06", task.WeekID)
		assert.Equal(t, string(compliance.StatusMissing), task.Status)
		assert.NotZero(t, task.TaskID)
	}
	assert.ElementsMatch(t, []string{"slack", "email"}, []string{tasks[0].Channel, tasks[1].Channel})

	// 重复扫描不会再次提醒
	for i := 0; i < 3; i++ {
		result, err = sweeper.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Emitted)
		assert.Equal(t, 2, result.Suppressed)
	}
	assert.Len(t, pub.sent(), 2)
	assert.Equal(t, 2, ledger.Len())
}

func TestSweep_ConcurrentInstancesShareLedger(t *testing.T) {
	store := seedReminderStore()
	ledger := repository.NewMemoryLedger()
	pub := &fakePublisher{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newTestSweeper(store, ledger, pub, afterReminder).Sweep(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, pub.sent(), 2)
}

func TestSweep_PublishFailureReleasesLedger(t *testing.T) {
	store := seedReminderStore()
	ledger := repository.NewMemoryLedger()
	pub := &fakePublisher{fail: map[string]error{"email": errors.New("broker unavailable")}}
	sweeper := newTestSweeper(store, ledger, pub, afterReminder)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Emitted)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, ledger.Len())

	pub.mu.Lock()
	pub.fail = nil
	pub.mu.Unlock()

	result, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Emitted)
	assert.Equal(t, 1, result.Suppressed)
	assert.Len(t, pub.sent(), 2)
}

func TestSweep_BeforeReminderTime(t *testing.T) {
	store := seedReminderStore()
	pub := &fakePublisher{}
	// 周五 08:00 CDT
	sweeper := newTestSweeper(store, repository.NewMemoryLedger(), pub, time.Date(2025, 10, 10, 13, 0, 0, 0, time.UTC))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Organizations)
	assert.Zero(t, result.Emitted)
	assert.Empty(t, pub.sent())
}

func TestSweep_OverdueCarriesDaysOverdue(t *testing.T) {
	store := seedReminderStore()
	pub := &fakePublisher{}
	// 周日 18:00 CDT
	sweeper := newTestSweeper(store, repository.NewMemoryLedger(), pub, time.Date(2025, 10, 12, 23, 0, 0, 0, time.UTC))

	_, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	tasks := pub.sent()
	require.NotEmpty(t, tasks)
	assert.Equal(t, string(compliance.StatusOverdue), tasks[0].Status)
	assert.Equal(t, 2, tasks[0].DaysOverdue)
}

func TestSweep_SkipsWhenLockHeld(t *testing.T) {
	store := seedReminderStore()
	pub := &fakePublisher{}
	sweeper := newTestSweeper(store, repository.NewMemoryLedger(), pub, afterReminder,
		WithLocker(&fakeLocker{held: true}, time.Minute))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
	assert.Empty(t, pub.sent())
}
