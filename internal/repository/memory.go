package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"TeamPulse/internal/compliance"
	"TeamPulse/internal/model"
	apperrors "TeamPulse/pkg/errors"
)

// MemStore 内存实现的 compliance.Store，用于单测和本地演示。
// 可以按成员注入错误或延迟，模拟部分拉取失败。
type MemStore struct {
	mu            sync.RWMutex
	organizations map[int64]*model.Organization
	users         map[int64]*model.User
	checkins      []*model.CheckIn
	reviews       []*model.CheckInReview
	vacations     []*model.Vacation
	failUsers     map[int64]error
	delayUsers    map[int64]time.Duration
}

func NewMemStore() *MemStore {
	return &MemStore{
		organizations: make(map[int64]*model.Organization),
		users:         make(map[int64]*model.User),
		failUsers:     make(map[int64]error),
		delayUsers:    make(map[int64]time.Duration),
	}
}

func (m *MemStore) PutOrganization(org *model.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.organizations[org.ID] = org
}

func (m *MemStore) PutUser(user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MemStore) AddCheckIn(ci *model.CheckIn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins = append(m.checkins, ci)
}

func (m *MemStore) AddReview(r *model.CheckInReview) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, r)
}

func (m *MemStore) AddVacation(v *model.Vacation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vacations = append(m.vacations, v)
}

// FailUser 之后针对该成员的打卡查询都返回 err
func (m *MemStore) FailUser(userID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUsers[userID] = err
}

// DelayUser 针对该成员的打卡查询先等待 d，受 ctx 取消影响
func (m *MemStore) DelayUser(userID int64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delayUsers[userID] = d
}

func (m *MemStore) ListCheckins(ctx context.Context, orgID int64, filter compliance.RecordFilter) ([]*model.CheckIn, error) {
	if filter.UserID != nil {
		if err := m.inject(ctx, *filter.UserID); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.CheckIn
	for _, ci := range m.checkins {
		if ci.OrganizationID != orgID || !matchRecord(filter, ci.UserID, ci.WeekID) {
			continue
		}
		out = append(out, ci)
	}
	return out, nil
}

func (m *MemStore) ListVacations(ctx context.Context, orgID int64, filter compliance.RecordFilter) ([]*model.Vacation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Vacation
	for _, v := range m.vacations {
		if v.OrganizationID != orgID || !matchRecord(filter, v.UserID, v.WeekID) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *MemStore) ListReviews(ctx context.Context, checkinIDs []int64) ([]*model.CheckInReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(checkinIDs))
	for _, id := range checkinIDs {
		wanted[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.CheckInReview
	for _, r := range m.reviews {
		if _, ok := wanted[r.CheckInID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) ListUsers(ctx context.Context, orgID int64, filter compliance.UserFilter) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids map[int64]struct{}
	if len(filter.UserIDs) > 0 {
		ids = make(map[int64]struct{}, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			ids[id] = struct{}{}
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.User
	for _, u := range m.users {
		if u.OrganizationID != orgID {
			continue
		}
		if filter.TeamID != nil && (u.TeamID == nil || *u.TeamID != *filter.TeamID) {
			continue
		}
		if ids != nil {
			if _, ok := ids[u.ID]; !ok {
				continue
			}
		}
		if !filter.IncludeInactive && !u.Active {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) GetOrganizationSchedule(ctx context.Context, orgID int64) (*model.Organization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	org, ok := m.organizations[orgID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", apperrors.OrganizationNotFound, orgID)
	}
	return org, nil
}

func (m *MemStore) ListOrganizationIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.organizations))
	for id := range m.organizations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemStore) inject(ctx context.Context, userID int64) error {
	m.mu.RLock()
	failErr := m.failUsers[userID]
	delay := m.delayUsers[userID]
	m.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return failErr
}

func matchRecord(filter compliance.RecordFilter, userID int64, weekID string) bool {
	if filter.UserID != nil && *filter.UserID != userID {
		return false
	}
	if filter.WeekID != "" && filter.WeekID.String() != weekID {
		return false
	}
	return true
}

// MemoryLedger 内存提醒账本，互斥锁保证 TryMark 的检查与写入是一步完成的
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]model.ReminderLedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]model.ReminderLedgerEntry)}
}

func (l *MemoryLedger) ShouldSend(ctx context.Context, key compliance.LedgerKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, exists := l.entries[key.String()]
	return !exists, nil
}

func (l *MemoryLedger) MarkSent(ctx context.Context, key compliance.LedgerKey, at time.Time) error {
	_, err := l.TryMark(ctx, key, at, 0)
	return err
}

func (l *MemoryLedger) TryMark(ctx context.Context, key compliance.LedgerKey, at time.Time, taskID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key.String()
	if _, exists := l.entries[k]; exists {
		return false, nil
	}
	l.entries[k] = model.ReminderLedgerEntry{
		UserID:         key.UserID,
		WeekID:         key.WeekID.String(),
		Channel:        key.Channel,
		OrganizationID: key.OrganizationID,
		TaskID:         taskID,
		SentAt:         at.UTC(),
	}
	return true, nil
}

func (l *MemoryLedger) Unmark(ctx context.Context, key compliance.LedgerKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key.String())
	return nil
}

// Len 账本条目数
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// MemoryBuckets 内存版按天汇总与断点
type MemoryBuckets struct {
	mu         sync.Mutex
	rows       map[int64][]model.DailyComplianceBucket
	watermarks map[int64]time.Time
}

func NewMemoryBuckets() *MemoryBuckets {
	return &MemoryBuckets{
		rows:       make(map[int64][]model.DailyComplianceBucket),
		watermarks: make(map[int64]time.Time),
	}
}

func (b *MemoryBuckets) ReplaceRange(ctx context.Context, orgID int64, from, to time.Time, keepUserIDs []int64, rows []model.DailyComplianceBucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	keep := make(map[int64]bool, len(keepUserIDs))
	for _, id := range keepUserIDs {
		keep[id] = true
	}
	kept := b.rows[orgID][:0:0]
	for _, r := range b.rows[orgID] {
		if r.BucketDate.Before(from) || r.BucketDate.After(to) || keep[r.UserID] {
			kept = append(kept, r)
		}
	}
	kept = append(kept, rows...)
	sort.Slice(kept, func(i, j int) bool {
		if !kept[i].BucketDate.Equal(kept[j].BucketDate) {
			return kept[i].BucketDate.Before(kept[j].BucketDate)
		}
		return kept[i].UserID < kept[j].UserID
	})
	b.rows[orgID] = kept
	return nil
}

func (b *MemoryBuckets) ListRange(ctx context.Context, orgID int64, from, to time.Time) ([]model.DailyComplianceBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.DailyComplianceBucket
	for _, r := range b.rows[orgID] {
		if !r.BucketDate.Before(from) && !r.BucketDate.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *MemoryBuckets) GetWatermark(ctx context.Context, orgID int64) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	at, ok := b.watermarks[orgID]
	return at, ok, nil
}

func (b *MemoryBuckets) SetWatermark(ctx context.Context, orgID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watermarks[orgID] = at.UTC()
	return nil
}
