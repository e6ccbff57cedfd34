package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"TeamPulse/internal/compliance"
	"TeamPulse/internal/model"
	apperrors "TeamPulse/pkg/errors"
)

// ComplianceStore 基于 gorm 的只读存储，实现 compliance.Store
type ComplianceStore struct {
	db *gorm.DB
}

func NewComplianceStore(db *gorm.DB) *ComplianceStore {
	return &ComplianceStore{db: db}
}

func (s *ComplianceStore) ListCheckins(ctx context.Context, orgID int64, filter compliance.RecordFilter) ([]*model.CheckIn, error) {
	q := s.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.WeekID != "" {
		q = q.Where("week_id = ?", filter.WeekID.String())
	}

	var checkins []*model.CheckIn
	if err := q.Order("week_id DESC").Order("id").Find(&checkins).Error; err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return checkins, nil
}

func (s *ComplianceStore) ListVacations(ctx context.Context, orgID int64, filter compliance.RecordFilter) ([]*model.Vacation, error) {
	q := s.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.WeekID != "" {
		q = q.Where("week_id = ?", filter.WeekID.String())
	}

	var vacations []*model.Vacation
	if err := q.Order("week_id DESC").Order("id").Find(&vacations).Error; err != nil {
		return nil, fmt.Errorf("failed to list vacations: %w", err)
	}
	return vacations, nil
}

func (s *ComplianceStore) ListReviews(ctx context.Context, checkinIDs []int64) ([]*model.CheckInReview, error) {
	if len(checkinIDs) == 0 {
		return nil, nil
	}

	var reviews []*model.CheckInReview
	err := s.db.WithContext(ctx).
		Where("check_in_id IN ?", checkinIDs).
		Order("check_in_id").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (s *ComplianceStore) ListUsers(ctx context.Context, orgID int64, filter compliance.UserFilter) ([]*model.User, error) {
	q := s.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if filter.TeamID != nil {
		q = q.Where("team_id = ?", *filter.TeamID)
	}
	if len(filter.UserIDs) > 0 {
		q = q.Where("id IN ?", filter.UserIDs)
	}
	if !filter.IncludeInactive {
		q = q.Where("active = ?", true)
	}

	var users []*model.User
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *ComplianceStore) GetOrganizationSchedule(ctx context.Context, orgID int64) (*model.Organization, error) {
	var org model.Organization
	err := s.db.WithContext(ctx).Where("id = ?", orgID).Take(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", apperrors.OrganizationNotFound, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %d: %w", orgID, err)
	}
	return &org, nil
}

// ListOrganizationIDs 批处理任务遍历所有组织
func (s *ComplianceStore) ListOrganizationIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.Organization{}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return ids, nil
}
