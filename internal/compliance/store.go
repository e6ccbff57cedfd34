package compliance

import (
	"context"
	"fmt"
	"sort"

	"TeamPulse/internal/model"
	apperrors "TeamPulse/pkg/errors"
)

// RecordFilter 打卡 / 休假查询条件，零值表示不过滤
type RecordFilter struct {
	UserID *int64
	WeekID WeekID
}

// UserFilter 成员查询条件
type UserFilter struct {
	TeamID          *int64
	UserIDs         []int64
	IncludeInactive bool
}

// Store 存储协作方，引擎对这些记录只读
type Store interface {
	ListCheckins(ctx context.Context, orgID int64, filter RecordFilter) ([]*model.CheckIn, error)
	ListVacations(ctx context.Context, orgID int64, filter RecordFilter) ([]*model.Vacation, error)
	ListReviews(ctx context.Context, checkinIDs []int64) ([]*model.CheckInReview, error)
	ListUsers(ctx context.Context, orgID int64, filter UserFilter) ([]*model.User, error)
	GetOrganizationSchedule(ctx context.Context, orgID int64) (*model.Organization, error)
}

// UserHistory 某个成员跨周的原始记录，按周标识索引
type UserHistory struct {
	User      *model.User
	CheckIns  map[WeekID]*model.CheckIn
	Reviews   map[int64]*model.CheckInReview // key: CheckInID
	Vacations map[WeekID]*model.Vacation
}

// Week 取出某周的记录
func (h UserHistory) Week(id WeekID) WeekRecords {
	rec := WeekRecords{User: h.User, Vacation: h.Vacations[id]}
	if ci := h.CheckIns[id]; ci != nil {
		rec.CheckIn = ci
		rec.Review = h.Reviews[ci.ID]
	}
	return rec
}

// BuildHistory 校验并索引某成员的记录。违反唯一性或字段不完整的记录视为 MalformedRecord
func BuildHistory(user *model.User, checkins []*model.CheckIn, reviews []*model.CheckInReview, vacations []*model.Vacation) (UserHistory, error) {
	h := UserHistory{
		User:      user,
		CheckIns:  make(map[WeekID]*model.CheckIn, len(checkins)),
		Reviews:   make(map[int64]*model.CheckInReview, len(reviews)),
		Vacations: make(map[WeekID]*model.Vacation, len(vacations)),
	}

	for _, ci := range checkins {
		if err := validateCheckIn(user, ci); err != nil {
			return UserHistory{}, err
		}
		id := WeekID(ci.WeekID)
		if _, dup := h.CheckIns[id]; dup {
			return UserHistory{}, fmt.Errorf("%w: user %d has more than one check-in for week %s",
				apperrors.MalformedRecord, user.ID, id)
		}
		h.CheckIns[id] = ci
	}

	for _, r := range reviews {
		if r == nil {
			continue
		}
		if _, dup := h.Reviews[r.CheckInID]; dup {
			return UserHistory{}, fmt.Errorf("%w: check-in %d has more than one review",
				apperrors.MalformedRecord, r.CheckInID)
		}
		h.Reviews[r.CheckInID] = r
	}

	for _, v := range vacations {
		if v == nil || v.UserID != user.ID {
			return UserHistory{}, fmt.Errorf("%w: vacation does not belong to user %d", apperrors.MalformedRecord, user.ID)
		}
		id := WeekID(v.WeekID)
		if _, dup := h.Vacations[id]; dup {
			return UserHistory{}, fmt.Errorf("%w: user %d has more than one vacation for week %s",
				apperrors.MalformedRecord, user.ID, id)
		}
		h.Vacations[id] = v
	}

	return h, nil
}

func validateCheckIn(user *model.User, ci *model.CheckIn) error {
	switch {
	case ci == nil:
		return fmt.Errorf("%w: nil check-in", apperrors.MalformedRecord)
	case ci.UserID != user.ID:
		return fmt.Errorf("%w: check-in %d belongs to user %d, not %d",
			apperrors.MalformedRecord, ci.ID, ci.UserID, user.ID)
	case ci.WeekID == "":
		return fmt.Errorf("%w: check-in %d has no week id", apperrors.MalformedRecord, ci.ID)
	case ci.IsComplete && ci.SubmittedAt == nil:
		return fmt.Errorf("%w: check-in %d is complete but has no submission time", apperrors.MalformedRecord, ci.ID)
	case ci.Mood != nil && (*ci.Mood < 1 || *ci.Mood > 5):
		return fmt.Errorf("%w: check-in %d mood %d out of range", apperrors.MalformedRecord, ci.ID, *ci.Mood)
	}
	return nil
}

// checkinIDs 按 ID 排序，保证查询参数稳定
func checkinIDs(checkins []*model.CheckIn) []int64 {
	ids := make([]int64, 0, len(checkins))
	for _, ci := range checkins {
		if ci != nil {
			ids = append(ids, ci.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
