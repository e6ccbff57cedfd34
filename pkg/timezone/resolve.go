package timezone

import (
	"time"

	"TeamPulse/pkg/calendar"
)

// Resolution 描述一次民用时刻换算落在哪种情况
type Resolution int

const (
	// Exact 唯一对应一个绝对时刻
	Exact Resolution = iota
	// Gap 春季拨快跳过的时刻，取跳变后第一个有效时刻
	Gap
	// Ambiguous 秋季拨慢重复的时刻，取标准时间偏移
	Ambiguous
)

func (r Resolution) String() string {
	switch r {
	case Gap:
		return "gap"
	case Ambiguous:
		return "ambiguous"
	default:
		return "exact"
	}
}

// CivilToInstant 把墙上时刻换算为 UTC 绝对时刻。
// 固定策略：
//   - 春季空档内的时刻 → 夏令时开始的那一刻（本地 03:00 夏令时）
//   - 秋季重复的时刻 → 按标准时间偏移（跳变之后的那一次）
func (z Zone) CivilToInstant(dt calendar.DateTime) (time.Time, Resolution) {
	wall := dt.Wall()
	if !z.ObservesDST || z.shift() == 0 {
		return wall.Add(-z.StandardOffset), Exact
	}

	start, end := Transitions(dt.Year)
	gapStart := start.Wall()
	gapEnd := gapStart.Add(z.shift())
	if !wall.Before(gapStart) && wall.Before(gapEnd) {
		return gapStart.Add(-z.StandardOffset), Gap
	}

	overlapEnd := end.Wall()
	overlapStart := overlapEnd.Add(-z.shift())
	if !wall.Before(overlapStart) && wall.Before(overlapEnd) {
		return wall.Add(-z.StandardOffset), Ambiguous
	}

	if z.IsDST(dt) {
		return wall.Add(-z.DaylightOffset), Exact
	}
	return wall.Add(-z.StandardOffset), Exact
}

// OffsetAt 返回绝对时刻 t 在该时区的 UTC 偏移
func (z Zone) OffsetAt(t time.Time) time.Duration {
	if !z.ObservesDST {
		return z.StandardOffset
	}
	u := t.UTC()
	year := u.Add(z.StandardOffset).Year()
	start, end := Transitions(year)
	startUTC := start.Wall().Add(-z.StandardOffset)
	endUTC := end.Wall().Add(-z.DaylightOffset)
	if !u.Before(startUTC) && u.Before(endUTC) {
		return z.DaylightOffset
	}
	return z.StandardOffset
}

// InstantToCivil 绝对时刻 → 该时区的墙上时刻，用于展示
func (z Zone) InstantToCivil(t time.Time) calendar.DateTime {
	return calendar.DateTimeOf(t.UTC().Add(z.OffsetAt(t)))
}

// In 返回带固定偏移 Location 的时间，仅用于格式化输出
func (z Zone) In(t time.Time) time.Time {
	offset := z.OffsetAt(t)
	abbr := z.StandardAbbr
	if offset != z.StandardOffset {
		abbr = z.DaylightAbbr
	}
	return t.In(time.FixedZone(abbr, int(offset/time.Second)))
}

// DateOf 返回绝对时刻在该时区的民用日期
func (z Zone) DateOf(t time.Time) calendar.Date {
	return z.InstantToCivil(t).Date
}
