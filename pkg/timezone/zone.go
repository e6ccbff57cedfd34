// Package timezone 把民用时刻换算成绝对时刻（UTC）及反向换算。
//
// 夏令时只实现美国规则：3 月第二个周日 02:00 开始，11 月第一个周日 02:00 结束，
// 按星期推算而不是查偏移表，所以任意年份都成立。其他 IANA 时区不在支持范围内。
package timezone

import (
	"fmt"
	"sort"
	"time"

	"TeamPulse/pkg/calendar"
	apperrors "TeamPulse/pkg/errors"
)

const DefaultZoneName = "America/Chicago"

// Zone 采用美国夏令时规则的时区
type Zone struct {
	Name           string
	StandardAbbr   string
	DaylightAbbr   string
	StandardOffset time.Duration
	DaylightOffset time.Duration
	ObservesDST    bool
}

// Central 美国中部时间，未配置时区时的默认值
var Central = Zone{
	Name:           DefaultZoneName,
	StandardAbbr:   "CST",
	DaylightAbbr:   "CDT",
	StandardOffset: -6 * time.Hour,
	DaylightOffset: -5 * time.Hour,
	ObservesDST:    true,
}

var zones = map[string]Zone{
	DefaultZoneName: Central,
	"US/Central":    Central,
	"America/New_York": {
		Name: "America/New_York", StandardAbbr: "EST", DaylightAbbr: "EDT",
		StandardOffset: -5 * time.Hour, DaylightOffset: -4 * time.Hour, ObservesDST: true,
	},
	"America/Denver": {
		Name: "America/Denver", StandardAbbr: "MST", DaylightAbbr: "MDT",
		StandardOffset: -7 * time.Hour, DaylightOffset: -6 * time.Hour, ObservesDST: true,
	},
	"America/Los_Angeles": {
		Name: "America/Los_Angeles", StandardAbbr: "PST", DaylightAbbr: "PDT",
		StandardOffset: -8 * time.Hour, DaylightOffset: -7 * time.Hour, ObservesDST: true,
	},
	"America/Phoenix": {
		Name: "America/Phoenix", StandardAbbr: "MST", DaylightAbbr: "MST",
		StandardOffset: -7 * time.Hour, DaylightOffset: -7 * time.Hour,
	},
	"UTC": {
		Name: "UTC", StandardAbbr: "UTC", DaylightAbbr: "UTC",
	},
}

// Lookup 按 IANA 名称查找时区，空字符串返回 Central
func Lookup(name string) (Zone, error) {
	if name == "" {
		return Central, nil
	}
	z, ok := zones[name]
	if !ok {
		return Zone{}, fmt.Errorf("%w: timezone %q is not supported", apperrors.InvalidScheduleConfig, name)
	}
	return z, nil
}

// Supported 返回支持的时区名称
func Supported() []string {
	names := make([]string, 0, len(zones))
	for name := range zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transitions 返回某年夏令时开始和结束的墙上时刻（都是 02:00 本地时间）
func Transitions(year int) (start, end calendar.DateTime) {
	start = calendar.NthWeekdayOfMonth(year, time.March, time.Sunday, 2).At(2, 0)
	end = calendar.NthWeekdayOfMonth(year, time.November, time.Sunday, 1).At(2, 0)
	return start, end
}

// shift 夏令时比标准时间快出的时长
func (z Zone) shift() time.Duration {
	return z.DaylightOffset - z.StandardOffset
}

// IsDST 判断墙上时刻是否按夏令时偏移解释。
// 春季跳过的那一小时算作夏令时（向后取第一个有效时刻），
// 秋季重复的那一小时按固定策略取标准时间，因此不算夏令时。
func (z Zone) IsDST(dt calendar.DateTime) bool {
	if !z.ObservesDST {
		return false
	}
	start, end := Transitions(dt.Year)
	ambiguousFrom := end.Wall().Add(-z.shift())
	wall := dt.Wall()
	return !wall.Before(start.Wall()) && wall.Before(ambiguousFrom)
}

func (z Zone) String() string {
	return z.Name
}
