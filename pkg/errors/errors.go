package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
// 具体错误通过 fmt.Errorf("%w: ...", def) 包装，调用方用 errors.Is 匹配。
type Definition struct {
	Code    string
	Message string
}

// 排期配置错误：在管理员保存配置时立即暴露，不在批处理中静默兜底。
var (
	InvalidScheduleConfig = Definition{Code: "INVALID_SCHEDULE_CONFIG", Message: "Invalid schedule config"}
	InvalidWeekID         = Definition{Code: "INVALID_WEEK_ID", Message: "Invalid week id"}
	OrganizationNotFound  = Definition{Code: "ORGANIZATION_NOT_FOUND", Message: "Organization not found"}
)

// 时区换算边界：按固定策略处理，只记 debug 日志，不返回给调用方。
var (
	AmbiguousLocalTime   = Definition{Code: "AMBIGUOUS_LOCAL_TIME", Message: "Ambiguous local time"}
	NonexistentLocalTime = Definition{Code: "NONEXISTENT_LOCAL_TIME", Message: "Nonexistent local time"}
)

// 汇总相关：降级处理，跳过的用户记录在结果里。
var (
	PartialAggregationFailure = Definition{Code: "PARTIAL_AGGREGATION_FAILURE", Message: "Partial aggregation failure"}
	MalformedRecord           = Definition{Code: "MALFORMED_RECORD", Message: "Malformed record"}
)

// 提醒账本：重复提醒不是错误，MarkSent 重复调用直接返回成功。
var (
	DuplicateReminderAttempt = Definition{Code: "DUPLICATE_REMINDER_ATTEMPT", Message: "Duplicate reminder attempt"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidScheduleConfig.Code:     InvalidScheduleConfig,
	InvalidWeekID.Code:             InvalidWeekID,
	OrganizationNotFound.Code:      OrganizationNotFound,
	AmbiguousLocalTime.Code:        AmbiguousLocalTime,
	NonexistentLocalTime.Code:      NonexistentLocalTime,
	PartialAggregationFailure.Code: PartialAggregationFailure,
	MalformedRecord.Code:           MalformedRecord,
	DuplicateReminderAttempt.Code:  DuplicateReminderAttempt,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
