package breaks

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
)

var (
	ErrQuotaExceeded     = errors.New("超出每日休息额度")
	ErrCapacityExceeded  = errors.New("该时段的休息名额已满")
	ErrInvalidTransition = errors.New("休息状态无法进行该变更")
	ErrInvalidDuration   = errors.New("不支持的休息时长")
	ErrOverlapsOwnBreak  = errors.New("与自己已安排的休息时间冲突")
	ErrBreakNotFound     = errors.New("休息记录不存在")
)

// QuotaError 携带额度信息，方便调用方提示用户
type QuotaError struct {
	Policy           string `json:"policy"`
	DurationMinutes  int    `json:"durationMinutes"`
	Used             int    `json:"used"`
	Allowed          int    `json:"allowed"`
	RemainingMinutes int    `json:"remainingMinutes"`
}

func (e *QuotaError) Error() string {
	switch e.Policy {
	case PolicyMinutes:
		return fmt.Sprintf("每日休息上限为 %d 分钟，剩余 %d 分钟", e.Allowed, e.RemainingMinutes)
	default:
		return fmt.Sprintf("%d 分钟的休息每天最多 %d 次，今日已使用 %d 次", e.DurationMinutes, e.Allowed, e.Used)
	}
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

type CapacityError struct {
	Concurrent int `json:"concurrent"`
	Max        int `json:"max"`
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("该时段已有 %d 人休息，团队上限为 %d 人", e.Concurrent, e.Max)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

type TransitionError struct {
	From domain.BreakStatus
	To   domain.BreakStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("休息状态无法从 %s 变更为 %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
