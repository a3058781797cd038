package timegrid

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MinutesPerDay = 24 * 60

// 默认的格子宽度为 30 分钟，即一天 48 个格子
const DefaultSlotMinutes = 30

var ErrInvalidTime = errors.New("无效的时间")

// Clock 表示一天中的某个时刻，单位为自 00:00 起的分钟数
// 合法范围为 [0, 1440]，其中 1440（即 24:00）只能作为区间的结束时间出现
type Clock int

const EndOfDay Clock = MinutesPerDay

func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || minute < 0 || minute >= 60 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	c := Clock(hour*60 + minute)
	if c > EndOfDay {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	return c, nil
}

// ParseClock 解析 HH:MM 或 HH:MM:SS 格式的时间，秒必须为 0
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		nums[i] = n
	}

	if len(nums) == 3 && nums[2] != 0 {
		return 0, fmt.Errorf("%w: %q 必须精确到分钟", ErrInvalidTime, s)
	}

	return NewClock(nums[0], nums[1])
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Valid 判断是否可以作为时间点（区间开始）使用
func (c Clock) Valid() bool {
	return c >= 0 && c < EndOfDay
}

// ValidEnd 判断是否可以作为区间结束时间使用
func (c Clock) ValidEnd() bool {
	return c > 0 && c <= EndOfDay
}

func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// 数据库中以分钟数（SMALLINT）存储
func (c Clock) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *Clock) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*c = Clock(v)
	case int32:
		*c = Clock(v)
	case int:
		*c = Clock(v)
	default:
		return fmt.Errorf("无法将 %T 转换为 Clock", src)
	}
	if *c < 0 || *c > EndOfDay {
		return fmt.Errorf("%w: %d", ErrInvalidTime, int(*c))
	}
	return nil
}

// Layout 描述一天被划分为固定宽度格子的方式
type Layout struct {
	slotMinutes int
}

func NewLayout(slotMinutes int) (Layout, error) {
	if slotMinutes <= 0 || MinutesPerDay%slotMinutes != 0 {
		return Layout{}, fmt.Errorf("格子宽度 %d 分钟无法整除一天", slotMinutes)
	}
	return Layout{slotMinutes: slotMinutes}, nil
}

func DefaultLayout() Layout {
	return Layout{slotMinutes: DefaultSlotMinutes}
}

func (l Layout) SlotMinutes() int {
	if l.slotMinutes == 0 {
		return DefaultSlotMinutes
	}
	return l.slotMinutes
}

func (l Layout) Slots() int {
	return MinutesPerDay / l.SlotMinutes()
}

// TimeToSlot 返回包含该时刻的格子下标（向下取整）
func (l Layout) TimeToSlot(c Clock) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d 分钟", ErrInvalidTime, int(c))
	}
	return int(c) / l.SlotMinutes(), nil
}

// SlotToTime 返回格子的开始时刻；index == Slots() 时返回 24:00，用于区间结束
func (l Layout) SlotToTime(index int) (Clock, error) {
	if index < 0 || index > l.Slots() {
		return 0, fmt.Errorf("%w: 格子下标 %d 越界", ErrInvalidTime, index)
	}
	return Clock(index * l.SlotMinutes()), nil
}

// EndSlot 返回覆盖到 end（不含）所需的格子上界，按格子向上取整
func (l Layout) EndSlot(end Clock) (int, error) {
	if !end.ValidEnd() {
		return 0, fmt.Errorf("%w: %d 分钟", ErrInvalidTime, int(end))
	}
	w := l.SlotMinutes()
	return (int(end) + w - 1) / w, nil
}

// Aligned 判断时刻是否恰好落在格子边界上
func (l Layout) Aligned(c Clock) bool {
	return int(c)%l.SlotMinutes() == 0
}

// Clamp 将下标限制在 [0, Slots()] 中
func (l Layout) Clamp(index int) int {
	return max(0, min(index, l.Slots()))
}
