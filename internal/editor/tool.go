package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/shift-attendance/backend/internal/timeline"
)

var ErrInvalidTool = errors.New("无效的画笔")

type ToolKind int

const (
	ToolTemplate ToolKind = iota + 1
	ToolStatus
	ToolEraser
	ToolCustom
)

var toolKindNames = map[ToolKind]string{
	ToolTemplate: "template",
	ToolStatus:   "status",
	ToolEraser:   "eraser",
	ToolCustom:   "custom",
}

func (k ToolKind) String() string {
	if name, ok := toolKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ToolKind(%d)", int(k))
}

func (k ToolKind) MarshalText() ([]byte, error) {
	name, ok := toolKindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTool, int(k))
	}
	return []byte(name), nil
}

func (k *ToolKind) UnmarshalText(text []byte) error {
	for kind, name := range toolKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidTool, string(text))
}

// Template 是固定的 (开始, 结束, 标签) 班次，点击范围内任意格子都会套用整个班次
type Template struct {
	Name  string         `json:"name"`
	Start timegrid.Clock `json:"start"`
	End   timegrid.Clock `json:"end"`
	Label string         `json:"label"`
	Color string         `json:"color"`
}

func TemplateFromShiftTemplate(st *domain.ShiftTemplate) Template {
	return Template{
		Name:  st.Name,
		Start: st.StartTime,
		End:   st.EndTime,
		Label: st.Label,
		Color: st.Color,
	}
}

func (t Template) slots(layout timegrid.Layout) (int, int, error) {
	if t.Label == "" {
		return 0, 0, fmt.Errorf("%w: 模板 %q 缺少标签", ErrInvalidTool, t.Name)
	}
	if t.Start >= t.End {
		return 0, 0, fmt.Errorf("%w: 模板 %q 的开始时间不早于结束时间", ErrInvalidTool, t.Name)
	}
	from, err := layout.TimeToSlot(t.Start)
	if err != nil {
		return 0, 0, err
	}
	to, err := layout.EndSlot(t.End)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func (t Template) cell() timeline.Cell {
	color := t.Color
	if color == "" || IsStatusLabel(t.Label) {
		color = ColorFor(t.Label)
	}
	return timeline.Cell{Label: t.Label, Color: color}
}

// Tool 是当前激活的画笔，按 Kind 区分使用哪一部分载荷
type Tool struct {
	Kind     ToolKind  `json:"kind"`
	Template *Template `json:"template,omitempty"`
	Label    string    `json:"label,omitempty"`
	Color    string    `json:"color,omitempty"`
}

func TemplateTool(t Template) Tool {
	return Tool{Kind: ToolTemplate, Template: &t}
}

func StatusTool(label string) Tool {
	return Tool{Kind: ToolStatus, Label: label, Color: ColorFor(label)}
}

func EraserTool() Tool {
	return Tool{Kind: ToolEraser}
}

func CustomTool(label, color string) Tool {
	return Tool{Kind: ToolCustom, Label: label, Color: color}
}

func (t Tool) Validate(layout timegrid.Layout) error {
	switch t.Kind {
	case ToolTemplate:
		if t.Template == nil {
			return fmt.Errorf("%w: 模板画笔缺少模板", ErrInvalidTool)
		}
		if _, _, err := t.Template.slots(layout); err != nil {
			return err
		}
		if t.Template.Color != "" {
			return checkStatusColor(t.Template.Label, t.Template.Color)
		}
		return nil
	case ToolStatus:
		if !IsStatusLabel(t.Label) {
			return fmt.Errorf("%w: 未知的状态 %q", ErrInvalidTool, t.Label)
		}
		return nil
	case ToolEraser:
		return nil
	case ToolCustom:
		if t.Label == "" {
			return fmt.Errorf("%w: 自定义画笔缺少标签", ErrInvalidTool)
		}
		if t.Color == "" {
			return fmt.Errorf("%w: 自定义画笔缺少颜色", ErrInvalidTool)
		}
		return checkStatusColor(t.Label, t.Color)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidTool, t.Kind)
	}
}

// 内置状态的颜色是固定的
func checkStatusColor(label, color string) error {
	if IsStatusLabel(label) && !strings.EqualFold(color, ColorFor(label)) {
		return fmt.Errorf("%w: 状态 %q 的颜色只能是 %s", ErrInvalidTool, label, ColorFor(label))
	}
	return nil
}

// cell 返回画笔落下后格子的内容，橡皮擦返回空格子
func (t Tool) cell() timeline.Cell {
	switch t.Kind {
	case ToolTemplate:
		return t.Template.cell()
	case ToolStatus:
		return timeline.Cell{Label: t.Label, Color: ColorFor(t.Label)}
	case ToolCustom:
		if IsStatusLabel(t.Label) {
			return timeline.Cell{Label: t.Label, Color: ColorFor(t.Label)}
		}
		return timeline.Cell{Label: t.Label, Color: t.Color}
	default:
		return timeline.Cell{}
	}
}
