package compose

import "fmt"

// Mask 每个像素一个前景/背景标记，行优先，与图像像素顺序一致
// 非 0 即前景（person），0 为背景
type Mask struct {
	Width  int
	Height int
	Data   []uint8
}

func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]uint8, width*height),
	}
}

// FullMask 全部为前景的 mask，合成时等于原样输出
func FullMask(width, height int) *Mask {
	m := NewMask(width, height)
	for i := range m.Data {
		m.Data[i] = 1
	}
	return m
}

func (m *Mask) Len() int {
	return len(m.Data)
}

func (m *Mask) At(x, y int) bool {
	return m.Data[y*m.Width+x] != 0
}

func (m *Mask) Set(x, y int, v bool) {
	if v {
		m.Data[y*m.Width+x] = 1
	} else {
		m.Data[y*m.Width+x] = 0
	}
}

// Validate 校验数据长度与宽高一致
func (m *Mask) Validate() error {
	if m.Width < 0 || m.Height < 0 {
		return fmt.Errorf("%w: negative mask size %dx%d", ErrDimensionMismatch, m.Width, m.Height)
	}
	if len(m.Data) != m.Width*m.Height {
		return fmt.Errorf("%w: mask %dx%d has %d entries", ErrDimensionMismatch, m.Width, m.Height, len(m.Data))
	}
	return nil
}

// Count 返回前景像素数量
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}
