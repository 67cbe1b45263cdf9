package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuminance(t *testing.T) {
	assert.InDelta(t, 124.5, Luminance(200, 100, 50), 1e-9)
	assert.InDelta(t, 255.0, Luminance(255, 255, 255), 1e-9)
	assert.Equal(t, uint8(124), Gray(200, 100, 50))
	assert.Equal(t, uint8(255), Gray(255, 255, 255))
	assert.Equal(t, uint8(0), Gray(0, 0, 0))
	// 0.3*1 + 0.59*1 + 0.11*1 = 1.0
	assert.Equal(t, uint8(1), Gray(1, 1, 1))

	// 恰好落在 .5 的输入，各平台都要按四舍六入五成双
	for _, c := range []struct {
		r, g, b uint8
		want    uint8
	}{
		{200, 100, 50, 124},
		{0, 50, 0, 30},
		{5, 0, 0, 2},
	} {
		assert.Equal(t, c.want, Gray(c.r, c.g, c.b), "%d,%d,%d", c.r, c.g, c.b)
	}
}

func TestComposite(t *testing.T) {
	tests := []struct {
		name string
		src  []uint8
		mask []uint8
		bg   []uint8
		want []uint8
	}{
		{
			name: "mask 为 1 原样输出",
			src:  []uint8{10, 20, 30, 255},
			mask: []uint8{1},
			want: []uint8{10, 20, 30, 255},
		},
		{
			name: "mask 为 1 保留 alpha",
			src:  []uint8{10, 20, 30, 7},
			mask: []uint8{1},
			bg:   []uint8{1, 2, 3, 4},
			want: []uint8{10, 20, 30, 7},
		},
		{
			name: "mask 为 0 无背景转灰度",
			src:  []uint8{200, 100, 50, 255},
			mask: []uint8{0},
			want: []uint8{124, 124, 124, 255},
		},
		{
			name: "mask 为 0 灰度强制不透明",
			src:  []uint8{200, 100, 50, 0},
			mask: []uint8{0},
			want: []uint8{124, 124, 124, 255},
		},
		{
			name: "mask 为 0 使用背景并忽略背景 alpha",
			src:  []uint8{200, 100, 50, 255},
			mask: []uint8{0},
			bg:   []uint8{5, 6, 7, 9},
			want: []uint8{5, 6, 7, 255},
		},
		{
			name: "非 0 值视为前景",
			src:  []uint8{1, 2, 3, 4, 9, 9, 9, 9},
			mask: []uint8{255, 0},
			want: []uint8{1, 2, 3, 4, 9, 9, 9, 255},
		},
		{
			name: "空图像",
			src:  []uint8{},
			mask: []uint8{},
			want: []uint8{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Composite(tt.src, tt.mask, tt.bg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComposite_DimensionMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  []uint8
		mask []uint8
		bg   []uint8
	}{
		{name: "mask 太短", src: make([]uint8, 8), mask: []uint8{1}},
		{name: "mask 太长", src: make([]uint8, 4), mask: []uint8{1, 0}},
		{name: "背景尺寸不同", src: make([]uint8, 8), mask: []uint8{1, 0}, bg: make([]uint8, 4)},
		{name: "源缓冲区不是 4 的倍数", src: make([]uint8, 5), mask: []uint8{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Composite(tt.src, tt.mask, tt.bg)
			assert.ErrorIs(t, err, ErrDimensionMismatch)
			assert.Nil(t, got)
		})
	}
}

func TestComposite_DoesNotMutateInput(t *testing.T) {
	src := []uint8{200, 100, 50, 255, 1, 2, 3, 4}
	orig := append([]uint8(nil), src...)

	got, err := Composite(src, []uint8{0, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, orig, src)
	assert.Len(t, got, len(src))

	got[4] = 99
	assert.Equal(t, uint8(1), src[4])
}

func TestComposite_Idempotent(t *testing.T) {
	const w, h = 8, 6
	src := make([]uint8, w*h*4)
	bg := make([]uint8, w*h*4)
	mask := make([]uint8, w*h)
	for i := range src {
		src[i] = uint8(i * 7)
		bg[i] = uint8(255 - i*3)
	}
	for i := range mask {
		mask[i] = uint8(i % 3 % 2)
	}

	for _, background := range [][]uint8{nil, bg} {
		once, err := Composite(src, mask, background)
		require.NoError(t, err)

		twice, err := Composite(once, FullMask(w, h).Data, background)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestComposite_Properties(t *testing.T) {
	const n = 64
	src := make([]uint8, n*4)
	bg := make([]uint8, n*4)
	mask := make([]uint8, n)
	for i := 0; i < n*4; i++ {
		src[i] = uint8(i*31 + 17)
		bg[i] = uint8(i*13 + 5)
	}
	for i := range mask {
		if i%5 < 2 {
			mask[i] = 1
		}
	}

	gray, err := Composite(src, mask, nil)
	require.NoError(t, err)
	withBG, err := Composite(src, mask, bg)
	require.NoError(t, err)

	for i, m := range mask {
		o := i * 4
		if m != 0 {
			assert.Equal(t, src[o:o+4], gray[o:o+4])
			assert.Equal(t, src[o:o+4], withBG[o:o+4])
			continue
		}
		g := Gray(src[o], src[o+1], src[o+2])
		assert.Equal(t, []uint8{g, g, g, 255}, gray[o:o+4])
		assert.Equal(t, []uint8{bg[o], bg[o+1], bg[o+2], 255}, withBG[o:o+4])
	}
}

func TestCompositeImage(t *testing.T) {
	// 原点不在 (0,0) 的源图
	src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	src.SetNRGBA(5, 5, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(6, 5, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	m := NewMask(2, 1)
	m.Set(0, 0, true)

	got, err := CompositeImage(src, m, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 124, G: 124, B: 124, A: 255}, got.NRGBAAt(1, 0))

	bg := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	bg.SetNRGBA(1, 0, color.NRGBA{R: 5, G: 6, B: 7, A: 9})
	got, err = CompositeImage(src, m, bg)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 5, G: 6, B: 7, A: 255}, got.NRGBAAt(1, 0))
}

func TestCompositeImage_Mismatch(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	_, err := CompositeImage(src, NewMask(3, 4), nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = CompositeImage(src, &Mask{Width: 4, Height: 4, Data: make([]uint8, 3)}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = CompositeImage(src, nil, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = CompositeImage(src, NewMask(4, 4), image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCompositeImage_TopRowsSubImage(t *testing.T) {
	parent := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for i := 0; i < len(parent.Pix); i += 4 {
		parent.Pix[i], parent.Pix[i+1], parent.Pix[i+2], parent.Pix[i+3] = 200, 100, 50, 255
	}
	bgParent := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for i := 0; i < len(bgParent.Pix); i += 4 {
		bgParent.Pix[i], bgParent.Pix[i+1], bgParent.Pix[i+2], bgParent.Pix[i+3] = 1, 2, 3, 9
	}
	src := parent.SubImage(image.Rect(0, 0, 3, 2))
	bg := bgParent.SubImage(image.Rect(0, 0, 3, 2))

	m := NewMask(3, 2)
	m.Set(0, 0, true)

	got, err := CompositeImage(src, m, bg)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	assert.Len(t, got.Pix, 3*2*4)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, got.NRGBAAt(2, 1))

	gray, err := CompositeImage(src, m, nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 124, G: 124, B: 124, A: 255}, gray.NRGBAAt(1, 1))
}

func TestFitBackground(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for i := range bg.Pix {
		bg.Pix[i] = 128
	}

	got := FitBackground(bg, 7, 3)
	assert.Equal(t, image.Rect(0, 0, 7, 3), got.Bounds())
	assert.Len(t, got.Pix, 7*3*4)

	same := FitBackground(bg, 20, 10)
	assert.Equal(t, image.Rect(0, 0, 20, 10), same.Bounds())
	assert.Equal(t, uint8(128), same.Pix[0])
}

func TestToBuffer(t *testing.T) {
	n := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	assert.Same(t, n, ToBuffer(n))

	sub := n.SubImage(image.Rect(1, 1, 3, 3)).(*image.NRGBA)
	buf := ToBuffer(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), buf.Bounds())
	assert.Equal(t, 8, buf.Stride)

	// 顶部两行的 SubImage 原点不变、stride 紧凑，但 Pix 一直延伸到父图末尾
	top := n.SubImage(image.Rect(0, 0, 3, 2)).(*image.NRGBA)
	assert.Len(t, top.Pix, 3*3*4)
	view := ToBuffer(top)
	assert.Equal(t, image.Rect(0, 0, 3, 2), view.Bounds())
	assert.Len(t, view.Pix, 3*2*4)

	g := image.NewGray(image.Rect(0, 0, 1, 1))
	g.Pix[0] = 77
	assert.Equal(t, color.NRGBA{R: 77, G: 77, B: 77, A: 255}, ToBuffer(g).NRGBAAt(0, 0))
}
