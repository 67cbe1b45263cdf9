package compose

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var ErrDimensionMismatch = errors.New("dimension mismatch")

// 亮度系数
const (
	redWeight   = 0.3
	greenWeight = 0.59
	blueWeight  = 0.11
)

// Luminance 返回 0.3R + 0.59G + 0.11B，不取整
// 每个乘积显式转 float64，禁止编译器融合成 FMA，保证各平台在 .5 处结果一致
func Luminance(r, g, b uint8) float64 {
	return float64(redWeight*float64(r)) + float64(greenWeight*float64(g)) + float64(blueWeight*float64(b))
}

// Gray 把亮度转成 uint8：四舍六入五成双 + 截断到 [0,255]，
// 与 canvas Uint8ClampedArray 赋值时的转换一致，例如 124.5 -> 124
func Gray(r, g, b uint8) uint8 {
	return clamp8(Luminance(r, g, b))
}

func clamp8(v float64) uint8 {
	v = math.RoundToEven(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Composite 按 mask 合成 RGBA 缓冲区，返回新分配的缓冲区
//
//	mask[i] != 0           像素原样输出
//	mask[i] == 0, bg == nil 输出灰度 (g, g, g, 255)
//	mask[i] == 0, bg != nil 输出背景像素 (bg.r, bg.g, bg.b, 255)，忽略背景 alpha
func Composite(src, mask, bg []uint8) ([]uint8, error) {
	if len(src)%4 != 0 {
		return nil, fmt.Errorf("%w: source length %d is not a multiple of 4", ErrDimensionMismatch, len(src))
	}
	if len(mask) != len(src)/4 {
		return nil, fmt.Errorf("%w: mask has %d entries for %d pixels", ErrDimensionMismatch, len(mask), len(src)/4)
	}
	if bg != nil && len(bg) != len(src) {
		return nil, fmt.Errorf("%w: background length %d, source length %d", ErrDimensionMismatch, len(bg), len(src))
	}

	out := make([]uint8, len(src))
	for i, m := range mask {
		o := i * 4
		r, g, b, a := src[o], src[o+1], src[o+2], src[o+3]
		switch {
		case m != 0:
			out[o], out[o+1], out[o+2], out[o+3] = r, g, b, a
		case bg == nil:
			v := Gray(r, g, b)
			out[o], out[o+1], out[o+2], out[o+3] = v, v, v, 255
		default:
			out[o], out[o+1], out[o+2], out[o+3] = bg[o], bg[o+1], bg[o+2], 255
		}
	}
	return out, nil
}

// CompositeImage 在 image 层面做合成：
// src 先画到原点对齐的 NRGBA 缓冲区；bg 若不为 nil 必须与 src 同尺寸（需要缩放时先调用 FitBackground）
func CompositeImage(src image.Image, m *Mask, bg image.Image) (*image.NRGBA, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil mask", ErrDimensionMismatch)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := ToBuffer(src)
	w, h := buf.Rect.Dx(), buf.Rect.Dy()
	if m.Width != w || m.Height != h {
		return nil, fmt.Errorf("%w: mask %dx%d, image %dx%d", ErrDimensionMismatch, m.Width, m.Height, w, h)
	}

	var bgPix []uint8
	if bg != nil {
		bb := bg.Bounds()
		if bb.Dx() != w || bb.Dy() != h {
			return nil, fmt.Errorf("%w: background %dx%d, image %dx%d", ErrDimensionMismatch, bb.Dx(), bb.Dy(), w, h)
		}
		bgPix = ToBuffer(bg).Pix
	}

	pix, err := Composite(buf.Pix, m.Data, bgPix)
	if err != nil {
		return nil, err
	}

	return &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}
