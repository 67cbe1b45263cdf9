package compose

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// ToBuffer 把任意图片画到原点对齐、stride 紧凑的 NRGBA 上（非预乘 alpha），
// 相当于 drawImage + getImageData
// 返回值的 Pix 长度恒为 Dx*Dy*4；已满足条件的 NRGBA 直接复用底层数组，不拷贝
func ToBuffer(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == b.Dx()*4 {
		size := b.Dx() * b.Dy() * 4
		if len(n.Pix) == size {
			return n
		}
		// SubImage 取顶部若干行时 Pix 仍延伸到父图末尾，截成视图
		if len(n.Pix) > size {
			return &image.NRGBA{Pix: n.Pix[:size:size], Stride: n.Stride, Rect: b}
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FitBackground 把背景拉伸到 width x height 的画布上
func FitBackground(bg image.Image, width, height int) *image.NRGBA {
	// resize 把 0 当作“保持比例”，空画布单独处理
	if width == 0 || height == 0 {
		return image.NewNRGBA(image.Rect(0, 0, width, height))
	}
	b := bg.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return ToBuffer(bg)
	}
	resized := resize.Resize(uint(width), uint(height), bg, resize.Lanczos3)
	return ToBuffer(resized)
}
