package segment

import (
	"context"
	"errors"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/chaos-io/colourpop/compose"
)

var ErrNoAlphaMatte = errors.New("image carries no alpha matte")

// AlphaSegmenter 针对已经抠好图（带透明通道）的输入：
// 把 alpha/255 当作人像得分，在内部分辨率下做阈值，再放大回原尺寸
type AlphaSegmenter struct{}

func NewAlphaSegmenter() *AlphaSegmenter {
	return &AlphaSegmenter{}
}

func (a *AlphaSegmenter) SegmentPerson(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
	scale, err := opts.InternalResolution.Scale()
	if err != nil {
		return nil, err
	}

	src := compose.ToBuffer(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		return compose.NewMask(w, h), nil
	}
	if !hasUsefulAlpha(src) {
		return nil, ErrNoAlphaMatte
	}

	// 1. 提取 alpha 作为得分图
	scores := image.NewGray(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		scores.Pix[i] = src.Pix[i*4+3]
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. 缩放到内部分辨率
	iw, ih := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
	if iw != w || ih != h {
		scores = toGray(resize.Resize(uint(iw), uint(ih), scores, resize.Bilinear))
	}

	// 3. 阈值
	th := opts.SegmentationThreshold * 255
	small := image.NewGray(scores.Rect)
	for y := 0; y < ih; y++ {
		for x := 0; x < iw; x++ {
			if float64(scores.Pix[y*scores.Stride+x]) > th {
				small.Pix[y*small.Stride+x] = 1
			}
		}
	}

	// 4. 放大回原尺寸（最近邻，保持二值）
	if iw != w || ih != h {
		small = toGray(resize.Resize(uint(w), uint(h), small, resize.NearestNeighbor))
	}

	m := compose.NewMask(w, h)
	for y := 0; y < h; y++ {
		row := small.Pix[y*small.Stride : y*small.Stride+w]
		for x, v := range row {
			if v != 0 {
				m.Data[y*w+x] = 1
			}
		}
	}

	if opts.FlipHorizontal {
		flipHorizontal(m)
	}
	return m, nil
}

// hasUsefulAlpha 只要存在非 255 的 alpha，就认为已有抠图
func hasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
