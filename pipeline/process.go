package pipeline

import (
	"context"
	"image"

	"github.com/chaos-io/colourpop/compose"
	"github.com/chaos-io/colourpop/segment"
)

// Process 无状态的一次处理：drawToBuffer -> requestMask -> 背景适配 -> composite
// bg 为 nil 时背景转灰度
func Process(ctx context.Context, seg segment.Segmenter, opts segment.Options, fg, bg image.Image) (*image.NRGBA, *compose.Mask, error) {
	buf := compose.ToBuffer(fg)

	m, err := segment.Segment(ctx, seg, buf, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out, err := composite(buf, m, bg)
	if err != nil {
		return nil, nil, err
	}
	return out, m, nil
}

func composite(fg *image.NRGBA, m *compose.Mask, bg image.Image) (*image.NRGBA, error) {
	var fitted image.Image
	if bg != nil {
		fitted = compose.FitBackground(bg, fg.Rect.Dx(), fg.Rect.Dy())
	}
	return compose.CompositeImage(fg, m, fitted)
}
