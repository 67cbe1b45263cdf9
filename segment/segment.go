package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/chaos-io/colourpop/compose"
)

var (
	ErrProviderFailure = errors.New("segmentation provider failure")
	ErrInvalidOptions  = errors.New("invalid segmentation options")
)

// Segmenter 人像分割：返回与图像同尺寸的二值 mask
type Segmenter interface {
	SegmentPerson(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error)
}

// Segment 调用 provider 并统一错误语义：
// provider 的任何错误（包括超时）和空 mask 都是 ErrProviderFailure，
// mask 尺寸与图像不一致是 compose.ErrDimensionMismatch
func Segment(ctx context.Context, s Segmenter, img image.Image, opts Options) (*compose.Mask, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	m, err := s.SegmentPerson(ctx, img, opts)
	if err != nil {
		if errors.Is(err, ErrProviderFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	if m == nil || (m.Len() == 0 && !img.Bounds().Empty()) {
		return nil, fmt.Errorf("%w: empty mask", ErrProviderFailure)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if m.Width != b.Dx() || m.Height != b.Dy() {
		return nil, fmt.Errorf("%w: mask %dx%d, image %dx%d", compose.ErrDimensionMismatch, m.Width, m.Height, b.Dx(), b.Dy())
	}

	slog.Debug("segmented image", "width", m.Width, "height", m.Height, "person", m.Count())
	return m, nil
}

// flipHorizontal 原地水平翻转 mask
func flipHorizontal(m *compose.Mask) {
	for y := 0; y < m.Height; y++ {
		row := m.Data[y*m.Width : (y+1)*m.Width]
		for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}
