package segment

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/colourpop/compose"
)

type segmenterFunc func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error)

func (f segmenterFunc) SegmentPerson(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
	return f(ctx, img, opts)
}

func TestSegment(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))

	tests := []struct {
		name    string
		seg     segmenterFunc
		opts    Options
		wantErr error
	}{
		{
			name: "成功",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				return compose.FullMask(3, 2), nil
			},
			opts: DefaultOptions(),
		},
		{
			name: "provider 报错",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				return nil, errors.New("model crashed")
			},
			opts:    DefaultOptions(),
			wantErr: ErrProviderFailure,
		},
		{
			name: "provider 超时",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				return nil, context.DeadlineExceeded
			},
			opts:    DefaultOptions(),
			wantErr: ErrProviderFailure,
		},
		{
			name: "nil mask 不能当作空白 mask",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				return nil, nil
			},
			opts:    DefaultOptions(),
			wantErr: ErrProviderFailure,
		},
		{
			name: "空 mask",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				return &compose.Mask{}, nil
			},
			opts:    DefaultOptions(),
			wantErr: ErrProviderFailure,
		},
		{
			name: "mask 尺寸不一致",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				return compose.NewMask(2, 3), nil
			},
			opts:    DefaultOptions(),
			wantErr: compose.ErrDimensionMismatch,
		},
		{
			name: "阈值越界",
			seg: func(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
				t.Fatal("provider must not be called")
				return nil, nil
			},
			opts:    Options{InternalResolution: ResolutionMedium, SegmentationThreshold: 1.5},
			wantErr: ErrInvalidOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Segment(context.Background(), tt.seg, img, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, m.Width)
			assert.Equal(t, 2, m.Height)
		})
	}
}

func TestOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.False(t, opts.FlipHorizontal)
	assert.Equal(t, ResolutionMedium, opts.InternalResolution)
	assert.Equal(t, 0.7, opts.SegmentationThreshold)
	assert.NoError(t, opts.Validate())

	assert.Error(t, Options{InternalResolution: "ultra", SegmentationThreshold: 0.5}.Validate())
	assert.Error(t, Options{InternalResolution: ResolutionLow, SegmentationThreshold: -0.1}.Validate())

	r, err := ParseResolution("full")
	require.NoError(t, err)
	s, err := r.Scale()
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	_, err = ParseResolution("")
	assert.Error(t, err)
}

func TestModels(t *testing.T) {
	assert.Equal(t, []string{"mobilenet", "resnet"}, ModelNames())

	for _, name := range ModelNames() {
		m, err := LookupModel(name)
		require.NoError(t, err)
		assert.NoError(t, m.Validate(), name)
	}

	resnet, err := LookupModel(DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, ModelConfig{Architecture: ResNet50, OutputStride: 16, Multiplier: 1, QuantBytes: 2}, resnet)

	_, err = LookupModel("vgg")
	assert.Error(t, err)

	bad := []ModelConfig{
		{Architecture: ResNet50, OutputStride: 8, Multiplier: 1, QuantBytes: 2},
		{Architecture: ResNet50, OutputStride: 16, Multiplier: 0.5, QuantBytes: 2},
		{Architecture: MobileNetV1, OutputStride: 32, Multiplier: 0.75, QuantBytes: 2},
		{Architecture: MobileNetV1, OutputStride: 8, Multiplier: 0.75, QuantBytes: 3},
		{Architecture: "VGG", OutputStride: 8, Multiplier: 1, QuantBytes: 2},
	}
	for _, m := range bad {
		assert.Error(t, m.Validate(), "%+v", m)
	}
}

func TestFlipHorizontal(t *testing.T) {
	m := &compose.Mask{Width: 3, Height: 2, Data: []uint8{1, 0, 0, 0, 1, 1}}
	flipHorizontal(m)
	assert.Equal(t, []uint8{0, 0, 1, 1, 1, 0}, m.Data)
}
