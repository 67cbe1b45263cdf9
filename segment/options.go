package segment

import "fmt"

// Resolution 推理时的内部分辨率，越低越快、边缘越粗
type Resolution string

const (
	ResolutionLow    Resolution = "low"
	ResolutionMedium Resolution = "medium"
	ResolutionHigh   Resolution = "high"
	ResolutionFull   Resolution = "full"
)

var resolutionScales = map[Resolution]float64{
	ResolutionLow:    0.25,
	ResolutionMedium: 0.5,
	ResolutionHigh:   0.75,
	ResolutionFull:   1.0,
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if _, ok := resolutionScales[r]; !ok {
		return "", fmt.Errorf("invalid internal resolution %q", s)
	}
	return r, nil
}

// Scale 模型实际运行尺寸相对输入的比例
func (r Resolution) Scale() (float64, error) {
	s, ok := resolutionScales[r]
	if !ok {
		return 0, fmt.Errorf("invalid internal resolution %q", string(r))
	}
	return s, nil
}

type Options struct {
	FlipHorizontal        bool       `json:"flipHorizontal" yaml:"flip_horizontal"`
	InternalResolution    Resolution `json:"internalResolution" yaml:"internal_resolution"`
	SegmentationThreshold float64    `json:"segmentationThreshold" yaml:"segmentation_threshold"`
}

func DefaultOptions() Options {
	return Options{
		FlipHorizontal:        false,
		InternalResolution:    ResolutionMedium,
		SegmentationThreshold: 0.7,
	}
}

func (o Options) Validate() error {
	if _, err := o.InternalResolution.Scale(); err != nil {
		return err
	}
	if o.SegmentationThreshold < 0 || o.SegmentationThreshold > 1 {
		return fmt.Errorf("segmentation threshold %v out of [0,1]", o.SegmentationThreshold)
	}
	return nil
}
