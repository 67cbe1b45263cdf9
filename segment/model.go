package segment

import (
	"fmt"
	"sort"
)

type Architecture string

const (
	ResNet50    Architecture = "ResNet50"
	MobileNetV1 Architecture = "MobileNetV1"
)

// ModelConfig 选择底层网络，构造 provider 时传入，之后不可变
type ModelConfig struct {
	Architecture Architecture `json:"architecture" yaml:"architecture"`
	OutputStride int          `json:"outputStride" yaml:"output_stride"`
	Multiplier   float64      `json:"multiplier" yaml:"multiplier"`
	QuantBytes   int          `json:"quantBytes" yaml:"quant_bytes"`
}

const DefaultModel = "resnet"

var Models = map[string]ModelConfig{
	"resnet": {
		Architecture: ResNet50,
		OutputStride: 16,
		Multiplier:   1,
		QuantBytes:   2,
	},
	"mobilenet": {
		Architecture: MobileNetV1,
		OutputStride: 8,
		Multiplier:   0.75,
		QuantBytes:   2,
	},
}

func LookupModel(name string) (ModelConfig, error) {
	m, ok := Models[name]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown model %q", name)
	}
	return m, nil
}

// ModelNames 按名称排序返回所有预设
func ModelNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m ModelConfig) Validate() error {
	switch m.Architecture {
	case ResNet50:
		if m.OutputStride != 16 && m.OutputStride != 32 {
			return fmt.Errorf("%s: invalid output stride %d", m.Architecture, m.OutputStride)
		}
		if m.Multiplier != 1 {
			return fmt.Errorf("%s: invalid multiplier %v", m.Architecture, m.Multiplier)
		}
	case MobileNetV1:
		if m.OutputStride != 8 && m.OutputStride != 16 {
			return fmt.Errorf("%s: invalid output stride %d", m.Architecture, m.OutputStride)
		}
		if m.Multiplier != 0.5 && m.Multiplier != 0.75 && m.Multiplier != 1 {
			return fmt.Errorf("%s: invalid multiplier %v", m.Architecture, m.Multiplier)
		}
	default:
		return fmt.Errorf("unknown architecture %q", m.Architecture)
	}

	switch m.QuantBytes {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%s: invalid quant bytes %d", m.Architecture, m.QuantBytes)
	}
	return nil
}
