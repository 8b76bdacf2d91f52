package engine

// Adapter backends register themselves with gpu.Register; OpenDevice tries hardware first.
import (
	_ "github.com/Carmen-Shannon/oxy-quilt/engine/gpu/soft_device"
	_ "github.com/Carmen-Shannon/oxy-quilt/engine/gpu/wgpu_device"
)
