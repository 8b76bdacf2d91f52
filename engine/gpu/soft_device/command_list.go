package soft_device

import (
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

type commandList struct {
	gpu.Recorder
	dev   *device
	alloc *allocator
}

var _ gpu.CommandList = (*commandList)(nil)

func (l *commandList) Reset(alloc gpu.CommandAllocator) error {
	a, ok := alloc.(*allocator)
	if !ok {
		return errors.Wrap(gpu.ErrUnsupported, "allocator from another device")
	}
	if err := l.dev.RemovedReason(); err != nil {
		return err
	}
	if err := l.Begin(); err != nil {
		return err
	}
	l.alloc = a
	return nil
}

func (l *commandList) Close() error {
	return l.End()
}

func (l *commandList) Release() {}
