package sim

import (
	"fmt"
	"sync"
)

// Camera records one named clip per trial. It tracks clip names the way
// a real recorder tracks files, and refuses overlapping recordings.
type Camera struct {
	prefix string

	mu        sync.Mutex
	recording bool
	current   string
	clips     []string
}

func NewCamera(prefix string) *Camera {
	if prefix == "" {
		prefix = "trial"
	}
	return &Camera{prefix: prefix}
}

func (c *Camera) StartRecording(trialIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording {
		return fmt.Errorf("%w: camera already recording %s", ErrBadDevice, c.current)
	}
	c.recording = true
	c.current = fmt.Sprintf("%s_%04d.h264", c.prefix, trialIndex)
	return nil
}

func (c *Camera) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording {
		return fmt.Errorf("%w: camera is not recording", ErrBadDevice)
	}
	c.clips = append(c.clips, c.current)
	c.recording = false
	c.current = ""
	return nil
}

// Clips returns the names of completed recordings in trial order.
func (c *Camera) Clips() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.clips))
	copy(out, c.clips)
	return out
}
