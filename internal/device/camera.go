// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package device

import (
	"context"

	"github.com/scriptdev/scriptdev/internal/bridge"
)

// CameraAdapterName is the adapter name of scripted cameras.
const CameraAdapterName = "ScriptCamera"

// CameraProperties are the attributes every camera script must define.
var CameraProperties = []string{
	"exposure", "top", "left", "width", "height", "binning", "trigger", "read",
}

// defaultBytesPerPixel is used for image geometry before the first snap.
// Frames built from row tables are 16-bit.
const defaultBytesPerPixel = 2

// Camera is a scripted camera. Its script object captures with trigger()
// followed by read(), which returns a frame.
type Camera struct {
	*Base

	trigger *bridge.Object
	read    *bridge.Object
}

// NewCamera creates a camera. No interpreter call is made.
func NewCamera(reg *bridge.Registry, host Host, name string, settings Settings) *Camera {
	c := &Camera{Base: newBase(CameraAdapterName, name, reg, host, settings)}
	c.validate = c.initializeDevice
	c.onShutdown = c.releaseCallables
	return c
}

// initializeDevice checks the camera contract and caches the capture
// callables.
func (c *Camera) initializeDevice(_ context.Context) error {
	if err := c.bridge.Require(CameraProperties...); err != nil {
		return err
	}
	trigger, err := c.bridge.Method("trigger")
	if err != nil {
		return err
	}
	read, err := c.bridge.Method("read")
	if err != nil {
		trigger.Release()
		return err
	}
	c.trigger = trigger
	c.read = read
	return nil
}

func (c *Camera) releaseCallables() {
	c.trigger.Release()
	c.read.Release()
	c.trigger = nil
	c.read = nil
}

// SnapImage captures one frame. The frame stays available through
// ImageBuffer until the next snap or shutdown.
func (c *Camera) SnapImage(ctx context.Context) error {
	_, err := c.bridge.Capture(ctx, c.trigger, c.read)
	return err
}

// ImageBuffer returns the pixels of the last snap by reference, or nil.
func (c *Camera) ImageBuffer() []byte {
	if f := c.bridge.PendingFrame(); f != nil {
		return f.Pix
	}
	return nil
}

// ImageWidth returns the width of the last frame, or the ROI width before
// the first snap.
func (c *Camera) ImageWidth() (int, error) {
	if f := c.bridge.PendingFrame(); f != nil {
		return f.Width, nil
	}
	return c.bridge.Int("width")
}

// ImageHeight returns the height of the last frame, or the ROI height
// before the first snap.
func (c *Camera) ImageHeight() (int, error) {
	if f := c.bridge.PendingFrame(); f != nil {
		return f.Height, nil
	}
	return c.bridge.Int("height")
}

// ImageBytesPerPixel returns the pixel size of the last frame.
func (c *Camera) ImageBytesPerPixel() int {
	if f := c.bridge.PendingFrame(); f != nil {
		return f.BytesPerPixel
	}
	return defaultBytesPerPixel
}

// BitDepth returns the script's bit_depth property, or 8 bits per byte of
// pixel when it has none.
func (c *Camera) BitDepth() (int, error) {
	has, err := c.bridge.Has("bit_depth")
	if err != nil {
		return 0, err
	}
	if !has {
		return 8 * c.ImageBytesPerPixel(), nil
	}
	return c.bridge.Int("bit_depth")
}

// ImageBufferSize returns the buffer size in bytes.
func (c *Camera) ImageBufferSize() (int, error) {
	if f := c.bridge.PendingFrame(); f != nil {
		return f.Len(), nil
	}
	w, err := c.ImageWidth()
	if err != nil {
		return 0, err
	}
	h, err := c.ImageHeight()
	if err != nil {
		return 0, err
	}
	return w * h * c.ImageBytesPerPixel(), nil
}

// SetROI sets the region of interest. Scripts with a roi property receive
// it as one {left, top, width, height} tuple.
func (c *Camera) SetROI(x, y, width, height int) error {
	has, err := c.bridge.Has("roi")
	if err != nil {
		return err
	}
	if has {
		return c.bridge.Set("roi", []int{x, y, width, height})
	}
	for _, p := range []struct {
		name  string
		value int
	}{
		{"left", x}, {"top", y}, {"width", width}, {"height", height},
	} {
		if err := c.bridge.SetInt(p.name, p.value); err != nil {
			return err
		}
	}
	return nil
}

// ROI returns the region of interest as x, y, width, height.
func (c *Camera) ROI() (x, y, width, height int, err error) {
	has, err := c.bridge.Has("roi")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if has {
		roi, err := c.bridge.IntTuple("roi", 4)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		return roi[0], roi[1], roi[2], roi[3], nil
	}
	values := make([]int, 4)
	for i, name := range []string{"left", "top", "width", "height"} {
		if values[i], err = c.bridge.Int(name); err != nil {
			return 0, 0, 0, 0, err
		}
	}
	return values[0], values[1], values[2], values[3], nil
}

// ClearROI resets the region of interest to the full sensor. The script's
// clear_roi method is used when present; otherwise the sensor_width and
// sensor_height properties give the full frame.
func (c *Camera) ClearROI() error {
	has, err := c.bridge.Has("clear_roi")
	if err != nil {
		return err
	}
	if !has {
		hasWidth, err := c.bridge.Has("sensor_width")
		if err != nil {
			return err
		}
		hasHeight, err := c.bridge.Has("sensor_height")
		if err != nil {
			return err
		}
		if hasWidth && hasHeight {
			w, err := c.bridge.Int("sensor_width")
			if err != nil {
				return err
			}
			h, err := c.bridge.Int("sensor_height")
			if err != nil {
				return err
			}
			return c.SetROI(0, 0, w, h)
		}
	}
	ret, err := c.bridge.Call("clear_roi")
	if err != nil {
		return err
	}
	ret.Release()
	return nil
}

// Exposure returns the exposure time in milliseconds.
func (c *Camera) Exposure() (float64, error) {
	return c.bridge.Float("exposure")
}

// SetExposure sets the exposure time in milliseconds.
func (c *Camera) SetExposure(ms float64) error {
	return c.bridge.SetFloat("exposure", ms)
}

// Binning returns the binning factor.
func (c *Camera) Binning() (int, error) {
	return c.bridge.Int("binning")
}

// SetBinning sets the binning factor.
func (c *Camera) SetBinning(factor int) error {
	return c.bridge.SetInt("binning", factor)
}

// IsExposureSequenceable reports the script's exposure_sequenceable
// property, or false when it has none.
func (c *Camera) IsExposureSequenceable() (bool, error) {
	has, err := c.bridge.Has("exposure_sequenceable")
	if err != nil || !has {
		return false, err
	}
	return c.bridge.Bool("exposure_sequenceable")
}
