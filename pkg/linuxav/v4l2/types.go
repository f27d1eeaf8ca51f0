//go:build linux

package v4l2

// DeviceInfo describes a video4linux node found in sysfs.
type DeviceInfo struct {
	DevicePath string // /dev/video10
	DeviceName string // sysfs name, the card_label for v4l2loopback
	Index      int
}

// Capability is the result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver  string
	Card    string
	BusInfo string
	Version uint32
	// Caps holds the device capabilities when the driver reports them,
	// otherwise the physical device capabilities.
	Caps uint32
}

// IsOutput reports whether the node accepts frames from a writer.
func (c Capability) IsOutput() bool { return c.Caps&capVideoOutput != 0 }

// IsCapture reports whether the node can be read by a consumer.
func (c Capability) IsCapture() bool { return c.Caps&capVideoCapture != 0 }

// IsLoopback reports whether the node belongs to the v4l2loopback driver.
func (c Capability) IsLoopback() bool {
	return c.Driver == "v4l2 loopback" || c.Driver == "v4l2loopback"
}

// Format is the single-planar pixel format of a queue.
type Format struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
	// Output is true when the format was read from the output queue.
	Output bool
}

// FourCC returns the pixel format as its four character code.
func (f Format) FourCC() string { return FormatFourCC(f.PixelFormat) }

// Capability flags.
const (
	capVideoCapture = 0x00000001
	capVideoOutput  = 0x00000002
	capDeviceCaps   = 0x80000000
)

// Buffer types.
const (
	bufTypeVideoCapture = 1
	bufTypeVideoOutput  = 2
)

// Common pixel formats.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtNV12  = 0x3231564E // 'NV12'
	PixFmtYU12  = 0x32315559 // 'YU12', yuv420p
)

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := []byte{
		byte(format & 0xFF),
		byte((format >> 8) & 0xFF),
		byte((format >> 16) & 0xFF),
		byte((format >> 24) & 0xFF),
	}
	return string(b)
}
