//go:build linux

package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sysClassDir is where the kernel lists video4linux nodes.
var sysClassDir = "/sys/class/video4linux"

// FindDevices lists every video4linux node known to sysfs, sorted by index.
// Devices are not opened, so nodes held exclusively by another process are
// still reported.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysClassDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "video") {
			continue
		}
		dir := filepath.Join(sysClassDir, entry.Name())
		devices = append(devices, DeviceInfo{
			DevicePath: "/dev/" + entry.Name(),
			DeviceName: readSysfsString(filepath.Join(dir, "name")),
			Index:      deviceNumber(entry.Name()),
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices, nil
}

// FindByName returns the first device whose sysfs name equals name.
func FindByName(name string) (DeviceInfo, bool) {
	devices, err := FindDevices()
	if err != nil {
		return DeviceInfo{}, false
	}
	for _, d := range devices {
		if d.DeviceName == name {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// QueryCapability runs VIDIOC_QUERYCAP on devicePath.
func QueryCapability(devicePath string) (Capability, error) {
	fd, err := open(devicePath)
	if err != nil {
		return Capability{}, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var c v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Capability{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}

	caps := c.capabilities
	if caps&capDeviceCaps != 0 {
		caps = c.deviceCaps
	}
	return Capability{
		Driver:  cstr(c.driver[:]),
		Card:    cstr(c.card[:]),
		BusInfo: cstr(c.busInfo[:]),
		Version: c.version,
		Caps:    caps,
	}, nil
}

// GetFormat reads the current format of devicePath. The output queue is
// tried first since that is what a loopback writer negotiates; the capture
// queue is used when the driver rejects it.
func GetFormat(devicePath string) (Format, error) {
	fd, err := open(devicePath)
	if err != nil {
		return Format{}, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var lastErr error
	for _, typ := range []uint32{bufTypeVideoOutput, bufTypeVideoCapture} {
		f := v4l2Format{typ: typ}
		if err := ioctl(fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
			lastErr = err
			if errors.Is(err, unix.EINVAL) {
				continue
			}
			break
		}
		return Format{
			Width:        f.pix.width,
			Height:       f.pix.height,
			PixelFormat:  f.pix.pixelformat,
			BytesPerLine: f.pix.bytesperline,
			SizeImage:    f.pix.sizeimage,
			Output:       typ == bufTypeVideoOutput,
		}, nil
	}
	return Format{}, fmt.Errorf("VIDIOC_G_FMT: %w", lastErr)
}

// IsCharDevice reports whether path exists and is a character device.
func IsCharDevice(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func deviceNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
	if err != nil {
		return -1
	}
	return n
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
