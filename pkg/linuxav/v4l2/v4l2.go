//go:build linux

// Package v4l2 provides pure Go bindings to the small part of the
// Video4Linux2 (V4L2) API needed to manage a v4l2loopback device:
// capability queries, the current format of the output or capture queue,
// and enumeration of video4linux nodes through sysfs.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to list every video4linux node with its sysfs name:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Capabilities
//
// A loopback device advertises output capability until a writer attaches
// (with exclusive_caps=1 it then switches to capture):
//
//	caps, err := v4l2.QueryCapability("/dev/video10")
//	if err == nil && caps.IsOutput() {
//	    fmt.Println("ready for a writer:", caps.Card)
//	}
//
// # Current Format
//
// Read the negotiated frame size and pixel format:
//
//	f, err := v4l2.GetFormat("/dev/video10")
//	fmt.Printf("%dx%d %s\n", f.Width, f.Height, f.FourCC())
package v4l2
