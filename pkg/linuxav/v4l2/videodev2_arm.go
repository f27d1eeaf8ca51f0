//go:build linux && arm && !arm64

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
)

// IOCTL constants for 32-bit ARM.
// v4l2_format is 4 bytes smaller than on 64-bit since pointers are 4-byte aligned.
const (
	vidiocQuerycap = 0x80685600
	vidiocGFmt     = 0xc0cc5604
)

// v4l2Format has size 204 bytes.
type v4l2Format struct {
	typ uint32        // offset 0
	pix v4l2PixFormat // offset 4
	_   [152]byte
}
