package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"plain level", "[info] Press [q] to stop", "info", "Press [q] to stop"},
		{"error", "[error] /dev/video10: Device or resource busy", "error", "/dev/video10: Device or resource busy"},
		{"component kept", "[video4linux2,v4l2 @ 0x55d] [warning] dropping frame", "warning", "[video4linux2,v4l2 @ 0x55d] dropping frame"},
		{"carriage return", "[fatal] Conversion failed!\r", "fatal", "Conversion failed!"},
		{"no tag", "frame=  100 fps= 30", "info", "frame=  100 fps= 30"},
		{"component without level", "[pulse @ 0x1] not a level", "info", "[pulse @ 0x1] not a level"},
		{"repeat notice", "    Last message repeated 3 times", "debug", "    Last message repeated 3 times"},
		{"unterminated", "[error", "info", "[error"},
		{"empty", "", "info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel || msg != tt.wantMsg {
				t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}
