package monitor

import (
	"strconv"
	"strings"
)

type sinkInfo struct {
	state    string
	format   string
	channels int
	rate     int
	volume   float64
	hasVol   bool
}

// parseSink finds the section of "pactl list sinks" output describing name.
//
//	Sink #3
//		State: RUNNING
//		Name: fakemic
//		Sample Specification: s16le 2ch 44100Hz
//		Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
func parseSink(out, name string) (sinkInfo, bool) {
	var cur sinkInfo
	var inSection, found bool

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Sink #") {
			if found {
				return cur, true
			}
			cur, inSection = sinkInfo{}, true
			continue
		}
		if !inSection {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			found = value == name
		case "State":
			cur.state = value
		case "Sample Specification":
			cur.format, cur.channels, cur.rate = parseSampleSpec(value)
		case "Volume":
			if !cur.hasVol {
				cur.volume, cur.hasVol = parseVolume(value), true
			}
		}
	}
	return cur, found
}

// parseSampleSpec splits "s16le 2ch 44100Hz".
func parseSampleSpec(spec string) (format string, channels, rate int) {
	for _, f := range strings.Fields(spec) {
		switch {
		case strings.HasSuffix(f, "ch"):
			channels, _ = strconv.Atoi(strings.TrimSuffix(f, "ch"))
		case strings.HasSuffix(f, "Hz"):
			rate, _ = strconv.Atoi(strings.TrimSuffix(f, "Hz"))
		default:
			format = f
		}
	}
	return format, channels, rate
}

// parseVolume returns the first percentage in a Volume line as a fraction.
func parseVolume(s string) float64 {
	for _, f := range strings.Fields(s) {
		if pct, ok := strings.CutSuffix(f, "%"); ok {
			if v, err := strconv.Atoi(pct); err == nil {
				return float64(v) / 100
			}
		}
	}
	return 0
}
