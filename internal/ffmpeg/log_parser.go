package ffmpeg

import "strings"

// ParseLogLevel splits a line written by ffmpeg run with -loglevel
// level+<x> into its level and message. Both "[level] msg" and
// "[component @ 0x...] [level] msg" are understood; the component prefix is
// kept in the message. Lines without a level tag are "info", and
// "Last message repeated" notices are demoted to "debug".
func ParseLogLevel(line string) (level, msg string) {
	line = strings.TrimRight(line, "\r")

	prefix, rest := "", line
	if tag, after, ok := cutTag(rest); ok && !isLogLevel(tag) {
		prefix, rest = rest[:len(rest)-len(after)], after
	}

	tag, after, ok := cutTag(rest)
	if !ok || !isLogLevel(tag) {
		if strings.Contains(line, "Last message repeated") {
			return "debug", line
		}
		return "info", line
	}
	return tag, prefix + after
}

// cutTag splits "[tag] rest" into tag and rest.
func cutTag(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	tag, rest, ok = strings.Cut(s[1:], "] ")
	if !ok {
		return "", s, false
	}
	return tag, rest, true
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
