package library

import (
	"path/filepath"
	"strings"
)

// VideoKind says how a video source produces frames.
type VideoKind string

const (
	VideoGenerated VideoKind = "generated" // lavfi test pattern, nothing on disk
	VideoDownload  VideoKind = "download"  // sample file fetched on first use
)

// AudioKind says how an audio source produces samples.
type AudioKind string

const (
	AudioVoice   AudioKind = "voice"
	AudioTone    AudioKind = "tone"
	AudioSilence AudioKind = "silence"
)

// Video is one entry of the video library.
type Video struct {
	Name        string    `json:"name" example:"Surfing HD"`
	Icon        string    `json:"icon,omitempty" example:"🏄"`
	Kind        VideoKind `json:"kind" enum:"generated,download"`
	File        string    `json:"file,omitempty" example:"surfing.mp4"`
	URL         string    `json:"url,omitempty"`
	Size        string    `json:"size,omitempty" example:"~10 MB"`
	Description string    `json:"description"`
}

// Path returns where the video is cached under dir, or "" for generated sources.
func (v Video) Path(dir string) string {
	if v.File == "" {
		return ""
	}
	return filepath.Join(dir, v.File)
}

// Label is the display name with its icon.
func (v Video) Label() string { return label(v.Icon, v.Name) }

// Audio is one entry of the audio library.
type Audio struct {
	Name        string    `json:"name" example:"Meeting Voice"`
	Icon        string    `json:"icon,omitempty" example:"🎤"`
	Kind        AudioKind `json:"kind" enum:"voice,tone,silence"`
	File        string    `json:"file,omitempty" example:"meeting_voice.wav"`
	Text        string    `json:"text,omitempty"`
	Description string    `json:"description"`

	// Voice hints per engine family
	FliteVoice  string `json:"-"`
	ESpeakVoice string `json:"-"`
}

// Path returns the cached clip under dir, or "" for silence.
func (a Audio) Path(dir string) string {
	if a.File == "" {
		return ""
	}
	return filepath.Join(dir, a.File)
}

// Label is the display name with its icon.
func (a Audio) Label() string { return label(a.Icon, a.Name) }

func label(icon, name string) string {
	if icon == "" {
		return name
	}
	return icon + " " + name
}

var videos = []Video{
	{
		Name:        "Test Pattern",
		Kind:        VideoGenerated,
		Description: "Color test pattern",
	},
	{
		Name:        "Surfing HD",
		Icon:        "🏄",
		Kind:        VideoDownload,
		File:        "surfing.mp4",
		URL:         "https://filesamples.com/samples/video/mp4/sample_1280x720_surfing_with_audio.mp4",
		Size:        "~10 MB",
		Description: "HD surfing footage",
	},
	{
		Name:        "Ocean Waves",
		Icon:        "🌊",
		Kind:        VideoDownload,
		File:        "ocean.mp4",
		URL:         "https://filesamples.com/samples/video/mp4/sample_960x540_ocean_with_audio.mp4",
		Size:        "~5 MB",
		Description: "Ocean wave scenes",
	},
}

var audios = []Audio{
	{
		Name: "Meeting Voice",
		Icon: "🎤",
		Kind: AudioVoice,
		File: "meeting_voice.wav",
		Text: "Hello everyone... Thanks for joining the meeting today. Um, let me just share my screen here... " +
			"Can everyone see this clearly? ... Great! So, let's begin with our agenda. First up, we need to discuss " +
			"the project timeline. Uh, the development is going really well actually. We're definitely on track for " +
			"the deadline. Any questions so far? ... No? Excellent. Let's move on to the next topic then.",
		Description: "Natural meeting conversation",
		FliteVoice:  "slt",
		ESpeakVoice: "en+f3",
	},
	{
		Name: "Professional Talk",
		Icon: "💼",
		Kind: AudioVoice,
		File: "professional.wav",
		Text: "Good morning everyone. I'll be presenting our quarterly results today. So, as you can see on this " +
			"slide here, our performance has really exceeded expectations. Revenue is up by, uh, fifteen percent, " +
			"which is fantastic. Customer satisfaction scores have improved significantly as well. Now, let's look " +
			"at the detailed breakdown... These numbers really reflect the hard work of the entire team. Really " +
			"great job everyone.",
		Description: "Professional presentation",
		FliteVoice:  "awb",
		ESpeakVoice: "en+m3",
	},
	{
		Name: "Casual Chat",
		Icon: "☕",
		Kind: AudioVoice,
		File: "casual_chat.wav",
		Text: "Hey! How's it going? ... Yeah, yeah, I saw that email too. Oh man, did you catch the game last " +
			"night? It was pretty amazing, right? ... Oh, by the way, we should probably sync up about next week's " +
			"presentation. I can share my screen if you want to take a look at the draft... Just let me know what " +
			"works for you, okay?",
		Description: "Casual conversation",
		FliteVoice:  "awb",
		ESpeakVoice: "en+m7",
	},
	{
		Name: "Quick Update",
		Icon: "🎯",
		Kind: AudioVoice,
		File: "quick_update.wav",
		Text: "Hi folks, just a quick update here... So the project is on track. We completed the first milestone " +
			"yesterday, which is great. Um, no blockers at the moment, everything's running smoothly. I'll have " +
			"the full report ready by end of day. Thanks everyone!",
		Description: "Brief status update",
		FliteVoice:  "slt",
		ESpeakVoice: "en+f2",
	},
	{
		Name: "Test Audio",
		Icon: "🔊",
		Kind: AudioVoice,
		File: "test_audio.wav",
		Text: "Testing, testing, one two three... Can you hear me clearly? Hello? ... This is a microphone test. " +
			"Audio check... audio check... Is this coming through okay?",
		Description: "Microphone test",
		FliteVoice:  "kal",
		ESpeakVoice: "en+m4",
	},
	{
		Name:        "Simple Tone",
		Icon:        "🎵",
		Kind:        AudioTone,
		File:        "tone.wav",
		Description: "440Hz test tone",
	},
	{
		Name:        "Silence",
		Icon:        "🔇",
		Kind:        AudioSilence,
		Description: "No audio output",
	},
}

// Videos returns the video library in display order.
func Videos() []Video {
	return append([]Video(nil), videos...)
}

// Audios returns the audio library in display order.
func Audios() []Audio {
	return append([]Audio(nil), audios...)
}

// DefaultVideo and DefaultAudio are selected when no preference exists.
const (
	DefaultVideo = "Test Pattern"
	DefaultAudio = "Meeting Voice"
)

// FindVideo looks a video up by name. Matching ignores case and a leading
// icon, so labels shown in a UI resolve as well.
func FindVideo(name string) (Video, bool) {
	key := Normalize(name)
	for _, v := range videos {
		if strings.EqualFold(v.Name, key) {
			return v, true
		}
	}
	return Video{}, false
}

// FindAudio looks an audio source up by name, with the same matching as FindVideo.
func FindAudio(name string) (Audio, bool) {
	key := Normalize(name)
	for _, a := range audios {
		if strings.EqualFold(a.Name, key) {
			return a, true
		}
	}
	return Audio{}, false
}

// Normalize strips surrounding space and any leading non-letter prefix such
// as an emoji icon.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	for i, r := range name {
		if isNameRune(r) {
			return name[i:]
		}
	}
	return ""
}

func isNameRune(r rune) bool {
	return r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
}
