package ffmpeg

// DefaultBinary is used when a params struct leaves Binary empty.
const DefaultBinary = "ffmpeg"

// VideoParams describes a raw video stream written to a v4l2loopback device.
type VideoParams struct {
	Binary      string // ffmpeg executable, defaults to DefaultBinary
	Device      string // /dev/video10
	Width       int
	Height      int
	FPS         int
	PixelFormat string // yuyv422
	LowLatency  bool   // Reduced buffering for VMs
	Progress    string // unix socket receiving -progress output, optional
}

// AudioParams describes an audio stream played into a PulseAudio sink.
type AudioParams struct {
	Binary string
	Sink   string  // null sink name, e.g. fakemic
	Volume float64 // linear gain applied with the volume filter
	// Progress is a unix socket receiving -progress output, optional.
	Progress string
}

// ToneParams describes a generated sine tone.
type ToneParams struct {
	Frequency int     // Hz
	Duration  int     // seconds
	Amplitude float64 // 0..1
}

// LowLatencyFlags are appended to video pipelines in VM mode.
var LowLatencyFlags = []string{"-preset", "ultrafast", "-bufsize", "1M"}

// EnhanceFilter post-processes synthesized speech so it sounds closer to a
// real microphone: louder, band limited, lightly compressed.
const EnhanceFilter = "volume=10dB," +
	"highpass=f=80," +
	"lowpass=f=12000," +
	"equalizer=f=2000:t=h:w=200:g=2," +
	"equalizer=f=300:t=h:w=100:g=-2," +
	"acompressor=threshold=0.3:ratio=3:attack=5:release=100," +
	"adelay=0.002|0.002"
