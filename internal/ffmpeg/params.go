package ffmpeg

// DecodeParams configures the decoding process that turns the input into
// raw rgb24 frames on stdout.
type DecodeParams struct {
	Input       string
	FrameRate   string // forced input rate, e.g. "30000/1001"
	Deinterlace bool   // apply yadif
	LogLevel    string // ffmpeg -loglevel value without the "level+" prefix
	Progress    string // -progress URL, e.g. unix:///tmp/framescale-decoder.sock
}

// StreamCopy selects which auxiliary streams of the original input are
// copied into the output container.
type StreamCopy struct {
	Audio       bool
	Subtitle    bool
	Data        bool
	Attachments bool
}

// EncodeParams configures the encoding process that reads raw rgb24 frames
// on stdin and muxes them with streams copied from the original input.
type EncodeParams struct {
	Input     string // original source, for auxiliary streams and metadata
	Output    string
	Width     int
	Height    int
	FrameRate string
	Copy      StreamCopy

	// Video encoder settings (zero values use the defaults below)
	Codec   string // libx264
	CRF     *int   // 17 when nil, 0 is lossless for x264
	Preset  string // veryslow
	PixFmt  string // yuv420p
	Comment string // metadata comment

	LogLevel string
	Progress string // -progress URL
}

// Encoder defaults.
const (
	DefaultCodec   = "libx264"
	DefaultCRF     = 17
	DefaultPreset  = "veryslow"
	DefaultPixFmt  = "yuv420p"
	DefaultComment = "Processed with framescale"
)
