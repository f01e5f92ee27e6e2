package ffmpeg

// defaultSafeFilters holds filter names plus the option keys and constants the
// identifier rule picks up inside a chain ("drawtext=text=...:fontcolor=white").
// Keys that make a filter read host files (fontfile, textfile, filename) and
// source filters such as movie or sendcmd are deliberately absent.
var defaultSafeFilters = []string{
	// video
	"scale", "crop", "rotate", "transpose", "hflip", "vflip", "pad", "fps",
	"format", "setpts", "setsar", "setdar", "trim", "fade", "drawtext",
	"drawbox", "eq", "hue", "boxblur", "gblur", "unsharp", "negate",
	"reverse", "split", "overlay", "null", "yadif", "deinterlace",
	// audio
	"volume", "atempo", "aresample", "atrim", "afade", "loudnorm", "anull",
	"areverse", "aformat", "highpass", "lowpass",
	// common option keys
	"w", "h", "x", "y", "width", "height", "angle", "text", "fontsize",
	"fontcolor", "box", "boxcolor", "color", "t", "d", "st", "start",
	"end", "duration", "type", "in", "out", "flags", "ratio", "brightness",
	"contrast", "saturation", "gamma", "dir", "expr", "pix",
	// option values
	"white", "black", "red", "green", "blue", "yellow", "fill", "bicubic",
	"bilinear", "lanczos", "decrease", "increase",
}

var defaultSafeCodecs = []string{
	"copy",
	"libx264", "libx265", "h264", "hevc", "mpeg4",
	"libvpx", "libvpx-vp9", "vp9", "libaom-av1", "libsvtav1",
	"png", "mjpeg", "gif",
	"aac", "libmp3lame", "mp3", "libopus", "opus", "libvorbis", "flac", "pcm_s16le",
}

// Registry is the immutable pair of allow-lists consulted by the Sanitizer.
// It is built once at start-up and only ever read afterwards, so it is safe
// to share between goroutines without locking.
type Registry struct {
	filters map[string]struct{}
	codecs  map[string]struct{}
}

// NewRegistry builds a registry from the built-in allow-lists plus any extra
// entries supplied by process configuration.
func NewRegistry(extraFilters, extraCodecs []string) *Registry {
	return &Registry{
		filters: toSet(defaultSafeFilters, extraFilters),
		codecs:  toSet(defaultSafeCodecs, extraCodecs),
	}
}

// DefaultRegistry returns a registry holding only the built-in allow-lists.
func DefaultRegistry() *Registry {
	return NewRegistry(nil, nil)
}

// SafeFilter reports whether name is an allow-listed filter identifier.
func (r *Registry) SafeFilter(name string) bool {
	_, ok := r.filters[name]
	return ok
}

// SafeCodec reports whether name is an allow-listed codec.
func (r *Registry) SafeCodec(name string) bool {
	_, ok := r.codecs[name]
	return ok
}

func toSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			set[s] = struct{}{}
		}
	}
	return set
}
