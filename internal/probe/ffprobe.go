package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/starford/mediabin/internal/models"
)

// Result is the subset of ffprobe's JSON output the catalog cares about.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	Duration     string `json:"duration"`
	NBFrames     string `json:"nb_frames"`
	NBReadFrames string `json:"nb_read_frames"`
	Disposition  struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// Format carries container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// FFprobe is a Prober backed by the ffprobe binary.
type FFprobe struct {
	binary  string
	timeout time.Duration
	run     runFunc
}

// NewFFprobe returns an ffprobe adapter. An empty binary means "ffprobe" on
// PATH; a zero timeout disables the per-call deadline.
func NewFFprobe(binary string, timeout time.Duration) *FFprobe {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{binary: binary, timeout: timeout, run: execRun}
}

// Probe implements Prober.
func (p *FFprobe) Probe(ctx context.Context, path string, src Source) (models.Metadata, error) {
	if strings.TrimSpace(path) == "" {
		return models.Metadata{}, errors.New("probe: empty path")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := []string{"-v", "error", "-hide_banner"}
	if src.Pattern {
		args = append(args, "-f", "image2", "-start_number", strconv.Itoa(src.StartNumber), "-count_frames")
	}
	args = append(args, "-show_format", "-show_streams", "-of", "json", "--", path)

	out, err := p.run(ctx, p.binary, args...)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("probe: %s %s: %w", src, path, err)
	}

	var res Result
	if err := json.Unmarshal(out, &res); err != nil {
		return models.Metadata{}, fmt.Errorf("probe: parse %s: %w", path, err)
	}
	return res.Metadata(src), nil
}

// Metadata converts the raw result. Sequence sources take their length from
// the counted frames and derive the duration from it.
func (r Result) Metadata(src Source) models.Metadata {
	m := models.Metadata{Format: r.Format.FormatName}

	var video *Stream
	for i := range r.Streams {
		switch strings.ToLower(r.Streams[i].CodecType) {
		case "video":
			// Cover art embedded in audio files.
			if r.Streams[i].Disposition.AttachedPic == 1 {
				continue
			}
			if video == nil {
				video = &r.Streams[i]
			}
		case "audio":
			m.HasAudio = true
		}
	}

	m.Duration = parseFloat(r.Format.Duration)
	if video == nil {
		return m
	}

	m.HasVideo = true
	m.Codec = video.CodecName
	m.Width = video.Width
	m.Height = video.Height
	m.FPS = parseFraction(video.RFrameRate)
	if m.Duration == 0 {
		m.Duration = parseFloat(video.Duration)
	}

	frames := parseInt(video.NBFrames)
	if src.Pattern {
		if n := parseInt(video.NBReadFrames); n > 0 {
			frames = n
		}
		if fps := m.FPS.Float(); frames > 0 && fps > 0 {
			m.Duration = float64(frames) / fps
		}
	}
	if frames == 0 {
		frames = int64(math.Round(m.Duration * m.FPS.Float()))
	}
	m.VideoLength = max(frames, 1)
	return m
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func parseInt(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseFraction(value string) models.Fraction {
	num, den, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		den = "1"
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || d == 0 {
		return models.Fraction{}
	}
	return models.Fraction{Num: n, Den: d}
}
