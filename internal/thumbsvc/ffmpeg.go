package thumbsvc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/starford/mediabin/internal/models"
)

// Renderer grabs one frame of an asset as a PNG image.
type Renderer interface {
	Render(ctx context.Context, a models.Asset, frame int) ([]byte, error)
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

// FFmpeg renders frames with the ffmpeg binary, writing PNG to stdout.
type FFmpeg struct {
	binary  string
	width   int
	timeout time.Duration
	run     runFunc
}

// NewFFmpeg returns a renderer scaling frames to width pixels (0 keeps the
// source size).
func NewFFmpeg(binary string, width int, timeout time.Duration) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, width: width, timeout: timeout, run: execRun}
}

// Args returns the ffmpeg command line for one frame.
func (f *FFmpeg) Args(a models.Asset, frame int) []string {
	args := []string{"-v", "error", "-nostdin"}
	filters := []string{}

	switch {
	case a.Sequence != nil:
		args = append(args, "-f", "image2", "-start_number", strconv.Itoa(a.Sequence.StartNumber), "-i", a.Path)
		filters = append(filters, fmt.Sprintf(`select=eq(n\,%d)`, max(frame-1, 0)))
	case a.MediaType == models.MediaImage:
		args = append(args, "-i", a.Path)
	default:
		if fps := a.Metadata.FPS.Float(); fps > 0 && frame > 1 {
			args = append(args, "-ss", strconv.FormatFloat(float64(frame-1)/fps, 'f', 3, 64))
		}
		args = append(args, "-i", a.Path)
	}

	if f.width > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:-1", f.width))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	return append(args, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")
}

// Render implements Renderer.
func (f *FFmpeg) Render(ctx context.Context, a models.Asset, frame int) ([]byte, error) {
	if a.MediaType == models.MediaAudio {
		return nil, fmt.Errorf("thumbsvc: %s: audio has no frames", a.ID)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	out, err := f.run(ctx, f.binary, f.Args(a, frame)...)
	if err != nil {
		return nil, fmt.Errorf("thumbsvc: render %s frame %d: %w", a.ID, frame, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("thumbsvc: render %s frame %d: no output", a.ID, frame)
	}
	return out, nil
}
