package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
)

// Engine shells out to ffmpeg/ffprobe. Every invocation runs under the
// caller's context so pipeline deadlines terminate stray encodes.
type Engine struct {
	ffmpegPath  string
	ffprobePath string
	pool        *Pool
	logger      arbor.ILogger
}

// NewEngine creates an Engine with a bounded encode pool. poolSize 0 means
// one slot per CPU.
func NewEngine(logger arbor.ILogger, poolSize int) *Engine {
	return &Engine{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		pool:        NewPool(poolSize),
		logger:      logger,
	}
}

func (e *Engine) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	e.logger.Debug().Str("cmd", name).Str("args", strings.Join(args, " ")).Msg("Running media command")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		tail := stderr.String()
		if len(tail) > 800 {
			tail = tail[len(tail)-800:]
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, tail)
	}
	return nil
}

// encode acquires a pool slot before invoking ffmpeg.
func (e *Engine) encode(ctx context.Context, args ...string) error {
	if err := e.pool.Acquire(ctx); err != nil {
		return err
	}
	defer e.pool.Release()
	return e.run(ctx, e.ffmpegPath, append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)...)
}

// DurationSeconds probes a media file's duration.
func (e *Engine) DurationSeconds(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned malformed duration for %s: %w", path, err)
	}
	return duration, nil
}

// ImageToVideo renders a still image into a silent clip of the given length
// with a slow zoom so scenes are not static.
func (e *Engine) ImageToVideo(ctx context.Context, imagePath, outputPath string, durationSeconds float64, width, height int) error {
	frames := int(durationSeconds * 25)
	if frames < 1 {
		frames = 1
	}
	zoompan := fmt.Sprintf(
		"scale=%d:%d,zoompan=z='min(zoom+0.0008,1.12)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=25",
		width*2, height*2, frames, width, height)

	return e.encode(ctx,
		"-loop", "1",
		"-i", imagePath,
		"-vf", zoompan,
		"-t", fmt.Sprintf("%.3f", durationSeconds),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath)
}

// ConcatClips joins clips losslessly via the concat demuxer. All clips must
// share codec parameters, which holds because ImageToVideo produced them.
func (e *Engine) ConcatClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	var sb strings.Builder
	for _, clip := range clipPaths {
		fmt.Fprintf(&sb, "file '%s'\n", clip)
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	return e.encode(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath)
}

// ConcatClipsWithTransitions joins clips with crossfades between segments.
// transitionTypes is cycled round-robin across the joins; fadeSeconds is the
// overlap each join consumes, so the output runs fadeSeconds*(n-1) shorter
// than the clips summed. Crossfading requires a re-encode.
func (e *Engine) ConcatClipsWithTransitions(ctx context.Context, clipPaths []string, durations []float64, transitionTypes []string, fadeSeconds float64, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}
	if len(clipPaths) != len(durations) {
		return fmt.Errorf("have %d durations for %d clips", len(durations), len(clipPaths))
	}
	if len(clipPaths) == 1 {
		return e.ConcatClips(ctx, clipPaths, outputPath)
	}
	if len(transitionTypes) == 0 {
		transitionTypes = []string{"fade"}
	}

	args := make([]string, 0, len(clipPaths)*2+8)
	for _, clip := range clipPaths {
		args = append(args, "-i", clip)
	}
	args = append(args,
		"-filter_complex", XfadeGraph(durations, transitionTypes, fadeSeconds),
		"-map", fmt.Sprintf("[v%d]", len(clipPaths)-1),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath)
	return e.encode(ctx, args...)
}

// XfadeGraph builds the xfade filter chain for n inputs. The offset of join
// k is the running duration of the already-faded head, so each crossfade
// starts fadeSeconds before the current tail ends. The fade is clamped to
// half the shortest clip so no segment is consumed entirely by its fades.
func XfadeGraph(durations []float64, transitionTypes []string, fadeSeconds float64) string {
	fadeSeconds = ClampFade(durations, fadeSeconds)

	var sb strings.Builder
	prev := "[0:v]"
	offset := 0.0
	for i := 1; i < len(durations); i++ {
		offset += durations[i-1] - fadeSeconds
		out := fmt.Sprintf("[v%d]", i)
		fmt.Fprintf(&sb, "%s[%d:v]xfade=transition=%s:duration=%.3f:offset=%.3f%s",
			prev, i, transitionTypes[(i-1)%len(transitionTypes)], fadeSeconds, offset, out)
		if i < len(durations)-1 {
			sb.WriteString(";")
		}
		prev = out
	}
	return sb.String()
}

// ClampFade limits a crossfade to half the shortest clip. Callers use the
// clamped value to predict the joined duration.
func ClampFade(durations []float64, fadeSeconds float64) float64 {
	shortest := durations[0]
	for _, d := range durations[1:] {
		if d < shortest {
			shortest = d
		}
	}
	if fadeSeconds > shortest/2 {
		return shortest / 2
	}
	return fadeSeconds
}

// MuxAudio combines a silent video track with an audio track, ending at the
// shorter stream.
func (e *Engine) MuxAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return e.encode(ctx,
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath)
}

// SubtitleOptions styles burned-in subtitles. Color names are resolved to
// BGR hex by the subtitle package.
type SubtitleOptions struct {
	FontName string
	FontSize int
	ColorBGR string
}

// BurnSubtitles renders an SRT file into the video.
func (e *Engine) BurnSubtitles(ctx context.Context, videoPath, srtPath, outputPath string, opts SubtitleOptions) error {
	style := fmt.Sprintf("FontName=%s,FontSize=%d,PrimaryColour=&H%s&", opts.FontName, opts.FontSize, opts.ColorBGR)
	filter := fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(srtPath), style)

	return e.encode(ctx,
		"-i", videoPath,
		"-vf", filter,
		"-c:a", "copy",
		outputPath)
}

// OverlayImage places an overlay (logo watermark) at the given position,
// scaled to width pixels with the aspect ratio preserved. width <= 0 keeps
// the overlay at its native size.
func (e *Engine) OverlayImage(ctx context.Context, videoPath, overlayPath, outputPath string, x, y, width int) error {
	return e.encode(ctx,
		"-i", videoPath,
		"-i", overlayPath,
		"-filter_complex", OverlayFilter(x, y, width),
		"-c:a", "copy",
		outputPath)
}

// OverlayFilter builds the filter graph for OverlayImage.
func OverlayFilter(x, y, width int) string {
	if width <= 0 {
		return fmt.Sprintf("overlay=%d:%d", x, y)
	}
	return fmt.Sprintf("[1:v]scale=%d:-1[logo];[0:v][logo]overlay=%d:%d", width, x, y)
}

// ExtractFrame saves the frame at the given offset as a PNG cover image.
func (e *Engine) ExtractFrame(ctx context.Context, videoPath, outputPath string, offsetSeconds float64) error {
	return e.encode(ctx,
		"-ss", fmt.Sprintf("%.3f", offsetSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		outputPath)
}

// ExtractAudio copies the audio track into a standalone mp3.
func (e *Engine) ExtractAudio(ctx context.Context, videoPath, outputPath string) error {
	return e.encode(ctx,
		"-i", videoPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outputPath)
}

// escapeFilterPath escapes a path for use inside an ffmpeg filter argument.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return replacer.Replace(path)
}
