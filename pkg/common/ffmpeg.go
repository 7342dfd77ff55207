package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

const maxStderrLines = 20

// FFmpegPipelineFactory spawns ffmpeg processes that decode a station URL to
// raw 16-bit PCM on stdout.
type FFmpegPipelineFactory struct {
	ffmpeg pipeline.FFmpegConfig
	opus   pipeline.OpusConfig
	logger logging.Logger
}

// NewFFmpegPipelineFactory creates a new FFmpegPipelineFactory
func NewFFmpegPipelineFactory(ffmpeg pipeline.FFmpegConfig, opus pipeline.OpusConfig, logger logging.Logger) *FFmpegPipelineFactory {
	return &FFmpegPipelineFactory{
		ffmpeg: ffmpeg,
		opus:   opus,
		logger: logger.With(logging.String("component", "stream")),
	}
}

// BuildArgs returns the ffmpeg arguments for sourceURL.
func (f *FFmpegPipelineFactory) BuildArgs(sourceURL string) []string {
	args := make([]string, 0, len(f.ffmpeg.InputArgs)+12)
	args = append(args, "-hide_banner")
	if f.ffmpeg.LogLevel != "" {
		args = append(args, "-loglevel", f.ffmpeg.LogLevel)
	}
	args = append(args, f.ffmpeg.InputArgs...)
	args = append(args,
		"-i", sourceURL,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(f.opus.SampleRate),
		"-ac", strconv.Itoa(f.opus.Channels),
		"pipe:1",
	)
	return args
}

// CreatePipeline starts one ffmpeg process for sourceURL. The URL is not
// probed; an unreachable station shows up as an early end of stream.
func (f *FFmpegPipelineFactory) CreatePipeline(ctx context.Context, sourceURL string) (pipeline.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := f.BuildArgs(sourceURL)
	// Not CommandContext: the session kills the process when it is done with it.
	cmd := exec.Command(f.ffmpeg.BinaryPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	proc := &FFmpegProcess{
		cmd:    cmd,
		stdout: stdout,
		logger: f.logger.With(logging.String("url", sourceURL), logging.Int("pid", cmd.Process.Pid)),
	}
	go proc.monitorStderr(stderr)

	proc.logger.Debug("FFmpeg process started")
	return proc, nil
}

// FFmpegProcess is a running ffmpeg child.
type FFmpegProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger logging.Logger

	killOnce sync.Once

	mu     sync.Mutex
	stderr []string
}

func (p *FFmpegProcess) Stdout() io.Reader {
	return p.stdout
}

// Kill terminates the process and reaps it in the background.
func (p *FFmpegProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("failed to kill ffmpeg: %w", kerr)
		}
		go func() {
			waitErr := p.cmd.Wait()
			p.logger.Debug("FFmpeg process exited",
				logging.Any("wait", waitErr),
				logging.String("recent_stderr", p.recentStderr()),
			)
		}()
	})
	return err
}

func (p *FFmpegProcess) monitorStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.mu.Lock()
		p.stderr = append(p.stderr, line)
		if len(p.stderr) > maxStderrLines {
			p.stderr = p.stderr[len(p.stderr)-maxStderrLines:]
		}
		p.mu.Unlock()
		p.logger.Debug("FFmpeg", logging.String("stderr", line))
	}
}

func (p *FFmpegProcess) recentStderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.stderr, " | ")
}

// URLResolver turns a station URL into something ffmpeg can open.
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// ResolvingPipelineFactory resolves the source URL on every start, so a
// restart picks up a fresh address for sources whose URLs expire.
type ResolvingPipelineFactory struct {
	resolver URLResolver
	next     pipeline.PipelineFactory
}

// NewResolvingPipelineFactory wraps next with resolver.
func NewResolvingPipelineFactory(resolver URLResolver, next pipeline.PipelineFactory) *ResolvingPipelineFactory {
	return &ResolvingPipelineFactory{resolver: resolver, next: next}
}

func (f *ResolvingPipelineFactory) CreatePipeline(ctx context.Context, sourceURL string) (pipeline.Process, error) {
	resolved, err := f.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", sourceURL, err)
	}
	return f.next.CreatePipeline(ctx, resolved)
}
