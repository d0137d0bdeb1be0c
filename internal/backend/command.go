package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/framescale/internal/frame"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/process"
)

// stderrTailLines is how much backend stderr is kept for error messages.
const stderrTailLines = 5

// CommandOptions configures a command-line backend family.
//
// The executable is driven the way the ncnn-vulkan upscalers are:
//
//	<exe> -i in.png -o out.png -s <ratio> -g <gpu> [-n <noise>] [-m <model>] [extra...]
type CommandOptions struct {
	Executable string
	ExtraArgs  []string
	NoiseFlag  bool   // pass -n <noise>
	TempDir    string // "" uses os.TempDir()
}

// NewCommandConstructor returns a Constructor that runs an external upscaler
// once per frame through PNG files in a scratch directory.
func NewCommandConstructor(family string, opts CommandOptions) Constructor {
	return func(params Params) (Processor, error) {
		path, err := opts.lookPath(family)
		if err != nil {
			return nil, err
		}
		return &commandProcessor{
			family: family,
			path:   path,
			opts:   opts,
			params: params,
			logger: logging.GetLogger("backend").With("family", family, "ratio", params.Ratio, "gpu", params.GPU),
		}, nil
	}
}

// Check reports whether the executable of family can be found.
func (o CommandOptions) Check(family string) error {
	_, err := o.lookPath(family)
	return err
}

func (o CommandOptions) lookPath(family string) (string, error) {
	if o.Executable == "" {
		return "", fmt.Errorf("%w for %s, set [backends.%s] command", ErrNoExecutable, family, family)
	}
	path, err := exec.LookPath(o.Executable)
	if err != nil {
		return "", fmt.Errorf("%s backend: %w", family, err)
	}
	return path, nil
}

type commandProcessor struct {
	family string
	path   string
	opts   CommandOptions
	params Params
	logger logging.Logger
}

// Process implements Processor.
func (p *commandProcessor) Process(ctx context.Context, img *frame.Image) (*frame.Image, error) {
	dir, err := os.MkdirTemp(p.opts.TempDir, "framescale-"+p.family+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")

	if err := writePNG(in, img); err != nil {
		return nil, err
	}

	if err := p.run(ctx, p.args(in, out)); err != nil {
		return nil, err
	}

	result, err := readPNG(out)
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", p.family, err)
	}

	wantW, wantH := img.Width*p.params.Ratio, img.Height*p.params.Ratio
	if result.Width != wantW || result.Height != wantH {
		return nil, fmt.Errorf("%w: %s x%d gave %dx%d, want %dx%d", ErrUnexpectedSize,
			p.family, p.params.Ratio, result.Width, result.Height, wantW, wantH)
	}
	return result, nil
}

// run executes the backend once. Its stderr goes to the backend logger at
// debug level and the last lines end up in the error on failure.
func (p *commandProcessor) run(ctx context.Context, args []string) error {
	tail := &stderrTail{}
	proc, err := process.Start(process.Options{
		Name:         p.family,
		Args:         append([]string{p.path}, args...),
		Logger:       p.logger,
		OutputLogger: p.logger,
		LogParser:    debugLines,
		Output:       tail,
		Quiet:        true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", p.family, err)
	}
	p.logger.Debug("Running backend", "pid", proc.PID(), "args", strings.Join(args, " "))

	select {
	case <-proc.Done():
	case <-ctx.Done():
		proc.Stop()
		return ctx.Err()
	}

	if code := proc.Wait(); code != 0 {
		return fmt.Errorf("%s: exit status %d: %s", p.family, code, tail.String())
	}
	return nil
}

func debugLines(line string) (slog.Level, string) {
	return slog.LevelDebug, line
}

// stderrTail keeps the last stderrTailLines lines of backend output.
// It is read only after the process is done, when the relay has drained.
type stderrTail struct {
	lines []string
}

func (t *stderrTail) HandleLine(_, line string) {
	if len(t.lines) == stderrTailLines {
		t.lines = t.lines[1:]
	}
	t.lines = append(t.lines, line)
}

func (t *stderrTail) String() string {
	return strings.Join(t.lines, "; ")
}

func (p *commandProcessor) args(in, out string) []string {
	args := []string{
		"-i", in,
		"-o", out,
		"-s", strconv.Itoa(p.params.Ratio),
		"-g", strconv.Itoa(p.params.GPU),
	}
	if p.opts.NoiseFlag {
		args = append(args, "-n", strconv.Itoa(p.params.Noise))
	}
	if p.params.Model != "" {
		args = append(args, "-m", p.params.Model)
	}
	return append(args, p.opts.ExtraArgs...)
}

func writePNG(path string, img *frame.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := frame.EncodePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func readPNG(path string) (*frame.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return frame.DecodePNG(f)
}
