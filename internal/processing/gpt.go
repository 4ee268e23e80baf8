package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultGPT is the SNAP Graph Processing Tool executable name.
const DefaultGPT = "gpt"

// maxDiagnostic bounds how much operator output is kept for error reports.
const maxDiagnostic = 8 << 10

// GPT runs operations through the SNAP Graph Processing Tool.
//
// Each run renders a graph into a hidden staging directory inside the
// output directory and lets gpt write <stem>.dim and <stem>.data there.
// On success the .data directory is moved into place first and the .dim
// file last, so a product is visible under its final name only when it is
// complete. The staging directory is always removed.
type GPT struct {
	path   string
	args   []string
	logger *slog.Logger
}

// NewGPT creates a runner for the gpt executable at path.
func NewGPT(path string) *GPT {
	if path == "" {
		path = DefaultGPT
	}
	return &GPT{
		path:   path,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the runner.
func (g *GPT) WithLogger(logger *slog.Logger) *GPT {
	g.logger = logger
	return g
}

// WithArgs appends extra gpt options (e.g. "-q", "4", "-c", "2G").
func (g *GPT) WithArgs(args ...string) *GPT {
	g.args = append(g.args, args...)
	return g
}

// Run implements Processor.
func (g *GPT) Run(ctx context.Context, op Operation) (string, error) {
	start := time.Now()
	fail := func(format string, args ...any) (string, error) {
		return "", fmt.Errorf("%w: %s %s: %s", ErrOperator, op.Name, op.Stem, fmt.Sprintf(format, args...))
	}

	for _, in := range op.Inputs {
		if _, err := os.Stat(in); err != nil {
			return fail("input unavailable: %v", err)
		}
	}

	graph, err := BuildGraph(op)
	if err != nil {
		return fail("%v", err)
	}

	if err := os.MkdirAll(op.OutputDir, 0o755); err != nil {
		return fail("%v", err)
	}
	staging, err := os.MkdirTemp(op.OutputDir, ".tmp-"+op.Stem+"-")
	if err != nil {
		return fail("failed to create staging directory: %v", err)
	}
	defer os.RemoveAll(staging)

	graphPath := filepath.Join(staging, "graph.xml")
	if err := os.WriteFile(graphPath, graph, 0o644); err != nil {
		return fail("failed to write graph: %v", err)
	}

	stagedDim := filepath.Join(staging, op.Stem+ProductExt)
	args := append([]string{graphPath}, g.args...)
	args = append(args, "-P"+TargetVariable+"="+stagedDim)

	g.logger.InfoContext(ctx, "running operator graph",
		slog.String("operation", op.Name),
		slog.String("stem", op.Stem),
		slog.Int("inputs", len(op.Inputs)),
		slog.Int("steps", len(op.Steps)),
	)

	output := &tailBuffer{limit: maxDiagnostic}
	cmd := exec.CommandContext(ctx, g.path, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = 10 * time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		g.logger.ErrorContext(ctx, "operator graph failed",
			slog.String("operation", op.Name),
			slog.String("stem", op.Stem),
			slog.String("error", err.Error()),
		)
		return fail("%v\n%s", err, strings.TrimSpace(output.String()))
	}

	if _, err := os.Stat(stagedDim); err != nil {
		return fail("gpt exited cleanly but wrote no product\n%s", strings.TrimSpace(output.String()))
	}

	target, err := commit(staging, op.OutputDir, op.Stem)
	if err != nil {
		return fail("%v", err)
	}

	g.logger.InfoContext(ctx, "operator graph completed",
		slog.String("operation", op.Name),
		slog.String("product", target),
		slog.Duration("duration", time.Since(start)),
	)
	return target, nil
}

// commit moves <stem>.data and then <stem>.dim from staging into dir. A
// stale .data directory without its .dim, left by an interrupted commit,
// is replaced.
func commit(staging, dir, stem string) (string, error) {
	finalData := filepath.Join(dir, stem+DataExt)
	finalDim := filepath.Join(dir, stem+ProductExt)

	stagedData := filepath.Join(staging, stem+DataExt)
	if _, err := os.Stat(stagedData); err == nil {
		if err := os.RemoveAll(finalData); err != nil {
			return "", fmt.Errorf("failed to remove stale %s: %w", finalData, err)
		}
		if err := os.Rename(stagedData, finalData); err != nil {
			return "", fmt.Errorf("failed to move product data into place: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.Rename(filepath.Join(staging, stem+ProductExt), finalDim); err != nil {
		return "", fmt.Errorf("failed to move product into place: %w", err)
	}
	return finalDim, nil
}

// Describe returns gpt's help text for an operator, listing its parameters
// and their defaults.
func (g *GPT) Describe(ctx context.Context, operator string) (string, error) {
	output := &tailBuffer{limit: 1 << 20}
	cmd := exec.CommandContext(ctx, g.path, operator, "-h")
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s -h: %v\n%s", ErrOperator, operator, err, strings.TrimSpace(output.String()))
	}
	return output.String(), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
