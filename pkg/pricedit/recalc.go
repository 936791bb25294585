package pricedit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Engine kinds accepted by DetectEngine.
const (
	EngineAuto    = "auto"
	EngineNone    = "none"
	EngineSoffice = "soffice"
)

// RecalcEngine is a full spreadsheet engine able to recalculate every
// formula of a workbook file in place.
type RecalcEngine interface {
	// Name identifies the engine in logs and metrics.
	Name() string
	// Available reports whether the engine can run in this environment.
	Available() bool
	// Recalculate rewrites the file at path with freshly computed values.
	Recalculate(ctx context.Context, path string) error
}

// NoEngine is the engine used when none is installed.
type NoEngine struct{}

// Name implements RecalcEngine.
func (NoEngine) Name() string { return EngineNone }

// Available implements RecalcEngine.
func (NoEngine) Available() bool { return false }

// Recalculate implements RecalcEngine.
func (NoEngine) Recalculate(context.Context, string) error {
	return errors.New("no recalculation engine")
}

// SofficeEngine recalculates workbooks by round-tripping them through
// LibreOffice in headless mode.
type SofficeEngine struct {
	// Binary is the soffice executable name or path.
	Binary string

	lookPath func(file string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSofficeEngine creates an engine for the given soffice binary.
func NewSofficeEngine(binary string) *SofficeEngine {
	if binary == "" {
		binary = EngineSoffice
	}
	return &SofficeEngine{
		Binary:   binary,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Name implements RecalcEngine.
func (e *SofficeEngine) Name() string { return EngineSoffice }

// Available implements RecalcEngine.
func (e *SofficeEngine) Available() bool {
	_, err := e.lookPath(e.Binary)
	return err == nil
}

// Recalculate converts path to xlsx inside a scratch directory next to it,
// then moves the converted file back over path. The scratch directory is
// removed on every exit path.
func (e *SofficeEngine) Recalculate(ctx context.Context, path string) error {
	outDir, err := os.MkdirTemp(filepath.Dir(path), "pricedit-recalc-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(outDir)

	profile := "file://" + filepath.ToSlash(filepath.Join(outDir, "profile"))
	args := []string{
		"-env:UserInstallation=" + profile,
		"--headless",
		"--norestore",
		"--calc",
		"--convert-to", "xlsx",
		"--outdir", outDir,
		path,
	}
	if out, err := e.run(ctx, e.Binary, args...); err != nil {
		return fmt.Errorf("%s: %w: %s", e.Binary, err, strings.TrimSpace(string(out)))
	}

	converted := filepath.Join(outDir, filepath.Base(path))
	if _, err := os.Stat(converted); err != nil {
		return fmt.Errorf("%s produced no output: %w", e.Binary, err)
	}
	return os.Rename(converted, path)
}

// DetectEngine selects the recalculation engine for kind. "auto" picks
// soffice when the binary is on PATH and falls back to NoEngine.
func DetectEngine(kind, binary string) (RecalcEngine, error) {
	switch strings.ToLower(kind) {
	case "", EngineAuto:
		engine := NewSofficeEngine(binary)
		if engine.Available() {
			return engine, nil
		}
		return NoEngine{}, nil
	case EngineNone:
		return NoEngine{}, nil
	case EngineSoffice:
		return NewSofficeEngine(binary), nil
	default:
		return nil, fmt.Errorf("invalid engine: %s (must be auto, none, or soffice)", kind)
	}
}
