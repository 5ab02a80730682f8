package dwg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
)

// DefaultCommands are the converter invocations probed when none are
// configured. Placeholders: {in} and {out} are file paths, {indir} and
// {outdir} their directories.
var DefaultCommands = []string{
	"dwg2dxf -y -o {out} {in}",
	"ODAFileConverter {indir} {outdir} ACAD2018 DXF 0 1",
	"odafileconverter {indir} {outdir} ACAD2018 DXF 0 1",
}

// ExecConverter runs the first installed command-line converter.
type ExecConverter struct {
	Commands []string
	Log      *zap.Logger

	// LookPath resolves a tool name; defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Convert implements Converter.
func (c *ExecConverter) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	commands := c.Commands
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	var tried []string
	for _, tmpl := range commands {
		args, err := shellwords.Parse(tmpl)
		if err != nil || len(args) == 0 {
			log.Warn("ignoring malformed converter command", zap.String("command", tmpl), zap.Error(err))
			continue
		}
		tried = append(tried, args[0])
		tool, err := lookPath(args[0])
		if err != nil {
			continue
		}
		log.Debug("converting DWG", zap.String("tool", tool), zap.String("file", name))
		return c.run(ctx, tool, args[1:], name, data)
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrConverterUnavailable, strings.Join(tried, ", "))
}

func (c *ExecConverter) run(ctx context.Context, tool string, args []string, name string, data []byte) ([]byte, error) {
	work, err := os.MkdirTemp("", "dwg-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	defer os.RemoveAll(work)

	indir, outdir := filepath.Join(work, "in"), filepath.Join(work, "out")
	for _, dir := range []string{indir, outdir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "drawing"
	}
	in := filepath.Join(indir, base+".dwg")
	out := filepath.Join(outdir, base+".dxf")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	r := strings.NewReplacer("{in}", in, "{out}", out, "{indir}", indir, "{outdir}", outdir)
	expanded := make([]string, len(args))
	for i, a := range args {
		expanded[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, tool, expanded...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrConversionFailed, filepath.Base(tool), err, strings.TrimSpace(string(output)))
	}

	result, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) {
		// Directory-based converters choose their own output name.
		matches, _ := filepath.Glob(filepath.Join(outdir, "*.[dD][xX][fF]"))
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s produced no DXF", ErrConversionFailed, filepath.Base(tool))
		}
		result, err = os.ReadFile(matches[0])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return result, nil
}
