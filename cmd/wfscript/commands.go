package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/wfscript/internal/builders"
	"github.com/rendis/wfscript/internal/diagram"
	"github.com/rendis/wfscript/internal/logging"
	"github.com/rendis/wfscript/internal/query"
	"github.com/rendis/wfscript/internal/security"
	"github.com/rendis/wfscript/internal/validation"
	"github.com/rendis/wfscript/pkg/interpreter"
	"github.com/rendis/wfscript/pkg/mcp"
	"github.com/rendis/wfscript/pkg/schema"
)

// runScript implements `wfscript run`.
func (c *cli) runScript(ctx context.Context, args []string) int {
	cfg, err := loadConfig()
	if err != nil {
		return c.errorf("%v", err)
	}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	bindFlags(fs, &cfg)
	q := fs.String("query", "", "jq program applied to the exported JSON")
	format := fs.String("format", "json", "output format: json, mermaid, ascii, png, svg")
	out := fs.String("o", "", "write output to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("run needs exactly one script file, or - for stdin")
	}

	ctx, cancel, logger := c.setup(ctx, cfg, fs.Arg(0))
	defer cancel()

	result, err := c.interpret(ctx, cfg, logger, fs.Arg(0))
	if err != nil {
		return c.reportError(err)
	}

	var data []byte
	switch *format {
	case "json":
		data, err = exportJSON(ctx, result, *q)
	case "mermaid", "ascii", "png", "svg":
		if *q != "" {
			return c.errorf("-query only applies to -format json")
		}
		data, err = renderDiagram(ctx, result, *format)
	default:
		return c.errorf("unknown format %q: want json, mermaid, ascii, png or svg", *format)
	}
	if err != nil {
		return c.reportError(err)
	}

	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return c.errorf("cannot write %s: %v", *out, err)
		}
		return 0
	}
	if _, err := c.stdout.Write(data); err != nil {
		return c.errorf("%v", err)
	}
	return 0
}

func exportJSON(ctx context.Context, result any, q string) ([]byte, error) {
	exported, err := builders.Export(result)
	if err != nil {
		return nil, err
	}
	v := exported
	if q != "" {
		outputs, err := query.NewJQEngine().EvaluateAll(ctx, q, exported)
		if err != nil {
			return nil, err
		}
		if len(outputs) == 1 {
			v = outputs[0]
		} else {
			v = outputs
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func renderDiagram(ctx context.Context, result any, format string) ([]byte, error) {
	wf, err := builders.ExportWorkflow(result)
	if err != nil {
		return nil, err
	}
	model, err := diagram.Build(wf)
	if err != nil {
		return nil, err
	}
	switch format {
	case "mermaid":
		return []byte(diagram.RenderMermaid(model)), nil
	case "ascii":
		return []byte(diagram.RenderASCII(model)), nil
	}
	return diagram.RenderImage(ctx, model, diagram.ImageFormat(format))
}

// check implements `wfscript check`: exit status 1 when the workflow has
// validation errors, warnings alone pass.
func (c *cli) check(ctx context.Context, args []string) int {
	cfg, err := loadConfig()
	if err != nil {
		return c.errorf("%v", err)
	}
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	bindFlags(fs, &cfg)
	asJSON := fs.Bool("json", false, "print the validation result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("check needs exactly one script file, or - for stdin")
	}

	v, err := validation.NewValidator(cfg.Rules)
	if err != nil {
		return c.reportError(err)
	}

	ctx, cancel, logger := c.setup(ctx, cfg, fs.Arg(0))
	defer cancel()

	result, err := c.interpret(ctx, cfg, logger, fs.Arg(0))
	if err != nil {
		return c.reportError(err)
	}
	wf, err := builders.ExportWorkflow(result)
	if err != nil {
		return c.reportError(err)
	}
	res := v.Validate(ctx, wf)

	if *asJSON {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(c.stdout, string(data))
	} else {
		for _, is := range res.Issues() {
			fmt.Fprintln(c.stdout, is)
		}
		if res.Valid() {
			fmt.Fprintf(c.stdout, "ok: %d nodes, %d warnings\n", len(wf.Nodes), len(res.Warnings))
		} else {
			fmt.Fprintf(c.stdout, "invalid: %d errors, %d warnings\n", len(res.Errors), len(res.Warnings))
		}
	}
	if !res.Valid() {
		return 1
	}
	return 0
}

// reserved implements `wfscript reserved`.
func (c *cli) reserved(args []string) int {
	if len(args) > 0 {
		return c.errorf("reserved takes no arguments")
	}
	data, err := json.MarshalIndent(security.Default().ReservedNames(), "", "  ")
	if err != nil {
		return c.errorf("%v", err)
	}
	fmt.Fprintln(c.stdout, string(data))
	return 0
}

// serve implements `wfscript serve`: MCP over stdio, logs on stderr.
func (c *cli) serve(ctx context.Context, args []string) int {
	cfg, err := loadConfig()
	if err != nil {
		return c.errorf("%v", err)
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	bindFlags(fs, &cfg)
	library := fs.Bool("library", true, "expose the saved-workflow tools")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := logging.New(c.stderr, cfg.LogLevel, cfg.LogFormat)
	v, err := validation.NewValidator(cfg.Rules)
	if err != nil {
		return c.reportError(err)
	}
	deps := mcp.Deps{
		Validator: v,
		Options:   cfg.interpreterOptions(),
		Timeout:   time.Duration(cfg.Timeout),
		Version:   version,
		Logger:    logger,
	}
	if *library {
		st, err := openStore(ctx, cfg)
		if err != nil {
			return c.errorf("%v", err)
		}
		defer st.Close()
		deps.Store = st
	}
	srv, err := mcp.NewServer(deps)
	if err != nil {
		return c.errorf("%v", err)
	}

	logger.Info("mcp server listening on stdio", "version", version, "rules", len(cfg.Rules), "library", *library)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return c.errorf("%v", err)
	}
	return 0
}

// initSettings implements `wfscript init`: writes the flags it is given, on top of
// the defaults, to settings.json.
func (c *cli) initSettings(args []string) int {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	bindFlags(fs, &cfg)
	force := fs.Bool("force", false, "overwrite an existing settings.json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := wfscriptDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return c.errorf("cannot create %s: %v", dir, err)
	}
	path := settingsPath()
	if _, err := os.Stat(path); err == nil && !*force {
		return c.errorf("%s already exists (use -force to overwrite)", path)
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return c.errorf("cannot write %s: %v", path, err)
	}
	fmt.Fprintf(c.stdout, "Config written to %s\n", path)
	return 0
}

// setup tags ctx for log correlation and applies the timeout.
func (c *cli) setup(ctx context.Context, cfg Config, source string) (context.Context, context.CancelFunc, *slog.Logger) {
	logger := logging.New(c.stderr, cfg.LogLevel, cfg.LogFormat)
	if source != "-" {
		source = filepath.Base(source)
	}
	ctx = logging.WithIDs(ctx, uuid.NewString(), source)
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	return ctx, cancel, logger
}

func (c *cli) interpret(ctx context.Context, cfg Config, logger *slog.Logger, path string) (any, error) {
	src, err := c.readSource(path)
	if err != nil {
		return nil, err
	}
	return c.interpretSource(ctx, cfg, logger, src)
}

func (c *cli) interpretSource(ctx context.Context, cfg Config, logger *slog.Logger, src string) (any, error) {
	opts := append(cfg.interpreterOptions(), interpreter.WithLogger(logger))
	return interpreter.InterpretContext(ctx, src, builders.Functions(), opts...)
}

func (c *cli) readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

// reportError prints err; language errors carry their line and column.
func (c *cli) reportError(err error) int {
	var serr *schema.Error
	if errors.As(err, &serr) && serr.Location != nil {
		return c.errorf("%d:%d: %s [%s]", serr.Location.Line, serr.Location.Column, serr.Message, serr.Code)
	}
	return c.errorf("%v", err)
}
