package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rendis/wfscript/internal/builders"
	"github.com/rendis/wfscript/internal/store"
	"github.com/rendis/wfscript/internal/validation"
)

// openStore opens and migrates the saved-workflow database.
func openStore(ctx context.Context, cfg Config) (*store.LibSQLStore, error) {
	path := cfg.dbPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	s, err := store.NewLibSQLStore("file:" + path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

// libraryFlags parses the shared flags plus extra ones registered by fn.
func (c *cli) libraryFlags(name string, args []string, fn func(fs *flag.FlagSet)) (Config, *flag.FlagSet, bool) {
	cfg, err := loadConfig()
	if err != nil {
		c.errorf("%v", err)
		return cfg, nil, false
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	bindFlags(fs, &cfg)
	if fn != nil {
		fn(fs)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, nil, false
	}
	return cfg, fs, true
}

// save implements `wfscript save`: the script must export a valid workflow
// with an id; -force stores invalid ones too.
func (c *cli) save(ctx context.Context, args []string) int {
	var force bool
	cfg, fs, ok := c.libraryFlags("save", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&force, "force", false, "save even if validation fails")
	})
	if !ok {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("save needs exactly one script file, or - for stdin")
	}

	v, err := validation.NewValidator(cfg.Rules)
	if err != nil {
		return c.reportError(err)
	}
	ctx, cancel, logger := c.setup(ctx, cfg, fs.Arg(0))
	defer cancel()

	src, err := c.readSource(fs.Arg(0))
	if err != nil {
		return c.errorf("%v", err)
	}
	result, err := c.interpretSource(ctx, cfg, logger, src)
	if err != nil {
		return c.reportError(err)
	}
	wf, err := builders.ExportWorkflow(result)
	if err != nil {
		return c.reportError(err)
	}
	res := v.Validate(ctx, wf)
	if !res.Valid() && !force {
		for _, is := range res.Errors {
			fmt.Fprintln(c.stderr, is)
		}
		return c.errorf("workflow %q is invalid (use -force to save anyway)", wf.ID)
	}

	rec, err := store.NewSavedWorkflow(src, wf, len(res.Warnings))
	if err != nil {
		return c.reportError(err)
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return c.errorf("%v", err)
	}
	defer s.Close()

	changed, err := s.SaveWorkflow(ctx, rec)
	if err != nil {
		return c.reportError(err)
	}
	logger.InfoContext(ctx, "workflow saved", "id", rec.ID, "revision", rec.Revision, "changed", changed)
	if changed {
		fmt.Fprintf(c.stdout, "Saved %s (%s) revision %d\n", rec.ID, rec.Name, rec.Revision)
	} else {
		fmt.Fprintf(c.stdout, "Unchanged %s (%s) revision %d\n", rec.ID, rec.Name, rec.Revision)
	}
	return 0
}

// list implements `wfscript list`.
func (c *cli) list(ctx context.Context, args []string) int {
	var (
		filter store.WorkflowFilter
		asJSON bool
	)
	cfg, fs, ok := c.libraryFlags("list", args, func(fs *flag.FlagSet) {
		fs.StringVar(&filter.NameContains, "name", "", "only workflows whose name contains this text")
		fs.IntVar(&filter.Limit, "limit", 0, "maximum number of workflows")
		fs.IntVar(&filter.Offset, "offset", 0, "skip this many workflows (with -limit)")
		fs.BoolVar(&asJSON, "json", false, "print JSON")
	})
	if !ok {
		return 2
	}
	if fs.NArg() != 0 {
		return c.errorf("list takes no arguments")
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return c.errorf("%v", err)
	}
	defer s.Close()

	wfs, err := s.ListWorkflows(ctx, filter)
	if err != nil {
		return c.reportError(err)
	}
	if asJSON {
		if wfs == nil {
			wfs = []*store.SavedWorkflow{}
		}
		return c.printJSON(wfs)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tREVISION\tNODES\tWARNINGS\tUPDATED")
	for _, wf := range wfs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			wf.ID, wf.Name, wf.Revision, wf.NodeCount, wf.Warnings, wf.UpdatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}

// show implements `wfscript show`: the workflow JSON by default, the script
// with -source, an older revision with -rev.
func (c *cli) show(ctx context.Context, args []string) int {
	var (
		source bool
		rev    int
	)
	cfg, fs, ok := c.libraryFlags("show", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&source, "source", false, "print the script instead of the workflow JSON")
		fs.IntVar(&rev, "rev", 0, "revision to show (default latest)")
	})
	if !ok {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("show needs a workflow id")
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return c.errorf("%v", err)
	}
	defer s.Close()

	var src string
	var def json.RawMessage
	if rev > 0 {
		r, err := s.GetRevision(ctx, fs.Arg(0), rev)
		if err != nil {
			return c.reportError(err)
		}
		src, def = r.Source, r.Definition
	} else {
		wf, err := s.GetWorkflow(ctx, fs.Arg(0))
		if err != nil {
			return c.reportError(err)
		}
		src, def = wf.Source, wf.Definition
	}

	if source {
		fmt.Fprint(c.stdout, src)
		return 0
	}
	var v any
	if err := json.Unmarshal(def, &v); err != nil {
		return c.errorf("stored definition is not JSON: %v", err)
	}
	return c.printJSON(v)
}

// history implements `wfscript history`.
func (c *cli) history(ctx context.Context, args []string) int {
	cfg, fs, ok := c.libraryFlags("history", args, nil)
	if !ok {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("history needs a workflow id")
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return c.errorf("%v", err)
	}
	defer s.Close()

	revs, err := s.ListRevisions(ctx, fs.Arg(0))
	if err != nil {
		return c.reportError(err)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REVISION\tHASH\tCREATED")
	for _, r := range revs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", strconv.Itoa(r.Revision), r.Hash[:12], r.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}

// remove implements `wfscript rm`; -vacuum compacts the database afterwards.
func (c *cli) remove(ctx context.Context, args []string) int {
	var vacuum bool
	cfg, fs, ok := c.libraryFlags("rm", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&vacuum, "vacuum", false, "reclaim free space after deleting")
	})
	if !ok {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("rm needs a workflow id")
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return c.errorf("%v", err)
	}
	defer s.Close()

	if err := s.DeleteWorkflow(ctx, fs.Arg(0)); err != nil {
		return c.reportError(err)
	}
	if vacuum {
		if err := s.Vacuum(ctx); err != nil {
			return c.errorf("vacuum: %v", err)
		}
	}
	fmt.Fprintf(c.stdout, "Removed %s\n", fs.Arg(0))
	return 0
}

func (c *cli) printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return c.errorf("%v", err)
	}
	fmt.Fprintln(c.stdout, string(data))
	return 0
}
