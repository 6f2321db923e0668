package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rendis/wfscript/internal/builders"
	"github.com/rendis/wfscript/internal/scheduler"
)

// schedule implements `wfscript schedule`: upcoming fire times of the
// workflow's schedule triggers.
func (c *cli) schedule(ctx context.Context, args []string) int {
	var (
		count  int
		from   string
		asJSON bool
	)
	cfg, fs, ok := c.libraryFlags("schedule", args, func(fs *flag.FlagSet) {
		fs.IntVar(&count, "n", 5, "number of fire times to show")
		fs.StringVar(&from, "from", "", "start time, RFC 3339 (default now)")
		fs.BoolVar(&asJSON, "json", false, "print each trigger interval with its fire times as JSON")
	})
	if !ok {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("schedule needs exactly one script file, or - for stdin")
	}
	start := time.Now()
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return c.errorf("-from: %v", err)
		}
		start = t
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
	fires, err := scheduler.Preview(wf, start, count)
	if err != nil {
		return c.reportError(err)
	}

	if asJSON {
		return c.printJSON(fires)
	}
	if len(fires) == 0 {
		fmt.Fprintln(c.stdout, "no schedule triggers")
		return 0
	}
	for _, f := range fires {
		if f.Dynamic {
			fmt.Fprintf(c.stdout, "# %s interval %d is an expression, resolved at run time\n", f.Node, f.Interval)
		}
	}
	for _, o := range scheduler.Merge(fires, count) {
		fmt.Fprintln(c.stdout, o)
	}
	return 0
}
