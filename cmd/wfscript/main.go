// wfscript interprets workflow scripts into workflow JSON, validates them,
// renders diagrams and serves the same tools over MCP.
//
//	wfscript run [flags] file|-
//	wfscript check [flags] file|-
//	wfscript schedule [flags] file|-
//	wfscript save [flags] file|-
//	wfscript list|show|history|rm [flags] [id]
//	wfscript reserved
//	wfscript serve [flags]
//	wfscript init [flags]
//	wfscript version
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: wfscript <command> [flags]

commands:
  run       interpret a script and print its export (json, mermaid, ascii, png, svg)
  check     interpret a script and validate the exported workflow
  schedule  list upcoming fire times of the script's schedule triggers
  save      interpret, validate and store a script in the workflow library
  list      list saved workflows
  show      print a saved workflow (or its script with -source)
  history   list the revisions of a saved workflow
  rm        delete a saved workflow and its history
  reserved  print the reserved-name tables as JSON
  serve     run the MCP server on stdio
  init      write ~/.wfscript/settings.json
  version   print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries the process streams so commands can be tested.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) errorf(format string, args ...any) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "run":
		return c.runScript(ctx, args[1:])
	case "check":
		return c.check(ctx, args[1:])
	case "schedule":
		return c.schedule(ctx, args[1:])
	case "save":
		return c.save(ctx, args[1:])
	case "list":
		return c.list(ctx, args[1:])
	case "show":
		return c.show(ctx, args[1:])
	case "history":
		return c.history(ctx, args[1:])
	case "rm":
		return c.remove(ctx, args[1:])
	case "reserved":
		return c.reserved(args[1:])
	case "serve":
		return c.serve(ctx, args[1:])
	case "init":
		return c.initSettings(args[1:])
	case "version", "-version", "--version":
		printVersion(stdout)
		return 0
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
	return 2
}
