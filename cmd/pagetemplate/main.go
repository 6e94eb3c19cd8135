// Command pagetemplate renders, serves and stores PageTemplate templates.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"

	pagetemplate "github.com/brianwisti/PageTemplate"
	"github.com/brianwisti/PageTemplate/config"
	"github.com/brianwisti/PageTemplate/internal/ctxlog"
	"github.com/brianwisti/PageTemplate/sqlsource"
)

const usage = `usage: pagetemplate COMMAND [options] [args]

commands:
  render [-c config] [-d data] [-g grammar] [-s] NAME...
                           render templates to standard output
  serve [-c config] [-l addr]
                           serve templates over HTTP
  import [-c config] -b DB FILE...
                           store template files in a database
  list [-c config] -b DB   list the templates stored in a database
  dump [-g grammar] FILE   print the compiled tree of a template file
`

// env is what a command runs with.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

type command func(ctx context.Context, e env, args []string) error

var commands = map[string]command{
	"render": runRender,
	"serve":  runServe,
	"import": runImport,
	"list":   runList,
	"dump":   runDump,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes args[0] as a command, with args[0] doubling as argv[0] for
// option parsing.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fail(stderr, fmt.Errorf("unknown command %q", args[0]))
		fmt.Fprint(stderr, usage)
		return 2
	}
	bootstrap := config.NewLogger("warn", "text", stderr)
	ctx = ctxlog.WithLogger(ctx, bootstrap)
	if err := cmd(ctx, env{stdout: stdout, stderr: stderr}, args); err != nil {
		fail(stderr, err)
		return 1
	}
	return 0
}

func fail(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "pagetemplate: %v\n", err)
}

// options holds the flags shared by the commands.
type options struct {
	config   string
	data     string
	grammar  string
	strict   bool
	listen   string
	database string
}

// parseOptions parses the flags in optspec from args, returning the remaining
// arguments.
func parseOptions(args []string, optspec string) (*options, []string, error) {
	opts, optind, err := getopt.Getopts(args, optspec)
	if err != nil {
		return nil, nil, err
	}
	o := &options{}
	for _, opt := range opts {
		switch opt.Option {
		case 'c':
			o.config = opt.Value
		case 'd':
			o.data = opt.Value
		case 'g':
			o.grammar = opt.Value
		case 's':
			o.strict = true
		case 'l':
			o.listen = opt.Value
		case 'b':
			o.database = opt.Value
		}
	}
	return o, args[optind:], nil
}

// setup loads the configuration, applies the flags over it and installs the
// configured logger in the returned context.
func setup(ctx context.Context, e env, o *options) (context.Context, *config.File, error) {
	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.LoadFile(ctx, o.config); err != nil {
			return nil, nil, err
		}
	}
	if o.grammar != "" {
		cfg.Grammar = o.grammar
	}
	if o.strict {
		cfg.Strict = true
	}
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	if o.database != "" {
		cfg.Database = o.database
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, e.stderr)
	return ctxlog.WithLogger(ctx, logger), cfg, nil
}

// openSource opens the database when one is configured and the include
// paths otherwise. The returned closer is never nil.
func openSource(ctx context.Context, cfg *config.File) (pagetemplate.Source, func() error, error) {
	if cfg.Database == "" {
		return pagetemplate.NewFileSource(cfg.IncludePaths...), func() error { return nil }, nil
	}
	src, err := sqlsource.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return src, src.Close, nil
}

func newParser(ctx context.Context, cfg *config.File) (*pagetemplate.Parser, func() error, error) {
	src, closer, err := openSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := cfg.Parser(src, ctxlog.FromContext(ctx))
	if err != nil {
		closer()
		return nil, nil, err
	}
	return p, closer, nil
}

func logger(ctx context.Context) *slog.Logger {
	return ctxlog.FromContext(ctx)
}
