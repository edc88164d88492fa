// Command sonata evaluates an expression against JSON documents.
//
// Documents are read from a file or standard input as NDJSON (or
// concatenated JSON) and each result is written as one line of JSON.
// Documents whose result is undefined produce no output.
//
// Usage:
//
//	sonata [flags] <expression> [file]
//
// Example:
//
//	echo '{"items":[{"price":5},{"price":7}]}' | sonata '$sum(items.price)'
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/sandrolain/sonata"
	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/ext"
	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "sonata:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sonata", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pretty := fs.Bool("pretty", false, "indent JSON output")
	debug := fs.Bool("debug", false, "log evaluations to stderr")
	timeout := fs.Duration("timeout", 30*time.Second, "per-document evaluation timeout (0 disables)")
	maxDepth := fs.Int("max-depth", 10000, "maximum nested function applications")
	extensions := fs.Bool("ext", false, "register the extension functions")
	keepGoing := fs.Bool("k", false, "report failing documents and continue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("usage: sonata [flags] <expression> [file]")
	}

	logger := zap.NewNop()
	if *debug {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	expr, err := parser.Compile(fs.Arg(0))
	if err != nil {
		return err
	}

	in := stdin
	if fs.NArg() == 2 {
		f, err := os.Open(fs.Arg(1))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	opts := []evaluator.EvalOption{
		sonata.WithLogger(logger),
		sonata.WithDebug(*debug),
		sonata.WithTimeout(*timeout),
		evaluator.WithMaxDepth(*maxDepth),
	}
	if *extensions {
		opts = append(opts, ext.WithAll())
	}
	ev := evaluator.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := ev.EvalStream(ctx, expr, bufio.NewReader(in))
	if err != nil {
		return err
	}
	out := bufio.NewWriter(stdout)
	defer out.Flush()

	doc := 0
	for res := range results {
		doc++
		if res.Err != nil {
			if !*keepGoing || !isEvalError(res.Err) {
				return fmt.Errorf("document %d: %w", doc, res.Err)
			}
			logger.Warn("evaluation failed", zap.Int("document", doc), zap.Error(res.Err))
			fmt.Fprintf(stderr, "document %d: %v\n", doc, res.Err)
			continue
		}
		if res.Value == nil {
			continue
		}
		s, err := types.Stringify(res.Value, *pretty)
		if err != nil {
			return fmt.Errorf("document %d: %w", doc, err)
		}
		if _, err := fmt.Fprintln(out, s); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// isEvalError reports whether err came from evaluating one document rather
// than from reading the input.
func isEvalError(err error) bool {
	return types.CodeOf(err) != ""
}
