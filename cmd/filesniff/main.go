// Command filesniff classifies files by content from any configured store.
//
// Store selection and classification settings come from FILESNIFF_*
// environment variables; flags override a few of them.
//
//	filesniff [flags] [path ...]
//	filesniff --watch 'inbox/**'
//	filesniff --serve :8080
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/gobeaver/filesniff"
	"github.com/gobeaver/filesniff/policy"
	_ "github.com/gobeaver/filesniff/driver/azure"
	_ "github.com/gobeaver/filesniff/driver/gcs"
	_ "github.com/gobeaver/filesniff/driver/local"
	_ "github.com/gobeaver/filesniff/driver/memory"
	_ "github.com/gobeaver/filesniff/driver/s3"
	_ "github.com/gobeaver/filesniff/driver/sftp"
	_ "github.com/gobeaver/filesniff/driver/zip"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errRejected) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errRejected is returned when --check finds a policy violation.
var errRejected = errors.New("one or more files rejected by policy")

type options struct {
	driver  string
	root    string
	rules   string
	json    bool
	nested  bool
	check   bool
	watch   string
	serve   string
	verbose bool
	noColor bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	var opts options

	flagSet := pflag.NewFlagSet("filesniff", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.driver, "driver", "", "store driver (overrides FILESNIFF_DRIVER)")
	flagSet.StringVar(&opts.root, "root", "", "base directory for the local driver")
	flagSet.StringVar(&opts.rules, "rules", "", "YAML or TOML file of extra signature rules")
	flagSet.BoolVar(&opts.json, "json", false, "print results as JSON lines")
	flagSet.BoolVar(&opts.nested, "nested", false, "also classify the payload of compressed files")
	flagSet.BoolVar(&opts.check, "check", false, "apply the configured policy and exit 2 on rejection")
	flagSet.StringVar(&opts.watch, "watch", "", "classify files matching `PATTERN` as they change")
	flagSet.StringVar(&opts.serve, "serve", "", "serve the HTTP API on `ADDR`")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output")
	flagSet.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.watch != "" && opts.serve != "" {
		return nil, nil, errors.New("--watch and --serve are mutually exclusive")
	}
	return &opts, flagSet.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, paths, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := filesniff.GetConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, opts)

	sniffer, err := filesniff.New(cfg, filesniff.WithClassifyHook(func(r filesniff.Result, err error) {
		if err != nil {
			logger.Debug("classify failed", "path", r.Path, "error", err)
			return
		}
		logger.Debug("classified", "path", r.Path, "mime", r.MIME, "rule", r.Rule)
	}))
	if err != nil {
		return err
	}
	defer sniffer.Close()

	logger.Debug("store ready", "driver", cfg.Driver)

	out := newPrinter(stdout, opts.json, opts.noColor)

	switch {
	case opts.serve != "":
		return serve(ctx, opts.serve, sniffer, logger)
	case opts.watch != "":
		return watch(ctx, sniffer, opts, out, logger)
	}

	results, err := classifyPaths(ctx, sniffer, paths, opts)
	if err != nil {
		return err
	}
	for _, r := range results {
		out.print(r)
	}
	if opts.check && anyRejected(results) {
		return errRejected
	}
	return nil
}

// anyRejected reports whether a policy refused any result. Permission and
// read failures are not rejections.
func anyRejected(results []filesniff.Result) bool {
	for _, r := range results {
		if errors.As(r.Err, new(*policy.ValidationError)) {
			return true
		}
	}
	return false
}

func applyOverrides(cfg *filesniff.Config, opts *options) {
	if opts.driver != "" {
		cfg.Driver = opts.driver
	}
	if opts.root != "" {
		cfg.LocalBasePath = opts.root
	}
	if opts.rules != "" {
		cfg.RulesFile = opts.rules
	}
}

// classifyPaths classifies each path; directories are expanded recursively
// and no paths means the whole store. Per-path failures are kept in the
// results, which follow the order of paths.
func classifyPaths(ctx context.Context, s *filesniff.Sniffer, paths []string, opts *options) ([]filesniff.Result, error) {
	mode := batchMode(opts)
	if len(paths) == 0 {
		return s.ClassifyTree(ctx, "", filesniff.All(), true, mode...)
	}

	var (
		results []filesniff.Result
		files   []string
	)
	flush := func() error {
		if len(files) == 0 {
			return nil
		}
		rs, err := s.ClassifyAll(ctx, files, mode...)
		files = nil
		results = append(results, rs...)
		return err
	}
	for _, p := range paths {
		if info, err := s.Store().Stat(ctx, p); err != nil || !info.IsDir {
			files = append(files, p)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		rs, err := s.ClassifyTree(ctx, p, filesniff.All(), true, mode...)
		if err != nil {
			return nil, err
		}
		results = append(results, rs...)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return results, nil
}

func batchMode(opts *options) []filesniff.BatchOption {
	switch {
	case opts.check:
		return []filesniff.BatchOption{filesniff.BatchCheck()}
	case opts.nested:
		return []filesniff.BatchOption{filesniff.BatchNested()}
	}
	return nil
}

// watch classifies every file matching the pattern each time it changes.
func watch(ctx context.Context, s *filesniff.Sniffer, opts *options, out *printer, logger *slog.Logger) error {
	watcher, ok := s.Store().(filesniff.CanWatch)
	if !ok {
		return fmt.Errorf("store does not support watching: %w", filesniff.ErrNotSupported)
	}

	logger.Info("watching", "pattern", opts.watch)
	err := filesniff.OnChange(ctx, func() (filesniff.ChangeToken, error) {
		return watcher.Watch(ctx, opts.watch)
	}, func(paths []string) {
		results, err := s.ClassifyAll(ctx, paths, batchMode(opts)...)
		if err != nil {
			return
		}
		for _, r := range results {
			if r.Failed() && filesniff.IsNotExist(r.Err) {
				logger.Info("removed", "path", r.Path)
				continue
			}
			out.print(r)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
