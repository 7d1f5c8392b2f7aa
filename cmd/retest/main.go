package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/msageha/retest/internal/aggregate"
	"github.com/msageha/retest/internal/config"
	"github.com/msageha/retest/internal/lock"
	"github.com/msageha/retest/internal/model"
	"github.com/msageha/retest/internal/orchestrator"
	"github.com/msageha/retest/internal/watcher"
)

const version = "1.0.0"

// ChangedFilesEnv is consulted when no paths are given on the command line.
// It holds a whitespace- or newline-separated path list, the shape hook
// runners conventionally pass.
const ChangedFilesEnv = "RETEST_CHANGED_FILES"

// Exit codes observed by the triggering hook: 0 means nothing to block on,
// 2 means the change must be blocked, 1 is reserved for internal errors.
const (
	exitOK       = 0
	exitInternal = 1
	exitBlocked  = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInternal)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "version":
		fmt.Printf("retest %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitInternal)
	}
}

func printUsage() {
	fmt.Println(`retest - run the tests impacted by a set of changed files

Usage:
  retest run [--json] [--verbose] [path ...]   run once for the given paths
  retest watch [--verbose]                     watch the tree and run on change
  retest version                               print version
  retest help                                  show this help

retest run reads paths from arguments, from $` + ChangedFilesEnv + ` when no
arguments are given, or from stdin when the single argument is "-".

Exit codes: 0 passed or nothing to run, 2 tests failed, 1 internal error.`)
}

func runRun(args []string) {
	var jsonOut, verbose bool
	var paths []string
	for _, a := range args {
		switch a {
		case "--json":
			jsonOut = true
		case "--verbose", "-v":
			verbose = true
		default:
			if strings.HasPrefix(a, "--") {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: retest run [--json] [--verbose] [path ...]\n", a)
				os.Exit(exitInternal)
			}
			paths = append(paths, a)
		}
	}

	changeSet, err := resolveChangeSet(paths, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read change-set: %v\n", err)
		os.Exit(exitInternal)
	}

	cfg, err := loadConfig(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(exitInternal)
	}

	var logger *log.Logger
	if verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	o := orchestrator.New(cfg, logger)
	v, err := o.Run(context.Background(), changeSet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(exitInternal)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(os.Stderr, "encode verdict: %v\n", err)
			os.Exit(exitInternal)
		}
	} else {
		summary := aggregate.Summary(v, aggregate.Options{ExcerptLines: cfg.Run.ExcerptLines})
		// Failures go to stderr so they surface in CI logs.
		if v.Blocking() {
			fmt.Fprint(os.Stderr, summary)
		} else {
			fmt.Print(summary)
		}
	}

	if v.Blocking() {
		os.Exit(exitBlocked)
	}
	os.Exit(exitOK)
}

func runWatch(args []string) {
	var verbose bool
	for _, a := range args {
		switch a {
		case "--verbose", "-v":
			verbose = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: retest watch [--verbose]\n", a)
			os.Exit(exitInternal)
		}
	}

	cfg, err := loadConfig(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(exitInternal)
	}

	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve working directory: %v\n", err)
		os.Exit(exitInternal)
	}

	fl := lock.New(filepath.Join(root, ".retest.lock"))
	if err := fl.TryLock(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(exitInternal)
	}
	defer fl.Unlock()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	o := orchestrator.New(cfg, logger)
	w := watcher.New(root, cfg, o.Run, os.Stdout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
		// Second signal → force exit
		<-sigCh
		fl.Unlock()
		os.Exit(exitInternal)
	}()

	if err := w.Run(ctx); err != nil {
		fl.Unlock()
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(exitInternal)
	}
}

func loadConfig(verbose bool) (model.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return model.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}
	cfg, err := config.LoadOrDefault(cwd)
	if err != nil {
		return model.Config{}, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// resolveChangeSet builds the path list from arguments, the environment, or
// stdin ("-"). An empty change-set is valid and yields nothing to run.
func resolveChangeSet(args []string, stdin io.Reader) ([]string, error) {
	if len(args) == 1 && args[0] == "-" {
		return readPaths(stdin)
	}
	if len(args) > 0 {
		return args, nil
	}
	if env := os.Getenv(ChangedFilesEnv); env != "" {
		return strings.Fields(env), nil
	}
	return nil, nil
}

func readPaths(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		paths = append(paths, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return paths, nil
}
