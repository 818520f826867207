package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/venkytv/calendar-converter/internal/app"
	"github.com/venkytv/calendar-converter/internal/apperr"
)

// Version information - can be set at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const envPrefix = "CALENDAR_CONVERTER_"

var (
	// errUsage marks a command line that could not be turned into a run.
	errUsage = errors.New("usage error")
	// errLogged marks a run failure that has already been logged.
	errLogged = errors.New("run failed")
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout, stderr)

	err := cmd.Run(ctx, normalizeArgs(args))
	if err == nil {
		return apperr.ExitOK
	}
	if !errors.Is(err, errUsage) && !errors.Is(err, errLogged) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return apperr.ExitUsage
	}
	return apperr.ExitCode(err)
}

// normalizeArgs maps the "-?" help spelling onto --help.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if i > 0 && a == "-?" {
			a = "--help"
		}
		out[i] = a
	}
	return out
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "calendar-converter",
		Usage:     "Convert an iCalendar file by applying configured modifiers",
		UsageText: "calendar-converter [flags] <configurationfile> <importfile> <exportfile> [-debug]",
		Version:   fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging",
				Sources: cli.EnvVars(envPrefix + "DEBUG"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "convert without writing the export file",
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "keep running and re-convert on this cron schedule",
				Sources: cli.EnvVars(envPrefix + "SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "keep running and re-convert when the configuration or import file changes",
			},
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		OnUsageError: func(_ context.Context, cmd *cli.Command, err error, _ bool) error {
			fmt.Fprintf(cmd.Root().ErrWriter, "Incorrect Usage: %v\n\n", err)
			_ = cli.ShowAppHelp(cmd)
			return fmt.Errorf("%w: %v", errUsage, err)
		},
		Action: convert,
	}
}

func convert(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 3 {
		fmt.Fprintf(cmd.Root().ErrWriter, "Expected <configurationfile> <importfile> <exportfile>, got %d argument(s)\n\n", cmd.NArg())
		_ = cli.ShowAppHelp(cmd)
		return errUsage
	}

	args := cmd.Args()
	opts := app.Options{
		ConfigPath:     args.Get(0),
		ImportLocation: args.Get(1),
		ExportPath:     args.Get(2),
		// Any fourth argument turns on debug output.
		Debug:     cmd.Bool("debug") || cmd.NArg() > 3,
		DryRun:    cmd.Bool("dry-run"),
		LogOutput: cmd.Root().ErrWriter,
	}
	runner := app.NewRunner(opts)

	schedule := cmd.String("schedule")
	if schedule == "" && !cmd.Bool("watch") {
		if _, err := runner.RunOnce(ctx); err != nil {
			return fmt.Errorf("%w: %w", errLogged, err)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runner.Serve(ctx, app.ServeOptions{
		Schedule: schedule,
		Watch:    cmd.Bool("watch"),
	})
}
