package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/model"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/service"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/config"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/dependency"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/github"

	"github.com/urfave/cli/v2"
)

const githubURL = "https://github.com"

func main() {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	ctx = listenOSKillSignalsContext(ctx)
	mainLogger := logger.NewTextLogger()

	code := run(ctx, mainLogger, os.Args)
	cancelFunc()
	os.Exit(code)
}

func run(ctx context.Context, mainLogger applogger.Logger, args []string) int {
	app := &cli.App{
		Name:      "dispatch-workflow",
		Usage:     "executes a GitHub workflow and awaits its termination",
		ArgsUsage: "owner repo workflow_name",
		Description: "The workflow must contain a workflow_dispatch trigger. " +
			"Exits with code 1 unless the run concludes with \"success\".",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "enforce workflow execution",
			},
			&cli.StringFlag{
				Name:     "token",
				EnvVars:  []string{"GITHUB_OAUTH"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "dependencies",
				EnvVars: []string{"DEPENDENCIES"},
				Usage:   "JSON array of owner/repo strings",
			},
			&cli.StringFlag{
				Name:    "api-url",
				EnvVars: []string{"GITHUB_API_URL"},
				Value:   github.DefaultAPIURL,
			},
			&cli.DurationFlag{
				Name:  "refresh-interval",
				Value: 5 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "run-appearance-timeout",
				Value: 60 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 3 {
				return errors.Errorf("expected arguments owner repo workflow_name, got %v", c.Args().Slice())
			}
			repository := model.Repository{Owner: c.Args().Get(0), Name: c.Args().Get(1)}
			workflow := c.Args().Get(2)
			mainLogger.Info(fmt.Sprintf("repo: %v/%v", githubURL, repository))
			mainLogger.Info(fmt.Sprintf("workflow: %v", workflow))

			container, err := newContainer(c, mainLogger)
			if err != nil {
				return err
			}
			defer func() {
				closeErr := container.Close()
				if closeErr != nil {
					mainLogger.Error(closeErr, "failed to close github client")
				}
			}()
			ctx := dependency.ContainerToContext(c.Context, container)
			return dispatchWorkflow(ctx, repository, workflow, c.Bool("force"))
		},
	}
	err := app.RunContext(ctx, forceFlagFirst(args))
	if err != nil {
		mainLogger.Error(err, "failed execute command "+strings.Join(args, " "))
		return 1
	}
	return 0
}

// forceFlagFirst moves -f/--force in front of the positional arguments, where
// flag parsing stops.
func forceFlagFirst(args []string) []string {
	if len(args) == 0 {
		return args
	}
	flags := make([]string, 0, len(args))
	rest := make([]string, 0, len(args))
	for i, arg := range args[1:] {
		if arg == "--" {
			rest = append(rest, args[i+1:]...)
			break
		}
		if isForceFlag(arg) {
			flags = append(flags, arg)
			continue
		}
		rest = append(rest, arg)
	}
	result := append([]string{args[0]}, flags...)
	return append(result, rest...)
}

func isForceFlag(arg string) bool {
	name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
	return strings.HasPrefix(arg, "-") && (name == "f" || name == "force")
}

func newContainer(c *cli.Context, mainLogger applogger.Logger) (dependency.Container, error) {
	dependencies, err := config.LoadDependencies(c.String("dependencies"))
	if err != nil {
		return nil, err
	}
	return dependency.NewDependencyContainer(mainLogger, config.Config{
		APIURL: c.String("api-url"),
		Token:  c.String("token"),
		Timing: service.Timing{
			RefreshInterval:      c.Duration("refresh-interval"),
			RunAppearanceTimeout: c.Duration("run-appearance-timeout"),
		},
		Dependencies: dependencies,
	}), nil
}

func listenOSKillSignalsContext(ctx context.Context) context.Context {
	var cancelFunc context.CancelFunc
	ctx, cancelFunc = context.WithCancel(ctx)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-ch:
			cancelFunc()
		case <-ctx.Done():
			return
		}
	}()
	return ctx
}
