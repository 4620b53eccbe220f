package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/config"
	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/dependency"

	"github.com/urfave/cli/v2"
)

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
		Name:  "generate-nightly",
		Usage: "generates the nightly build workflow from repository dependencies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dependencies",
				EnvVars:  []string{"DEPENDENCIES"},
				Usage:    "JSON object mapping owner/repo to its owner/repo dependencies",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "template-dir",
				Value: config.DefaultTemplateDir,
			},
			&cli.StringFlag{
				Name:  "output",
				Value: config.DefaultOutput,
			},
		},
		Action: func(c *cli.Context) error {
			paths, err := config.LoadTemplatePaths(c.String("template-dir"))
			if err != nil {
				return err
			}
			ctx := dependency.ContainerToContext(c.Context, dependency.NewDependencyContainer(mainLogger, paths))
			return generateNightly(ctx, c.String("dependencies"), c.String("output"))
		},
	}
	err := app.RunContext(ctx, args)
	if err != nil {
		mainLogger.Error(err, "failed execute command "+strings.Join(args, " "))
		return 1
	}
	return 0
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
