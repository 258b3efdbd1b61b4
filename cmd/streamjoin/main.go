package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  `streamjoin`,
		Usage: `lazy inner, left outer and full outer joins over record files, kafka ranges and http`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    `log`,
				Value:   `error`,
				Usage:   `log level (trace, debug, info, warn, error, fatal)`,
				EnvVars: []string{`STREAMJOIN_LOG_LEVEL`},
			},
			&cli.BoolFlag{
				Name:    `log-colors`,
				Usage:   `colored log output`,
				EnvVars: []string{`STREAMJOIN_LOG_COLORS`},
			},
		},
		Before: before,
		Commands: []*cli.Command{
			joinCommand(),
			kafkaCommand(),
			planCommand(),
			serveCommand(),
		},
	}
}
