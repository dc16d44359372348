package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/boardkit/event-hub/config"
)

const ServiceName = "event-hub"

var (
	version = "0.0.0"
	commit  = "hash"
	branch  = "branch"
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Real-time event broadcasting hub for board sessions",
		Version: fmt.Sprintf("%s (%s, %s)", version, branch, commit),
		Commands: []*cli.Command{
			serverCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the hub server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			return app.Stop(context.Background())
		},
	}
}
