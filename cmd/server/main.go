package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "escrow-market",
		Usage: "маркетплейс услуг с эскроу",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "запустить HTTP API, WebSocket хаб и sweeper автовыплат",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "применить SQL миграции",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "status", Usage: "только показать состояние миграций"},
				},
				Action: migrate,
			},
			{
				Name:   "sweep",
				Usage:  "один проход автовыплат по истёкшим эскроу",
				Action: sweepOnce,
			},
			{
				Name:  "token",
				Usage: "выпустить access токен (пользователи заводятся вне сервиса)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "UUID пользователя"},
					&cli.StringFlag{Name: "role", Value: "buyer", Usage: "buyer | seller | arbiter | admin"},
				},
				Action: issueToken,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatalf("main: %v", err)
	}
}

func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}
