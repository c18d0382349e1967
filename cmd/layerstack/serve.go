package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/layerstack/internal/api"
	"github.com/samcharles93/layerstack/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr          string
		readTimeout   time.Duration
		storeCapacity int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a model over HTTP",
		Flags: append(commonModelFlags(),
			weightsFlag(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "store-capacity",
				Usage:       "number of apply results kept for GET /v1/apply/:id",
				Value:       256,
				Destination: &storeCapacity,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, cfg, &addr, &storeCapacity)

			m, err := loadModel(ctx, cmd, true)
			if err != nil {
				return err
			}
			service, err := api.NewModelService(ctx, m)
			if err != nil {
				return err
			}
			server := api.NewServer(api.NewApplyStore(int(storeCapacity)), service)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "model", m.Name)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
