package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/layerstack/internal/logger"
	"github.com/samcharles93/layerstack/internal/lswstore"
	"github.com/samcharles93/layerstack/pkg/lsw"
)

func initCmd() *cli.Command {
	var outPath string

	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a model's weights and write them to a checkpoint",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .lsw path",
				Required:    true,
				Destination: &outPath,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			m, err := loadModel(ctx, cmd, false)
			if err != nil {
				return err
			}
			tree, _, err := m.Init(ctx)
			if err != nil {
				return err
			}

			info := lsw.ModelInfo{Name: m.Name, Seed: m.Seed}
			for _, sig := range m.Inputs {
				info.Inputs = append(info.Inputs, lsw.InputInfo{Shape: sig.Shape, DType: string(sig.DType)})
			}
			if err := lswstore.Save(outPath, m.Root, info); err != nil {
				return fmt.Errorf("write checkpoint: %w", err)
			}
			log.Info("checkpoint written", "path", outPath, "model", m.Name, "seed", m.Seed, "params", tree.NumParams())
			return nil
		},
	}
}
