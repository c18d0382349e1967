package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/layerstack/internal/layers"
)

func describeCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "describe",
		Usage: "Print a model's layer structure, signatures and parameter count",
		Flags: append(commonModelFlags(),
			weightsFlag(),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the initialized parameter tree as JSON",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := loadModel(ctx, cmd, true)
			if err != nil {
				return err
			}
			tree, outs, err := m.Init(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(tree)
			}

			fmt.Printf("model:   %s\n", m.Name)
			fmt.Printf("arity:   %d -> %d\n", m.Root.NIn(), m.Root.NOut())
			for i, sig := range m.Inputs {
				fmt.Printf("input %d: %s\n", i, sig)
			}
			for i, sig := range outs {
				fmt.Printf("output %d: %s\n", i, sig)
			}
			fmt.Printf("params:  %d\n\n", tree.NumParams())
			fmt.Print(layers.Describe(m.Root))
			return nil
		},
	}
}
