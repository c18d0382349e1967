package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/layerstack/internal/api"
)

func applyCmd() *cli.Command {
	var inputPath string

	return &cli.Command{
		Name:  "apply",
		Usage: "Run a model on inputs read from a JSON file (or - for stdin)",
		Flags: append(commonModelFlags(),
			weightsFlag(),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       `JSON file of the form {"inputs":[{"shape":[..],"data":[..]}]}`,
				Value:       "-",
				Destination: &inputPath,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := loadModel(ctx, cmd, true)
			if err != nil {
				return err
			}
			req, err := readApplyRequest(inputPath, os.Stdin)
			if err != nil {
				return err
			}
			service, err := api.NewModelService(ctx, m)
			if err != nil {
				return err
			}
			_, outputs, err := service.Apply(ctx, req.Inputs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			return enc.Encode(map[string]any{"model": m.Name, "outputs": outputs})
		},
	}
}

func readApplyRequest(path string, stdin io.Reader) (api.ApplyRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return api.ApplyRequest{}, err
	}
	var req api.ApplyRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return api.ApplyRequest{}, fmt.Errorf("decode inputs: %w", err)
	}
	if len(req.Inputs) == 0 {
		return api.ApplyRequest{}, fmt.Errorf("decode inputs: no inputs given")
	}
	return req, nil
}
