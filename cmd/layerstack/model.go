package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/layerstack/internal/logger"
	"github.com/samcharles93/layerstack/internal/lswstore"
	"github.com/samcharles93/layerstack/internal/modeldef"
)

// loadModel builds the model named by --model with config and flag
// overrides applied. When withWeights is set and --weights names a
// checkpoint, the model is initialized and the checkpoint installed over
// the fresh weights.
func loadModel(ctx context.Context, cmd *cli.Command, withWeights bool) (*modeldef.Model, error) {
	log := logger.FromContext(ctx)

	def, err := modeldef.Load(modelPath)
	if err != nil {
		return nil, err
	}
	if applyModelConfig(cmd, cfg) && (cmd.IsSet("seed") || def.Seed == nil) {
		s := seed
		def.Seed = &s
	}
	def.SetDefaultConcurrency(int(concurrency))

	m, err := modeldef.Build(def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", modelPath, err)
	}
	log.Debug("model built", "name", m.Name, "n_in", m.Root.NIn(), "n_out", m.Root.NOut(), "seed", m.Seed)

	if !withWeights || weightsPath == "" {
		return m, nil
	}
	if _, _, err := m.Init(ctx); err != nil {
		return nil, err
	}
	info, err := lswstore.Load(weightsPath, m.Root)
	if err != nil {
		return nil, err
	}
	log.Info("weights loaded", "path", weightsPath, "checkpoint", info.Name)
	return m, nil
}
