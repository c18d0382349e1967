// Package modeldef builds layer compositions from YAML or JSON definitions.
//
// A definition names the model inputs, a seed, a table of shared layers and
// the root node:
//
//	name: mlp
//	seed: 1
//	inputs:
//	  - shape: [4, 8]
//	shared:
//	  proj: {kind: dense, units: 8}
//	model:
//	  kind: serial
//	  layers:
//	    - {ref: proj}
//	    - {kind: relu}
//	    - {ref: proj}
//
// Every ref to the same shared name resolves to one layer instance, so its
// weights are shared.
package modeldef

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/layerstack/internal/tensor"
)

var (
	ErrUnknownKind  = errors.New("modeldef: unknown layer kind")
	ErrMissingRef   = errors.New("modeldef: reference to undefined shared layer")
	ErrRecursiveRef = errors.New("modeldef: shared layer refers to itself")
	ErrInvalid      = errors.New("modeldef: invalid definition")
)

// Definition is the decoded form of a model file. A nil Seed means the file
// does not choose one; an explicit 0 is kept.
type Definition struct {
	Name   string             `yaml:"name" json:"name"`
	Seed   *uint64            `yaml:"seed,omitempty" json:"seed,omitempty"`
	Inputs []tensor.Signature `yaml:"inputs" json:"inputs"`
	Shared map[string]Node    `yaml:"shared,omitempty" json:"shared,omitempty"`
	Model  Node               `yaml:"model" json:"model"`
}

// Node describes one layer. Which fields apply depends on Kind; a node with
// Ref set points into Definition.Shared and must not set anything else.
type Node struct {
	Kind        string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Name        string  `yaml:"name,omitempty" json:"name,omitempty"`
	Ref         string  `yaml:"ref,omitempty" json:"ref,omitempty"`
	Layers      []Node  `yaml:"layers,omitempty" json:"layers,omitempty"`
	Units       int     `yaml:"units,omitempty" json:"units,omitempty"`
	Indices     []int   `yaml:"indices,omitempty" json:"indices,omitempty"`
	NIn         int     `yaml:"n_in,omitempty" json:"n_in,omitempty"`
	Factor      float32 `yaml:"factor,omitempty" json:"factor,omitempty"`
	Concurrency int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// Load reads a definition file. Files ending in .json are decoded as JSON,
// anything else as YAML.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a definition in the given format ("yaml" or "json").
// Unknown fields are rejected so typos do not silently drop settings.
func Parse(data []byte, format string) (*Definition, error) {
	var def Definition
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrInvalid, err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalid, format)
	}
	for i := range def.Inputs {
		if def.Inputs[i].DType == "" {
			def.Inputs[i].DType = tensor.DTypeF32
		}
		dt, err := tensor.ParseDType(string(def.Inputs[i].DType))
		if err != nil {
			return nil, fmt.Errorf("%w: inputs[%d]: %v", ErrInvalid, i, err)
		}
		def.Inputs[i].DType = dt
	}
	return &def, nil
}

// SetDefaultConcurrency sets the concurrency of every parallel and branch
// node that does not choose its own.
func (d *Definition) SetDefaultConcurrency(n int) {
	if n <= 0 {
		return
	}
	for name, node := range d.Shared {
		setConcurrency(&node, n)
		d.Shared[name] = node
	}
	setConcurrency(&d.Model, n)
}

func setConcurrency(node *Node, n int) {
	kind := strings.ToLower(node.Kind)
	if (kind == "parallel" || kind == "branch") && node.Concurrency == 0 {
		node.Concurrency = n
	}
	for i := range node.Layers {
		setConcurrency(&node.Layers[i], n)
	}
}
