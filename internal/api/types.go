package api

import "github.com/samcharles93/layerstack/internal/tensor"

type ApplyRequest struct {
	Inputs []tensor.Array `json:"inputs"`
	Store  *bool          `json:"store,omitempty"`
}

type ApplyResponse struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	CreatedAt int64          `json:"created_at"`
	Model     string         `json:"model"`
	Outputs   []tensor.Array `json:"outputs"`
}

type ModelResponse struct {
	Object      string             `json:"object"`
	Name        string             `json:"name"`
	NIn         int                `json:"n_in"`
	NOut        int                `json:"n_out"`
	Inputs      []tensor.Signature `json:"inputs"`
	Outputs     []tensor.Signature `json:"outputs"`
	Description string             `json:"description"`
	NumParams   int                `json:"num_params"`
}

type DeleteApplyResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}
