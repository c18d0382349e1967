package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
)

type Server struct {
	store   *ApplyStore
	service *ModelService
	clock   func() time.Time
}

func NewServer(store *ApplyStore, service *ModelService) *Server {
	if store == nil {
		store = NewApplyStore(0)
	}
	return &Server{
		store:   store,
		service: service,
		clock:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/apply", s.handleApply)
	e.GET("/v1/apply/:id", s.handleGetApply)
	e.DELETE("/v1/apply/:id", s.handleDeleteApply)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "model service not configured", "", "")
	}
	return c.JSON(http.StatusOK, s.service.Info())
}

func (s *Server) handleApply(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "model service not configured", "", "")
	}
	req, err := decodeJSON[ApplyRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Inputs) == 0 {
		return writeBadRequest(c, "inputs is required")
	}

	name, outputs, err := s.service.Apply(c.Request().Context(), req.Inputs)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	resp := ApplyResponse{
		ID:        newApplyID(),
		Object:    "apply",
		CreatedAt: s.clock().Unix(),
		Model:     name,
		Outputs:   outputs,
	}
	if req.Store == nil || *req.Store {
		s.store.Save(resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetApply(c *echo.Context) error {
	resp, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "apply result not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteApply(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "apply result not found")
	}
	return c.JSON(http.StatusOK, DeleteApplyResp{
		ID:      id,
		Object:  "apply",
		Deleted: true,
	})
}
