package queryapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	v1 "github.com/wattmap-nz/wattmap/internal/api/v1"
	httperr "github.com/wattmap-nz/wattmap/internal/core/errors"
	"github.com/wattmap-nz/wattmap/internal/registry"
	"github.com/wattmap-nz/wattmap/internal/repository"
)

// RegisterRoutes registers all query API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/datasets", s.HandleListDatasets)
	r.GET("/v1/datasets/:dataset/schema", s.HandleDatasetSchema)
	r.GET("/v1/data/:dataset", s.HandleQueryData)
}

// HandleListDatasets handles GET /v1/datasets
// Query parameters: layer (processed | metrics)
func (s *Service) HandleListDatasets(c *gin.Context) {
	resp, err := s.ListDatasets(c.Query("layer"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid dataset listing",
			Details:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleQueryData handles GET /v1/data/:dataset
// Query parameters: filter (JSON array), columns (comma-separated), limit, offset
func (s *Service) HandleQueryData(c *gin.Context) {
	filters, err := v1.ParseFilters(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidFilterError,
			Message:   "Invalid filter parameter",
			Details:   err.Error(),
		})
		return
	}

	limit, err := intQuery(c, "limit")
	if err != nil {
		s.writeQueryError(c, err)
		return
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		s.writeQueryError(c, err)
		return
	}

	var columns []string
	if raw := c.Query("columns"); raw != "" {
		columns = strings.Split(raw, ",")
	}

	resp, err := s.QueryData(c.Request.Context(), DataRequest{
		Dataset: c.Param("dataset"),
		Filters: filters,
		Columns: columns,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDatasetSchema handles GET /v1/datasets/:dataset/schema
func (s *Service) HandleDatasetSchema(c *gin.Context) {
	resp, err := s.DatasetSchema(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		s.writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeQueryError maps service errors onto the API's error contract.
// Engine failures are logged with their cause but never leak it to the
// client.
func (s *Service) writeQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid data query",
			Details:   err.Error(),
		})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpDatasetNotFoundError,
			Message:   "Unknown dataset",
			Details:   err.Error(),
		})
	case errors.Is(err, repository.ErrDatasetFileMissing):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpDataUnavailableError,
			Message:   "Dataset has not been produced yet; run the pipeline first",
			Details:   err.Error(),
		})
	default:
		slog.Error("Data query failed", "path", c.FullPath(), "dataset", c.Param("dataset"), "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query dataset",
		})
	}
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(ErrInvalidQuery, err)
	}
	return n, nil
}
