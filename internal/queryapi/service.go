// Package queryapi serves the read-side HTTP API: dataset discovery,
// filtered data pages, and inferred schemas.
package queryapi

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/wattmap-nz/wattmap/internal/api/v1"
	"github.com/wattmap-nz/wattmap/internal/registry"
	"github.com/wattmap-nz/wattmap/internal/repository"
)

const (
	defaultLimit = 1000
	maxLimit     = 10000
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid data query")

// reader is the repository surface the service needs. Satisfied by
// repository.Repository; tests substitute a stub.
type reader interface {
	Select(ctx context.Context, dataset string, q repository.Query) (*repository.Result, error)
	Schema(ctx context.Context, dataset string) ([]v1.ColumnSchema, error)
	Available(dataset string) bool
}

// Service implements the query layer over the dataset registry and the
// layer-file repository.
type Service struct {
	registry *registry.Registry
	repo     reader
}

func NewService(reg *registry.Registry, repo reader) *Service {
	return &Service{registry: reg, repo: repo}
}

// ListDatasets returns the registered datasets, optionally restricted to
// one layer.
func (s *Service) ListDatasets(layer string) (*v1.DatasetListResponse, error) {
	var l registry.Layer
	if layer != "" {
		parsed, err := registry.ParseLayer(layer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		l = parsed
	}

	descriptors := s.registry.List(l)
	resp := &v1.DatasetListResponse{Datasets: make([]v1.DatasetInfo, 0, len(descriptors))}
	for _, d := range descriptors {
		resp.Datasets = append(resp.Datasets, v1.DatasetInfo{Name: d.Name, Layer: string(d.Layer)})
	}
	resp.Count = len(resp.Datasets)
	return resp, nil
}

// DataRequest is one data-endpoint query after parameter parsing.
type DataRequest struct {
	Dataset string
	Filters []v1.Filter
	Columns []string
	Limit   int
	Offset  int
}

// QueryData returns one page of a dataset.
func (s *Service) QueryData(ctx context.Context, req DataRequest) (*v1.DataResponse, error) {
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit < 0 || req.Limit > maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, maxLimit)
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}
	for _, c := range req.Columns {
		if !v1.ValidColumnName(c) {
			return nil, fmt.Errorf("%w: invalid column name %q", ErrInvalidQuery, c)
		}
	}

	result, err := s.repo.Select(ctx, req.Dataset, repository.Query{
		Filters: req.Filters,
		Columns: req.Columns,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &v1.DataResponse{
		Dataset:   req.Dataset,
		Rows:      result.Rows,
		RowCount:  len(result.Rows),
		TotalRows: result.TotalRows,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}, nil
}

// DatasetSchema returns the column names and types of one dataset.
func (s *Service) DatasetSchema(ctx context.Context, dataset string) (*v1.SchemaResponse, error) {
	columns, err := s.repo.Schema(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return &v1.SchemaResponse{Dataset: dataset, Columns: columns}, nil
}

// DataReady reports whether every processed-layer dataset has a file on
// disk. The health endpoint exposes it.
func (s *Service) DataReady() bool {
	for _, d := range s.registry.List(registry.LayerProcessed) {
		if !s.repo.Available(d.Name) {
			return false
		}
	}
	return true
}
