package api

import (
	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/projection"
	"github.com/starford/mediabin/internal/session"
)

// Asset is a catalogued asset (aliased from the domain layer).
type Asset = models.Asset

// AssetListResponse wraps the catalog in insertion order.
type AssetListResponse struct {
	Assets []Asset `json:"assets" validate:"required"`
	Total  int     `json:"total" example:"42" validate:"required"`
}

// UpdateAssetRequest edits the title and/or tags of an asset. Absent fields
// are left unchanged.
type UpdateAssetRequest struct {
	Title *string `json:"title,omitempty" example:"Opening shot"`
	Tags  *string `json:"tags,omitempty" example:"beach summer"`
}

// ThumbnailResponse is the resolved preview of an asset.
type ThumbnailResponse struct {
	Location  string `json:"location,omitempty" example:"/var/cache/mediabin/thumbs/3f1c/1.png"`
	Available bool   `json:"available"`
}

// ImportRequest queues files or directories for import.
type ImportRequest struct {
	Paths []string         `json:"paths" validate:"required"`
	Quiet bool             `json:"quiet"`
	Hint  *models.Sequence `json:"hint,omitempty"`
	// Wait blocks until the job finishes and responds with its final status.
	Wait bool `json:"wait"`
}

// ImportJob is the status of one import job (aliased from the domain layer).
type ImportJob = session.JobStatus

// ImportReport is the summary of a finished job (aliased from the domain layer).
type ImportReport = catalog.Report

// ImportListResponse wraps known import jobs.
type ImportListResponse struct {
	Imports []ImportJob `json:"imports" validate:"required"`
}

// CancelResponse reports how many jobs were cancelled.
type CancelResponse struct {
	Cancelled int `json:"cancelled" example:"1"`
}

// ViewResponse is the visible projection (aliased from the domain layer).
type ViewResponse = session.ViewState

// FilterRequest sets both filter axes. Type "" shows all media types; Fixed
// matches Text literally instead of as a regular expression.
type FilterRequest struct {
	Type  string `json:"type" example:"video"`
	Text  string `json:"text" example:"beach"`
	Fixed bool   `json:"fixed"`
}

// SortRequest orders the view. Column is a column key or header; "" restores
// catalog order.
type SortRequest struct {
	Column     string `json:"column" example:"name"`
	Descending bool   `json:"descending"`
}

// CellRequest edits one visible cell.
type CellRequest struct {
	Row    int    `json:"row" example:"0"`
	Column string `json:"column" example:"tags" validate:"required"`
	Value  string `json:"value" example:"beach"`
}

// ExportRequest lists the selected cells.
type ExportRequest struct {
	Indices []projection.Index `json:"indices" validate:"required"`
}

// Selection is the drag payload of a selection (aliased from the domain layer).
type Selection = projection.Selection

// ColumnsResponse describes the row layout.
type ColumnsResponse struct {
	Columns []projection.Field `json:"columns" validate:"required"`
}

// ProjectStatus summarises the session (aliased from the domain layer).
type ProjectStatus = session.Status
