package api

import (
	"github.com/starford/tracmark/internal/migrate"
)

// ConvertRequest is the request body for converting a markup fragment.
type ConvertRequest struct {
	Text string `json:"text" example:"== Setup ==\nSee #42" validate:"required"`
	Page string `json:"page,omitempty" example:"Dev/Setup"`
}

// Conversion is the converted page response (aliased from the domain layer).
type Conversion = migrate.Conversion

// PageListResponse wraps page name listings.
type PageListResponse struct {
	Pages []string `json:"pages" validate:"required"`
	Total int      `json:"total" example:"42" validate:"required"`
}

// StartRunRequest is the optional request body for starting a run.
type StartRunRequest struct {
	Page  string `json:"page,omitempty" example:"WikiStart"`
	Force bool   `json:"force,omitempty"`
}

// RunStatusResponse reports whether a run is in progress.
type RunStatusResponse struct {
	Running bool `json:"running"`
}

// RulesResponse lists the conversion passes in execution order.
type RulesResponse struct {
	Passes []string `json:"passes" validate:"required"`
}
