// Package models defines the JSON request/response envelopes for the HTTP
// surface (cmd/drweb-server): a success/error envelope wrapping one query
// evaluation's record tree, diagnostics, and timing.
package models

import (
	"encoding/json"

	"github.com/starlitlog/dr-web-engine/query"
)

// QueryRequest is the payload for POST /api/v1/query. Document carries the
// query itself (start_url/steps/pagination/pre_actions) exactly as
// queryfile.DecodeJSON expects it; Strict and WebhookURL are HTTP-level
// options that sit outside the document's own schema.
type QueryRequest struct {
	Document   json.RawMessage `json:"query"`
	Strict     bool            `json:"strict,omitempty"`
	WebhookURL string          `json:"webhook_url,omitempty"`
}

// QueryResponse is the response for POST /api/v1/query and each element of
// a POST /api/v1/query/batch response.
type QueryResponse struct {
	Success     bool               `json:"success"`
	Records     any                `json:"records,omitempty"`
	Diagnostics []query.Diagnostic `json:"diagnostics,omitempty"`
	DurationMS  int64              `json:"duration_ms"`
	DriverUsed  string             `json:"driver_used,omitempty"`
	Error       *ErrorDetail       `json:"error,omitempty"`
}

// BatchRequest is the payload for POST /api/v1/query/batch: one document
// template evaluated once per entry in StartURLs, each run overriding the
// template's own start_url.
type BatchRequest struct {
	StartURLs []string        `json:"start_urls"`
	Document  json.RawMessage `json:"query"`
	Strict    bool            `json:"strict,omitempty"`
}

// BatchResponse reports one QueryResponse per requested start URL, in the
// same order they were submitted.
type BatchResponse struct {
	Results []QueryResponse `json:"results"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the shared browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
