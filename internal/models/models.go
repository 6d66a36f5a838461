package models

import (
	"time"
)

// DomainEntry is one probed host and its current status.
type DomainEntry struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// ServiceGroup holds the ordered domains that belong to one service.
type ServiceGroup struct {
	Name    string        `json:"name"`
	Domains []DomainEntry `json:"domains"`
}

// Category groups services, e.g. "Advertising" or "Analytics".
type Category struct {
	Name     string         `json:"name"`
	Services []ServiceGroup `json:"services"`
}

// RunState captures progress of the current (or last) run.
type RunState struct {
	ID          string    `json:"id,omitempty"`
	Generation  uint64    `json:"generation"`
	Phase       Phase     `json:"phase"`
	Total       int       `json:"total"`
	TestedSoFar int       `json:"tested_so_far"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Metrics is the run-level projection of a catalog snapshot.
type Metrics struct {
	Total             int `json:"total"`
	Tested            int `json:"tested"`
	Blocked           int `json:"blocked"`
	Reachable         int `json:"reachable"`
	Pending           int `json:"pending"`
	BlockedPercentage int `json:"blocked_percentage"`
}

// DomainResult is a flattened (category, service, domain) status row.
type DomainResult struct {
	Category string `json:"category"`
	Service  string `json:"service"`
	Domain   string `json:"domain"`
	Status   Status `json:"status"`
}

// RunRecord stores the results of a finished run.
type RunRecord struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Metrics    Metrics        `json:"metrics"`
	Results    []DomainResult `json:"results"`
}
