package models

import (
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/pipeline"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
	Modified  bool   `json:"modified" doc:"Built from a tree with uncommitted changes"`
}

type VersionResponse struct {
	Body VersionData
}

// Run status models
type StatusResponse struct {
	Body pipeline.Status
}

// Pause models
type PauseData struct {
	Paused  bool `json:"paused" doc:"Whether the pipeline is paused after the request"`
	Changed bool `json:"changed" doc:"Whether the request changed the pause state"`
}

type PauseResponse struct {
	Body PauseData
}

// Log models
type LogsRequest struct {
	Lines  int    `query:"lines" default:"100" minimum:"1" maximum:"10000" doc:"Number of most recent log entries"`
	Module string `query:"module" example:"encoder" doc:"Only entries of this module"`
}

type LogsData struct {
	Entries []events.LogEntryEvent `json:"entries" doc:"Log entries, oldest first"`
	Lines   []string               `json:"lines" doc:"Entries formatted as text"`
	Count   int                    `json:"count" example:"100" doc:"Number of returned entries"`
}

type LogsResponse struct {
	Body LogsData
}
