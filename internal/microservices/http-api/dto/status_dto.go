package dto

import (
	"robotbridge/internal/executor"
	"robotbridge/internal/journal"
	"robotbridge/internal/microservices/tcp"
)

// DTOs for the read-only status API

type CommandsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LogAttached   bool   `json:"log_attached"`
}

type SessionsResponse struct {
	Count    int               `json:"count"`
	Sessions []tcp.SessionInfo `json:"sessions"`
}

type QueueResponse struct {
	Depth    int            `json:"depth"`
	Consumer executor.Stats `json:"consumer"`
}

type CommandsResponse struct {
	Count    int              `json:"count"`
	Commands []journal.Record `json:"commands"`
}
