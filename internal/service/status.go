package service

import (
	"github.com/dalfonso89/travel-assistant-api/internal/config"
)

// ProviderStatus represents the status of a provider
type ProviderStatus struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"`
}

// ProviderStatuses reports configured upstreams in priority order
func ProviderStatuses(configuration *config.Config) []ProviderStatus {
	statuses := make([]ProviderStatus, len(configuration.Providers))
	for i, provider := range configuration.Providers {
		statuses[i] = ProviderStatus{
			Name:     provider.Name,
			Enabled:  provider.Enabled,
			Priority: provider.Priority,
		}
	}
	return statuses
}
