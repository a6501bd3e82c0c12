// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/tint/internal/core/domain"

// ConfigLoader defines the interface for loading the tint configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load walks up from cwd to find tint.yaml and returns the resolved
	// configuration.
	Load(cwd string) (*domain.Config, error)
}
