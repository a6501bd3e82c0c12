// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/tint/internal/adapters/config"
	_ "go.trai.ch/tint/internal/adapters/logger"
	_ "go.trai.ch/tint/internal/adapters/shell"
	_ "go.trai.ch/tint/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/tint/internal/app"
)
