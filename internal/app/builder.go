package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/tint/internal/adapters/config"
	"go.trai.ch/tint/internal/adapters/logger"
	"go.trai.ch/tint/internal/adapters/shell"
	"go.trai.ch/tint/internal/adapters/watcher"
	"go.trai.ch/tint/internal/core/ports"
)

// Components bundles the fully wired application entry points.
type Components struct {
	App    *App
	Logger ports.Logger
}

// NodeID is the unique identifier for the application components Graft node.
const NodeID graft.ID = "app.components"

func init() {
	graft.Register(graft.Node[*Components]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			shell.NodeID,
			watcher.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			compiler, err := graft.Dep[ports.Compiler](ctx)
			if err != nil {
				return nil, err
			}
			w, err := graft.Dep[ports.Watcher](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{
				App:    New(loader, compiler, w, log),
				Logger: log,
			}, nil
		},
	})
}
