package ports

import (
	"context"

	"go.trai.ch/tint/internal/core/domain"
)

// Compiler defines the interface for compiling a stylesheet entry point to
// its output. The graph core never compiles anything itself; implementations
// typically shell out to an external compiler.
//
//go:generate mockgen -source=compiler.go -destination=mocks/mock_compiler.go -package=mocks
type Compiler interface {
	// Compile compiles entry.Source into entry.Output using the command and
	// environment from cfg. Paths resolve against cfg.Root.
	Compile(ctx context.Context, cfg *domain.Config, entry domain.Entry) error
}
