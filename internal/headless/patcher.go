// Package headless neutralizes plugin methods that assume interactive
// viewport state exists.
//
// Some LU Toolbox operators read viewport shading unconditionally; without a
// UI that state is absent and the call raises. The patcher keeps an explicit
// registration table of (plugin module, method) targets and asks the host to
// install a wrapper per target, instead of mutating plugin types ad hoc.
//
// Two strategies exist and they are not equivalent. Wrap substitutes a
// minimal synthetic viewport (color mode, scene-lights toggle, scene-world
// toggle) and delegates, so the original logic still runs and vertex colors
// are still computed. Stub replaces the method with a logged no-op and loses
// those side effects. Wrap is the default.
package headless

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"brickforge/internal/host"
	"brickforge/internal/logging"
)

// Strategy selects how a patched method behaves.
type Strategy string

const (
	StrategyWrap Strategy = "wrap"
	StrategyStub Strategy = "stub"
)

// ParseStrategy validates a strategy string.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyWrap, "":
		return StrategyWrap, nil
	case StrategyStub:
		return StrategyStub, nil
	default:
		return "", fmt.Errorf("unknown patch strategy %q", value)
	}
}

// Target is one registration table entry: a plugin module and the method
// names patched on its action-handler classes.
type Target struct {
	Module  string
	Methods []string
}

// DefaultTargets is the fixed allow-list of viewport-dependent methods.
func DefaultTargets() []Target {
	return []Target{
		{
			Module: "lu_toolbox.process_model",
			Methods: []string{
				"apply_vertex_colors",
				"set_viewport_to_vertex_color",
				"ensure_viewport_settings",
			},
		},
	}
}

// PluginHost is the plugin surface the patcher needs from the host.
type PluginHost interface {
	ActionHandlers(ctx context.Context, module string, methods []string) ([]host.Handler, error)
	InstallWrapper(ctx context.Context, module, class, method, mode string) error
}

// Patcher installs headless wrappers once per worker, before Import.
type Patcher struct {
	host     PluginHost
	strategy Strategy
	targets  []Target
	logger   *slog.Logger
	applied  bool
}

// NewPatcher constructs a patcher over the default target table.
func NewPatcher(pluginHost PluginHost, strategy Strategy, logger *slog.Logger) *Patcher {
	return &Patcher{
		host:     pluginHost,
		strategy: strategy,
		targets:  DefaultTargets(),
		logger:   logging.NewComponentLogger(logger, "headless"),
	}
}

// Apply walks the registration table and installs one wrapper per
// (class, method) pair the plugin actually defines. Returns the number of
// methods patched. A missing plugin module yields zero patched, never an
// error; repeated calls are no-ops.
func (p *Patcher) Apply(ctx context.Context) int {
	if p.applied {
		return 0
	}
	p.applied = true

	patched := 0
	for _, target := range p.targets {
		handlers, err := p.host.ActionHandlers(ctx, target.Module, target.Methods)
		if err != nil {
			p.logger.Warn("cannot inspect plugin module; skipping patch",
				logging.String("module", target.Module), logging.Error(err))
			continue
		}
		for _, handler := range handlers {
			for _, method := range handler.Methods {
				if !contains(target.Methods, method) {
					continue
				}
				err := p.host.InstallWrapper(ctx, target.Module, handler.Class, method, string(p.strategy))
				if err != nil {
					p.logger.Warn("wrapper installation failed",
						logging.String("class", handler.Class),
						logging.String("method", method),
						logging.Error(err))
					continue
				}
				p.logger.Debug("patched plugin method",
					logging.String("class", handler.Class),
					logging.String("method", method),
					logging.String("strategy", string(p.strategy)))
				patched++
			}
		}
	}

	if patched > 0 {
		p.logger.Info("viewport methods patched for headless run",
			logging.Int("count", patched),
			logging.String("strategy", string(p.strategy)))
	} else {
		p.logger.Info("no plugin methods patched")
	}
	return patched
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
