package pipeline

import (
	"context"

	"git.home.luguber.info/inful/neon/internal/buildcontext"
	"git.home.luguber.info/inful/neon/internal/config"
)

// FetchUnit materializes one named component's source tree under the base path.
type FetchUnit interface {
	Name() string
	Fetch(ctx context.Context, bc *buildcontext.Context, cfg *config.Config) error
}

// BuildDriver compiles the terminal component against already fetched dependencies.
type BuildDriver interface {
	Name() string
	Build(ctx context.Context, bc *buildcontext.Context, cfg *config.Config, deps DependencySet) (*Artifact, error)
}

// PublishTarget transmits or records the build artifact on one channel.
type PublishTarget interface {
	Name() string
	Publish(ctx context.Context, bc *buildcontext.Context, cfg *config.Config, artifact *Artifact) error
}

// Cleaner reclaims disk space once publishing finished.
type Cleaner interface {
	Clean(ctx context.Context, bc *buildcontext.Context, cfg *config.Config) error
}

// Dependent is implemented by fetch units and build drivers that depend on
// other components. Under the continue fetch policy a unit whose dependency
// failed is skipped; a build driver only receives the trees it names.
type Dependent interface {
	DependsOn() []string
}

// Artifact references the build output under the base path.
type Artifact struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Date       string `json:"date"`
	Revision   string `json:"revision"`
	InstallDir string `json:"install_dir"`
	Archive    string `json:"archive,omitempty"`
	Checksum   string `json:"checksum,omitempty"`
}

// DependencySet maps component names to their fetched source directories.
type DependencySet map[string]string

// Plan is the ordered set of capabilities for one run.
type Plan struct {
	FetchUnits []FetchUnit
	Builder    BuildDriver
	Publishers []PublishTarget
	Cleaner    Cleaner
}

// Planner turns a loaded configuration and the run's build context into a Plan.
type Planner interface {
	Plan(cfg *config.Config, bc *buildcontext.Context) (*Plan, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(cfg *config.Config, bc *buildcontext.Context) (*Plan, error)

func (f PlannerFunc) Plan(cfg *config.Config, bc *buildcontext.Context) (*Plan, error) {
	return f(cfg, bc)
}

// StaticPlan returns a Planner that always yields p.
func StaticPlan(p *Plan) Planner {
	return PlannerFunc(func(*config.Config, *buildcontext.Context) (*Plan, error) { return p, nil })
}
