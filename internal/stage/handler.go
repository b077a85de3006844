// Package stage defines the contract shared by pipeline steps. The
// controller sequences handlers; the doctor command aggregates their
// health checks.
package stage

import (
	"context"

	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

// Handler describes the contract the pipeline controller needs from each
// step. Prepare validates preconditions (inputs present, disk space,
// credentials) without side effects on artifacts; Execute performs the
// step against the entity workspace.
type Handler interface {
	Name() string
	Prepare(context.Context, *workspace.Handle) error
	Execute(context.Context, *workspace.Handle) error
	HealthCheck(context.Context) Health
}
