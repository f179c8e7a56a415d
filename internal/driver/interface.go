// Package driver projects the topic co-occurrence graph into an external
// graph database for exploration tooling. The projection is a mirror: the
// typed store stays the source of truth and mirror failures never fail an
// ingestion run.
package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
