package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/ppiankov/gstgraph/internal/logger"
	"github.com/ppiankov/gstgraph/internal/model"
)

// ErrDisabled is returned when the export target is not configured
var ErrDisabled = errors.New("neo4j export is disabled")

const (
	constraintQuery = `CREATE CONSTRAINT taxpayer_id IF NOT EXISTS FOR (t:Taxpayer) REQUIRE t.id IS UNIQUE`

	nodeQuery = `UNWIND $rows AS row
MERGE (t:Taxpayer {id: row.id})
SET t.legal_name = row.legal_name,
    t.jurisdiction = row.jurisdiction,
    t.status = row.status,
    t.unknown = row.unknown,
    t.pagerank = row.pagerank,
    t.risk_score = row.risk_score,
    t.risk_level = row.risk_level,
    t.mastermind = row.mastermind,
    t.snapshot = $fingerprint`

	edgeQuery = `UNWIND $rows AS row
MATCH (s:Taxpayer {id: row.from})
MATCH (r:Taxpayer {id: row.to})
MERGE (s)-[i:INVOICE {invoice_id: row.invoice_id, source: row.source}]->(r)
SET i.value = row.value,
    i.tax_amount = row.tax_amount,
    i.date = row.date,
    i.is_risk = row.is_risk,
    i.is_mismatched = row.is_mismatched,
    i.snapshot = $fingerprint`

	snapshotQuery = `MERGE (s:Snapshot {fingerprint: $fingerprint})
SET s.version = $version, s.nodes = $nodes, s.edges = $edges, s.patterns = $patterns, s.alerts = $alerts`
)

// Executor runs write queries against a graph database
type Executor interface {
	ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	Close(ctx context.Context) error
}

// DriverExecutor executes queries through the official Neo4j driver
type DriverExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewDriverExecutor connects to Neo4j and verifies connectivity
func NewDriverExecutor(ctx context.Context, cfg model.Neo4jConfig) (*DriverExecutor, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity: %w", err)
	}
	return &DriverExecutor{driver: driver, database: cfg.Database}, nil
}

// ExecuteWriteQuery runs cypher on a writer and returns all records
func (e *DriverExecutor) ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithWritersRouting()}
	if e.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(e.database))
	}
	res, err := neo4j.ExecuteQuery(ctx, e.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Close releases the driver
func (e *DriverExecutor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// ExportStats counts what one export wrote
type ExportStats struct {
	Nodes   int
	Edges   int
	Batches int
}

// Neo4jSink writes snapshot graphs as (:Taxpayer)-[:INVOICE]->(:Taxpayer)
type Neo4jSink struct {
	exec      Executor
	batchSize int
}

// NewNeo4jSink creates a sink; batchSize bounds the rows sent per UNWIND
func NewNeo4jSink(exec Executor, batchSize int) *Neo4jSink {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Neo4jSink{exec: exec, batchSize: batchSize}
}

// Export merges every node and edge of snap. Re-exporting the same snapshot is idempotent.
func (s *Neo4jSink) Export(ctx context.Context, snap *model.Snapshot) (ExportStats, error) {
	var stats ExportStats

	if _, err := s.exec.ExecuteWriteQuery(ctx, constraintQuery, nil); err != nil {
		return stats, fmt.Errorf("create constraint: %w", err)
	}

	nodes := make([]map[string]any, 0, len(snap.Graph.Nodes))
	for _, n := range snap.Graph.Nodes {
		nodes = append(nodes, nodeRow(n))
	}
	batches, err := s.writeBatches(ctx, nodeQuery, snap.Fingerprint, nodes)
	stats.Batches += batches
	if err != nil {
		return stats, fmt.Errorf("write taxpayers: %w", err)
	}
	stats.Nodes = len(nodes)

	edges := make([]map[string]any, 0, len(snap.Graph.Edges))
	for _, e := range snap.Graph.Edges {
		edges = append(edges, edgeRow(e))
	}
	batches, err = s.writeBatches(ctx, edgeQuery, snap.Fingerprint, edges)
	stats.Batches += batches
	if err != nil {
		return stats, fmt.Errorf("write invoices: %w", err)
	}
	stats.Edges = len(edges)

	_, err = s.exec.ExecuteWriteQuery(ctx, snapshotQuery, map[string]any{
		"fingerprint": snap.Fingerprint,
		"version":     int64(snap.Version),
		"nodes":       int64(stats.Nodes),
		"edges":       int64(stats.Edges),
		"patterns":    int64(len(snap.Patterns.Patterns)),
		"alerts":      int64(len(snap.Alerts)),
	})
	if err != nil {
		return stats, fmt.Errorf("write snapshot: %w", err)
	}

	logger.Info("exported snapshot to neo4j",
		zap.Uint64("version", snap.Version),
		zap.Int("nodes", stats.Nodes),
		zap.Int("edges", stats.Edges),
		zap.Int("batches", stats.Batches))
	return stats, nil
}

func (s *Neo4jSink) writeBatches(ctx context.Context, cypher, fingerprint string, rows []map[string]any) (int, error) {
	batches := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		params := map[string]any{
			"rows":        toAny(rows[start:end]),
			"fingerprint": fingerprint,
		}
		if _, err := s.exec.ExecuteWriteQuery(ctx, cypher, params); err != nil {
			return batches, fmt.Errorf("batch %d: %w", batches, err)
		}
		batches++
	}
	return batches, nil
}

// toAny converts rows to the []any shape the driver accepts as a list parameter
func toAny(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func nodeRow(n model.NodeView) map[string]any {
	return map[string]any{
		"id":           n.ID,
		"legal_name":   n.LegalName,
		"jurisdiction": n.Jurisdiction,
		"status":       n.Status,
		"unknown":      n.Unknown,
		"pagerank":     n.PageRank,
		"risk_score":   n.RiskScore,
		"risk_level":   string(n.RiskLevel),
		"mastermind":   n.Mastermind,
	}
}

func edgeRow(e model.EdgeView) map[string]any {
	return map[string]any{
		"from":          e.From,
		"to":            e.To,
		"invoice_id":    e.InvoiceID,
		"source":        string(e.Source),
		"value":         e.Value,
		"tax_amount":    e.TaxAmount,
		"date":          e.Date,
		"is_risk":       e.IsRisk,
		"is_mismatched": e.IsMismatched,
	}
}
