package history

import (
	"io"
	"strings"
)

// A sink that can be closed when the daemon shuts down.
type CloserSink interface {
	Sink
	io.Closer
}

// NewSinkFromDSN selects a sink by DSN scheme:
//
//	clickhouse://...          ClickHouse native protocol
//	opensearch://host/index   OpenSearch HTTP indexing
//	postgres://...            Postgres via pgx
//	sqlite:///path, bare path SQLite file (or :memory:)
func NewSinkFromDSN(dsn string) (CloserSink, error) {
	ld := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(ld, "clickhouse://"):
		return NewClickHouseSink(dsn)
	case strings.HasPrefix(ld, "opensearch://"), strings.HasPrefix(ld, "opensearchs://"):
		return NewOpenSearchSink(dsn)
	default:
		return NewSQLSink(dsn)
	}
}
