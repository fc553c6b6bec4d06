package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// TimescaleSink archives readings into a (hyper)table keyed by
// session, channel and sequence.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(ctx context.Context, readings []*domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (session_id, channel, ts, seq, value, transform_ver) VALUES ")

	args := make([]any, 0, len(readings)*6)
	for i, r := range readings {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args,
			r.Session,
			r.Channel,
			r.Timestamp,
			r.Seq,
			r.Value,
			r.TransformVer,
		)
	}

	// replays after a crash hit the unique key and are skipped
	b.WriteString(" ON CONFLICT (session_id, channel, seq) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

var _ ports.Sink = (*TimescaleSink)(nil)
