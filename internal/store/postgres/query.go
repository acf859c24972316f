package postgres

import (
	"fmt"
	"strings"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// rowScanner is the Scan half of pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// listQuery appends the ListOpts filters on timeCol to base, newest first.
func listQuery(base, timeCol string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(" WHERE 1=1")
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		b.WriteString(" AND " + timeCol + " >= " + next(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND " + timeCol + " <= " + next(*opts.Until))
	}
	b.WriteString(" ORDER BY " + timeCol + " DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + next(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + next(opts.Offset))
	}
	return b.String(), args
}
