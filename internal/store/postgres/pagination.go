package postgres

import (
	"fmt"

	"github.com/foresightlabs/foresight/internal/domain"
)

// applyPagination appends LIMIT/OFFSET clauses for the given options.
func applyPagination(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// applyWindow appends created_at range predicates for the given options.
// join is "AND" when the query already has a WHERE clause, "WHERE" otherwise.
func applyWindow(query string, args []any, join string, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" %s created_at >= $%d", join, len(args))
		join = "AND"
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" %s created_at < $%d", join, len(args))
	}
	return query, args
}
