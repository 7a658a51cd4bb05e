package script

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DataSource is the database handle passed to template scripts as their
// second argument. Scripts see it as a value with fetch_all, fetch_one and execute.
type DataSource struct {
	db *sql.DB
}

// NewDataSource opens driver ("postgres" or "sqlserver") with dsn. An empty dsn
// yields an unconfigured data source whose calls fail.
func NewDataSource(driver, dsn string) (*DataSource, error) {
	if dsn == "" {
		return &DataSource{}, nil
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}

	return &DataSource{db: db}, nil
}

// NewDataSourceFromDB wraps an already opened database.
func NewDataSourceFromDB(db *sql.DB) *DataSource {
	return &DataSource{db: db}
}

func (d *DataSource) Configured() bool {
	return d != nil && d.db != nil
}

func (d *DataSource) Close() error {
	if !d.Configured() {
		return nil
	}

	return d.db.Close()
}

// FetchAll runs query and returns every row as a column-name keyed map.
func (d *DataSource) FetchAll(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	if !d.Configured() {
		return nil, ErrDataSourceUnconfigured
	}

	rows, err := d.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))

		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				row[column] = string(raw)

				continue
			}

			row[column] = values[i]
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// Execute runs a statement and returns the number of affected rows.
func (d *DataSource) Execute(ctx context.Context, query string, params ...any) (int64, error) {
	if !d.Configured() {
		return 0, ErrDataSourceUnconfigured
	}

	res, err := d.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}

	return res.RowsAffected()
}

// Bind returns the script-facing value of the data source with queries bound to ctx.
func (d *DataSource) Bind(ctx context.Context) starlark.Value {
	return &starlarkstruct.Module{
		Name: "db",
		Members: starlark.StringDict{
			"fetch_all": starlark.NewBuiltin("db.fetch_all", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				query, params, err := unpackQuery(b, args, kwargs)
				if err != nil {
					return nil, err
				}

				rows, err := d.FetchAll(ctx, query, params...)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", b.Name(), err)
				}

				return ToStarlark(rows)
			}),
			"fetch_one": starlark.NewBuiltin("db.fetch_one", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				query, params, err := unpackQuery(b, args, kwargs)
				if err != nil {
					return nil, err
				}

				rows, err := d.FetchAll(ctx, query, params...)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", b.Name(), err)
				}

				if len(rows) == 0 {
					return starlark.None, nil
				}

				return ToStarlark(rows[0])
			}),
			"execute": starlark.NewBuiltin("db.execute", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				query, params, err := unpackQuery(b, args, kwargs)
				if err != nil {
					return nil, err
				}

				affected, err := d.Execute(ctx, query, params...)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", b.Name(), err)
				}

				return starlark.MakeInt64(affected), nil
			}),
		},
	}
}

func unpackQuery(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (string, []any, error) {
	var (
		query  string
		params starlark.Value = starlark.None
	)

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "sql", &query, "params?", &params); err != nil {
		return "", nil, err
	}

	if params == starlark.None {
		return query, nil, nil
	}

	converted, err := FromStarlark(params)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	list, ok := converted.([]any)
	if !ok {
		return "", nil, fmt.Errorf("%s: params must be a list or tuple", b.Name())
	}

	return query, list, nil
}
