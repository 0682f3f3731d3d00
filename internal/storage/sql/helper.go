package sql

import (
	"fmt"
	"strings"

	"github.com/gametester/runctl/internal/storage/sql/schemas"
)

// SQLite: use ? placeholders
const SQLITE_UPSERT_RUN_STATEMENT = `INSERT INTO runs (run_id, state, submitted_at, entity) VALUES (?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET state = excluded.state, entity = excluded.entity, updated_at = CURRENT_TIMESTAMP;`

// PostgreSQL: use $1, $2 placeholders
const POSTGRES_UPSERT_RUN_STATEMENT = `INSERT INTO runs (run_id, state, submitted_at, entity) VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id) DO UPDATE SET state = excluded.state, entity = excluded.entity, updated_at = CURRENT_TIMESTAMP;`

func getUnsupportedDriverError(driver string) error {
	return fmt.Errorf("unsupported driver: %s", driver)
}

func schemasForDriver(driver string) (string, error) {
	switch driver {
	case SQLITE_DRIVER:
		return schemas.SQLITE_SCHEMA, nil
	case POSTGRES_DRIVER:
		return schemas.POSTGRES_SCHEMA, nil
	default:
		return "", getUnsupportedDriverError(driver)
	}
}

func createUpsertRunStatement(driver string) (string, error) {
	switch driver {
	case POSTGRES_DRIVER:
		return POSTGRES_UPSERT_RUN_STATEMENT, nil
	case SQLITE_DRIVER:
		return SQLITE_UPSERT_RUN_STATEMENT, nil
	default:
		return "", getUnsupportedDriverError(driver)
	}
}

// quoteIdentifier properly quotes an identifier for the given driver
func quoteIdentifier(_ /*driver*/ string, identifier string) string {
	// Escape double quotes by doubling them
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

// placeholder returns the n-th (1 based) bind parameter of the driver
func placeholder(driver string, n int) string {
	if driver == POSTGRES_DRIVER {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// createGetEntityStatement returns a driver-specific SELECT statement
// to retrieve an entity by ID
func createGetEntityStatement(driver, tableName string) (string, error) {
	if err := checkDriver(driver); err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT run_id, state, entity FROM %s WHERE run_id = %s;`, quoteIdentifier(driver, tableName), placeholder(driver, 1)), nil
}

// createDeleteEntityStatement returns a driver-specific DELETE statement
// to delete an entity by ID
func createDeleteEntityStatement(driver, tableName string) (string, error) {
	if err := checkDriver(driver); err != nil {
		return "", err
	}
	return fmt.Sprintf(`DELETE FROM %s WHERE run_id = %s;`, quoteIdentifier(driver, tableName), placeholder(driver, 1)), nil
}

// createCountEntitiesStatement returns a driver-specific COUNT statement
// to count total entities in the table, optionally filtered by state
func createCountEntitiesStatement(driver, tableName string, stateFilter string) (string, []any, error) {
	if err := checkDriver(driver); err != nil {
		return "", nil, err
	}
	quotedTable := quoteIdentifier(driver, tableName)
	if stateFilter != "" {
		return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE state = %s;`, quotedTable, placeholder(driver, 1)), []any{stateFilter}, nil
	}
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s;`, quotedTable), nil, nil
}

// createListEntitiesStatement returns a driver-specific SELECT statement
// to list entities with pagination (LIMIT and OFFSET), optionally filtered by
// state. The most recently submitted runs come first.
func createListEntitiesStatement(driver, tableName string, limit, offset int, stateFilter string) (string, []any, error) {
	if err := checkDriver(driver); err != nil {
		return "", nil, err
	}
	quotedTable := quoteIdentifier(driver, tableName)
	if stateFilter != "" {
		query := fmt.Sprintf(`SELECT run_id, state, entity FROM %s WHERE state = %s ORDER BY submitted_at DESC, run_id LIMIT %s OFFSET %s;`,
			quotedTable, placeholder(driver, 1), placeholder(driver, 2), placeholder(driver, 3))
		return query, []any{stateFilter, limit, offset}, nil
	}
	query := fmt.Sprintf(`SELECT run_id, state, entity FROM %s ORDER BY submitted_at DESC, run_id LIMIT %s OFFSET %s;`,
		quotedTable, placeholder(driver, 1), placeholder(driver, 2))
	return query, []any{limit, offset}, nil
}

func checkDriver(driver string) error {
	switch driver {
	case SQLITE_DRIVER, POSTGRES_DRIVER:
		return nil
	default:
		return getUnsupportedDriverError(driver)
	}
}
