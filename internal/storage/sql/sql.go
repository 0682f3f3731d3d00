package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"

	// import the postgres driver - "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
	// import the sqlite driver - "sqlite"
	_ "modernc.org/sqlite"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

const (
	// These are the only drivers currently supported
	SQLITE_DRIVER   = "sqlite"
	POSTGRES_DRIVER = "pgx"

	TABLE_RUNS = "runs"
)

type SQLStorage struct {
	sqlConfig *SQLDatabaseConfig
	pool      *sql.DB
	logger    *slog.Logger
	ctx       context.Context
}

func NewStorage(config map[string]any, logger *slog.Logger) (abstractions.RunStore, error) {
	var sqlConfig SQLDatabaseConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &sqlConfig,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	if err := sqlConfig.validate(); err != nil {
		return nil, err
	}

	logger.Info("Creating SQL storage", "driver", sqlConfig.Driver, "url", sqlConfig.URL)

	pool, err := otelsql.Open(sqlConfig.Driver, sqlConfig.URL, sqlConfig.telemetryOptions()...)
	if err != nil {
		return nil, err
	}
	sqlConfig.applyPoolLimits(pool)

	storage := &SQLStorage{
		sqlConfig: &sqlConfig,
		pool:      pool,
		logger:    logger,
		ctx:       context.Background(),
	}

	// ping the database to verify the DSN provided by the user is valid and the server is accessible
	logger.Info("Pinging SQL storage", "driver", sqlConfig.Driver, "url", sqlConfig.URL)
	err = storage.Ping(sqlConfig.pingTimeout())
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	// ensure the schemas are created
	logger.Info("Ensuring schemas are created", "driver", sqlConfig.Driver, "url", sqlConfig.URL)
	if err := storage.ensureSchema(); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLStorage) WithLogger(logger *slog.Logger) abstractions.RunStore {
	c := *s
	c.logger = logger
	return &c
}

func (s *SQLStorage) WithContext(ctx context.Context) abstractions.RunStore {
	c := *s
	c.ctx = ctx
	return &c
}

// Ping the database to verify DSN provided by the user is valid and the
// server accessible.
func (s *SQLStorage) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	return s.pool.PingContext(ctx)
}

func (s *SQLStorage) GetDatasourceName() string {
	return s.sqlConfig.Driver
}

func (s *SQLStorage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.pool.ExecContext(ctx, query, args...)
}

func (s *SQLStorage) ensureSchema() error {
	schemas, err := schemasForDriver(s.sqlConfig.Driver)
	if err != nil {
		return err
	}
	if _, err := s.exec(s.ctx, schemas); err != nil {
		return err
	}

	return nil
}

// SaveRun stores the snapshot of a run, replacing the previous snapshot of
// the same run id
func (s *SQLStorage) SaveRun(run *api.RunSnapshot) error {
	if run == nil || run.RunID == "" {
		return serviceerrors.NewServiceError(messages.FieldRequired, "Field", "run_id")
	}
	entityJSON, err := json.Marshal(run)
	if err != nil {
		return serviceerrors.NewStorageErrorWithError(err, "failed to marshal run %s", run.RunID)
	}
	upsert, err := createUpsertRunStatement(s.sqlConfig.Driver)
	if err != nil {
		return err
	}
	return s.withRunTransaction("save", run.RunID, func(txn *sql.Tx) error {
		_, err := txn.ExecContext(s.ctx, upsert, run.RunID, string(run.LifecycleState), run.SubmittedAt.UnixNano(), string(entityJSON))
		if err != nil {
			s.logger.Error("Failed to save run", "error", err, "run_id", run.RunID)
			return serviceerrors.NewServiceError(messages.DatabaseOperationFailed, "Type", "run", "ResourceId", run.RunID, "Error", err.Error()).WithRollback()
		}
		s.logger.Debug("Saved run", "run_id", run.RunID, "state", run.LifecycleState, "phase", run.Phase)
		return nil
	})
}

func (s *SQLStorage) GetRun(runID string) (*api.RunSnapshot, error) {
	selectQuery, err := createGetEntityStatement(s.sqlConfig.Driver, TABLE_RUNS)
	if err != nil {
		return nil, err
	}

	var dbID, state, entityJSON string
	err = s.pool.QueryRowContext(s.ctx, selectQuery, runID).Scan(&dbID, &state, &entityJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, serviceerrors.NewStorageErrorWithCode(404, "run with id '%s' not found", runID)
		}
		s.logger.Error("Failed to get run", "error", err, "run_id", runID)
		return nil, serviceerrors.NewStorageErrorWithError(err, "failed to get run")
	}
	return s.decodeRun(dbID, entityJSON)
}

func (s *SQLStorage) decodeRun(runID string, entityJSON string) (*api.RunSnapshot, error) {
	var run api.RunSnapshot
	if err := json.Unmarshal([]byte(entityJSON), &run); err != nil {
		s.logger.Error("Failed to unmarshal run entity", "error", err, "run_id", runID)
		return nil, serviceerrors.NewStorageErrorWithError(err, "failed to unmarshal run entity")
	}
	return &run, nil
}

func (s *SQLStorage) GetRuns(limit int, offset int, stateFilter string) (*abstractions.QueryResults[api.RunSnapshot], error) {
	// Get total count (with state filter if provided)
	countQuery, countArgs, err := createCountEntitiesStatement(s.sqlConfig.Driver, TABLE_RUNS, stateFilter)
	if err != nil {
		return nil, err
	}

	var totalCount int
	if err = s.pool.QueryRowContext(s.ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		s.logger.Error("Failed to count runs", "error", err)
		return nil, serviceerrors.NewStorageErrorWithError(err, "failed to count runs")
	}

	listQuery, listArgs, err := createListEntitiesStatement(s.sqlConfig.Driver, TABLE_RUNS, limit, offset, stateFilter)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.QueryContext(s.ctx, listQuery, listArgs...)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err)
		return nil, serviceerrors.NewStorageErrorWithError(err, "failed to list runs")
	}
	defer rows.Close()

	items := make([]api.RunSnapshot, 0)
	for rows.Next() {
		var dbID, state, entityJSON string
		if err = rows.Scan(&dbID, &state, &entityJSON); err != nil {
			s.logger.Error("Failed to scan run row", "error", err)
			return nil, serviceerrors.NewStorageErrorWithError(err, "failed to scan run row")
		}
		run, err := s.decodeRun(dbID, entityJSON)
		if err != nil {
			return nil, err
		}
		items = append(items, *run)
	}

	if err = rows.Err(); err != nil {
		s.logger.Error("Error iterating run rows", "error", err)
		return nil, serviceerrors.NewStorageErrorWithError(err, "error iterating run rows")
	}

	return &abstractions.QueryResults[api.RunSnapshot]{
		Items:       items,
		TotalStored: totalCount,
	}, nil
}

func (s *SQLStorage) DeleteRun(runID string) error {
	deleteQuery, err := createDeleteEntityStatement(s.sqlConfig.Driver, TABLE_RUNS)
	if err != nil {
		return err
	}

	result, err := s.exec(s.ctx, deleteQuery, runID)
	if err != nil {
		s.logger.Error("Failed to delete run", "error", err, "run_id", runID)
		return serviceerrors.NewStorageErrorWithError(err, "failed to delete run")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Error("Failed to get rows affected", "error", err, "run_id", runID)
		return serviceerrors.NewStorageErrorWithError(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return serviceerrors.NewStorageErrorWithCode(404, "run with id '%s' not found", runID)
	}

	s.logger.Info("Deleted run", "run_id", runID)
	return nil
}

func (s *SQLStorage) Close() error {
	return s.pool.Close()
}
