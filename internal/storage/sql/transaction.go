package sql

import (
	"database/sql"
	"errors"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
)

// runTxFunc writes the rows of one run inside a transaction
type runTxFunc func(*sql.Tx) error

// withRunTransaction runs fn for the run in its own transaction. The
// transaction is committed unless fn fails with an error that asks for a
// rollback; errors that are not service errors always roll back.
func (s *SQLStorage) withRunTransaction(op string, runID string, fn runTxFunc) error {
	txn, err := s.pool.BeginTx(s.ctx, nil)
	if err != nil {
		return s.runTxFailed("begin", op, runID, err)
	}

	fnErr := fn(txn)
	if keepRunTx(fnErr) {
		if err := txn.Commit(); err != nil {
			return s.runTxFailed("commit", op, runID, err)
		}
		return fnErr
	}
	if err := txn.Rollback(); err != nil {
		return s.runTxFailed("rollback", op, runID, err)
	}
	return fnErr
}

func keepRunTx(err error) bool {
	if err == nil {
		return true
	}
	var se abstractions.ServiceError
	if errors.As(err, &se) {
		return !se.ShouldRollback()
	}
	return false
}

func (s *SQLStorage) runTxFailed(step string, op string, runID string, err error) error {
	s.logger.Error("Run history transaction failed", "step", step, "operation", op, constants.LOG_RUN_ID, runID, "error", err.Error())
	return serviceerrors.NewServiceError(messages.DatabaseOperationFailed, "Type", step+" "+op+" run", "ResourceId", runID, "Error", err.Error())
}
