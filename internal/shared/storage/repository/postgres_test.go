package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"
	pgdriver "cadre-portal/internal/shared/storage/driver/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockStore 基于 sqlmock 的 PostgreSQL 方言 Store，校验生成的 SQL
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, pgdriver.NewDialect()), mock
}

func TestPostgresConsumeOTPStatement(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	grant := now.Add(10 * time.Minute)

	mock.ExpectExec(`UPDATE users SET otp_code = NULL, otp_expiry = NULL, otp_purpose = NULL, updated_at = \$1, reset_granted_until = \$2 WHERE id = \$3 AND otp_purpose = \$4 AND otp_code = \$5 AND otp_expiry > \$6`).
		WithArgs(now, grant, "u-1", "reset", "123456", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.ConsumeOTP(context.Background(), "u-1", "reset", "123456", now, storage.OTPEffect{GrantResetUntil: &grant})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConsumeOTPMarkVerified(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`is_verified = \$2, verification_status = \$3 WHERE id = \$4 AND otp_purpose = \$5 AND otp_code = \$6 AND otp_expiry > \$7`).
		WithArgs(now, true, "VERIFIED", "u-1", "signup", "000001", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.ConsumeOTP(context.Background(), "u-1", "signup", "000001", now, storage.OTPEffect{MarkVerified: true})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresNextCadreSequence(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE cadres SET sequence = sequence \+ 1, updated_at = \$1 WHERE id = \$2 RETURNING sequence`).
		WithArgs(sqlmock.AnyArg(), "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(7)))
	mock.ExpectQuery(`UPDATE cadres SET sequence`).
		WithArgs(sqlmock.AnyArg(), "ghost").
		WillReturnError(sql.ErrNoRows)

	seq, err := s.NextCadreSequence(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)

	_, err = s.NextCadreSequence(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO cadres`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectExec(`INSERT INTO cadres`).
		WillReturnError(errors.New("connection reset"))

	c := newCadre("c-1", "IAS", "IAS")
	assert.ErrorIs(t, s.CreateCadre(context.Background(), c), storage.ErrDuplicate)

	err := s.CreateCadre(context.Background(), c)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListEmployeesScoped(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM employees WHERE cadre_id IN \(\$1, \$2\) AND department = \$3 ORDER BY employee_id LIMIT \$4 OFFSET \$5`).
		WithArgs("c-1", "c-2", "Finance", 10, 0).
		WillReturnRows(sqlmock.NewRows(employeeColumns))

	list, err := s.ListEmployees(context.Background(), model.EmployeeFilter{CadreIDs: []string{"c-1", "c-2"}, Department: "Finance", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}
