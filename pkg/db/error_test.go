package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm translated", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pg unique", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: true},
		{name: "pg other", err: &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, want: false},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: organization_invites.org_id"), want: true},
		{name: "mysql", err: errors.New("Error 1062: Duplicate entry"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestDialect(t *testing.T) {
	for _, typ := range []string{TypePostgres, TypeMySQL, TypeSQLite, TypeSQLiteCGO} {
		d, err := Dialect(config.Config{DBType: typ, DBPath: "file::memory:"})
		require.NoError(t, err, typ)
		assert.NotNil(t, d)
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	require.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db"))
	assert.Equal(t, "file::memory:?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file::memory:?cache=shared"))
}
