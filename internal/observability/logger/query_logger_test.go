package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "units" WHERE id = $1`, "SELECT", "units"},
		{`INSERT INTO "unit_occupancies" ("id") VALUES ($1)`, "INSERT", "unit_occupancies"},
		{"UPDATE `units` SET primary_occupant_id = ? WHERE id = ?", "UPDATE", "units"},
		{`DELETE FROM access_events WHERE id = 1`, "DELETE", "access_events"},
		{`PRAGMA foreign_keys`, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestQueryLoggerDowngradesExpectedErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()
	ctx := context.Background()
	ql := NewQueryLogger(DefaultQueryLoggerConfig())
	sql := func() (string, int64) { return `INSERT INTO "residence_members" ("id") VALUES (1)`, 0 }

	ql.Trace(ctx, time.Now(), sql, gorm.ErrDuplicatedKey)
	assert.Zero(t, logs.Len())

	ql.Trace(ctx, time.Now(), sql, errors.New("connection refused"))
	entries := logs.FilterMessage("db.query.failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "residence_members", entries[0].ContextMap()["table"])
	}

	verbose := ql.LogMode(gormlogger.Info)
	verbose.Trace(ctx, time.Now(), sql, gorm.ErrDuplicatedKey)
	assert.Equal(t, 1, logs.FilterMessage("db.query.expected_error").Len())
}

func TestQueryLoggerDropsParams(t *testing.T) {
	sql, params := NewQueryLogger(DefaultQueryLoggerConfig()).ParamsFilter(context.Background(), "SELECT 1", "XJ92KQ")
	assert.Equal(t, "SELECT 1", sql)
	assert.Nil(t, params)
}
