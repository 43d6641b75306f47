package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLoggerConfig configures database query logging.
type QueryLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// ExpectedErrors are part of normal control flow (a lost claim race surfaces as a
	// duplicate key) and are logged at debug instead of error.
	ExpectedErrors []error
}

func DefaultQueryLoggerConfig() QueryLoggerConfig {
	return QueryLoggerConfig{
		Level:          gormlogger.Warn,
		SlowThreshold:  200 * time.Millisecond,
		ExpectedErrors: []error{gorm.ErrRecordNotFound, gorm.ErrDuplicatedKey},
	}
}

// QueryLogger routes gorm output through the request-scoped zap logger.
type QueryLogger struct {
	cfg QueryLoggerConfig
}

func NewQueryLogger(cfg QueryLoggerConfig) *QueryLogger {
	return &QueryLogger{cfg: cfg}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Info {
		FromContext(ctx).Info(msg, l.messageFields(data)...)
	}
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Warn {
		FromContext(ctx).Warn(msg, l.messageFields(data)...)
	}
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Error {
		FromContext(ctx).Error(msg, l.messageFields(data)...)
	}
}

func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	log := FromContext(ctx)
	switch {
	case err != nil && l.expected(err):
		if l.cfg.Level >= gormlogger.Info {
			log.Debug("db.query.expected_error", queryFields(fc, elapsed, err)...)
		}
	case err != nil && l.cfg.Level >= gormlogger.Error:
		log.Error("db.query.failed", queryFields(fc, elapsed, err)...)
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		log.Warn("db.query.slow", queryFields(fc, elapsed, nil)...)
	case l.cfg.Level >= gormlogger.Info:
		log.Debug("db.query", queryFields(fc, elapsed, nil)...)
	}
}

// ParamsFilter drops bound values; they can carry join and invitation codes.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) expected(err error) bool {
	for _, target := range l.cfg.ExpectedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (l *QueryLogger) messageFields(data []interface{}) []zap.Field {
	fields := []zap.Field{zap.String("component", "db")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	return fields
}

func queryFields(fc func() (string, int64), elapsed time.Duration, err error) []zap.Field {
	sql, rows := fc()
	op, table := describeSQL(sql)
	fields := []zap.Field{
		zap.String("component", "db"),
		zap.String("operation", op),
		zap.String("table", table),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("sql", strings.TrimSpace(sql)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// describeSQL returns the statement verb and the first table it touches.
func describeSQL(sql string) (string, string) {
	tokens := strings.Fields(strings.ToUpper(strings.TrimSpace(sql)))
	raw := strings.Fields(strings.TrimSpace(sql))
	op, table := "UNKNOWN", ""
	for i, token := range tokens {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if op == "UNKNOWN" {
				op = token
			}
			if token == "UPDATE" && i+1 < len(raw) && table == "" {
				table = cleanIdentifier(raw[i+1])
			}
		case "FROM", "INTO":
			if i+1 < len(raw) && table == "" {
				table = cleanIdentifier(raw[i+1])
			}
		}
		if op != "UNKNOWN" && table != "" {
			break
		}
	}
	return op, table
}

func cleanIdentifier(token string) string {
	return strings.Trim(token, "`\"();")
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
