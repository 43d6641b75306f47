package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("flow", "unit"),
		attribute.String("user_id", "456"),
		attribute.String("reason", "invalid_code"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("flow"))
	assert.Contains(t, keys, attribute.Key("reason"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordClaimOutcome(context.Background(), "unit", "granted", "")
		m.RecordGrantRetry(context.Background(), "unit")
		m.RecordJoinCodeRotation(context.Background())
		m.RecordRateLimitDenied(context.Background(), "join_code", "exhausted")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "homeaccess"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordClaimOutcome(context.Background(), "invitation", "rejected", "invitation_exhausted")
	})
}
