package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/homeaccess/internal/notification/client"
	"github.com/smallbiznis/homeaccess/internal/notification/repository"
	"github.com/smallbiznis/homeaccess/internal/notification/service"
	"github.com/smallbiznis/homeaccess/pkg/telemetry"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(client.New),
	fx.Provide(func() *telemetry.OutboxMetrics {
		return telemetry.NewOutboxMetrics(prometheus.DefaultRegisterer)
	}),
	fx.Provide(service.NewOutboxPublisher),
	fx.Provide(service.NewRelay),
)
