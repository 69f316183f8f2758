package gateway

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/roverfleet/console/internal/gateway"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
