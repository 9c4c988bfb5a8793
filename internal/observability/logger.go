// Package observability wires the Prometheus registry and exposes it over HTTP.
package observability

import "github.com/tphakala/healthdesk/internal/logger"

var log = logger.Global().Module("telemetry")
