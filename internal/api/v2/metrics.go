package api

import "github.com/labstack/echo/v4"

// initMetricsRoutes mounts the Prometheus handler on the root router so
// scrapers do not depend on the API prefix.
func (c *Controller) initMetricsRoutes() {
	if c.metrics == nil || !c.Settings.Metrics.Enabled {
		return
	}
	path := c.Settings.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	c.Echo.GET(path, echo.WrapHandler(c.metrics.Handler()))
}
