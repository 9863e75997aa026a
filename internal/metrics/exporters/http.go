// Package exporters exposes the process metrics over HTTP and the event bus.
package exporters

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/tracknode/internal/logging"
)

// HTTPHandler serves every promauto collector from the default registry,
// negotiating OpenMetrics when the scraper asks for it. Scrape counts are
// themselves exported as promhttp_metric_handler_requests_total.
func HTTPHandler() http.Handler {
	return HandlerFor(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// HandlerFor serves gatherer, registering the scrape counters with reg.
func HandlerFor(reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:          errorLog{logging.GetLogger("metrics")},
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}

// errorLog adapts slog to promhttp's Println logger.
type errorLog struct {
	logger *slog.Logger
}

func (l errorLog) Println(v ...any) {
	l.logger.Warn("Metrics collection error", "error", fmt.Sprint(v...))
}
