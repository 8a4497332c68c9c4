package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refit/refit-api/utils"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of unauthorized requests",
		},
		[]string{"reason"},
	)

	registerOnce sync.Once
)

// InitPrometheus registers HTTP and engine collectors on the default registry.
func InitPrometheus() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, authRejections)
		prometheus.MustRegister(utils.BusinessCollectors()...)
	})
}

// Monitor records request counts and latencies keyed by route template.
func Monitor() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := ctx.Writer.Status()
		httpRequestsTotal.WithLabelValues(path, ctx.Request.Method, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(path, ctx.Request.Method).Observe(time.Since(start).Seconds())

		switch status {
		case http.StatusUnauthorized:
			authRejections.WithLabelValues("401_unauthorized").Inc()
		case http.StatusForbidden:
			authRejections.WithLabelValues("403_forbidden").Inc()
		}
	}
}

// MetricsHandler serves /metrics behind basic auth. Without credentials it answers 404.
func MetricsHandler(user, password string) []gin.HandlerFunc {
	if user == "" {
		return []gin.HandlerFunc{func(ctx *gin.Context) { ctx.AbortWithStatus(http.StatusNotFound) }}
	}
	return []gin.HandlerFunc{
		gin.BasicAuthForRealm(gin.Accounts{user: password}, "Metrics"),
		gin.WrapH(promhttp.Handler()),
	}
}
