// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediacatalog"

var (
	// CacheOperationsTotal tracks cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// HTTPRequestsTotal tracks API requests by route pattern.
	// Labels:
	//   - method: GET, POST, PUT, DELETE
	//   - route: chi route pattern, e.g. /v1/videos/{id}/
	//   - status: response status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes API latency, upload time included.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert, update, delete
	//   - table: videos, category_video, ...
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// SagaExecutionsTotal tracks video persistence sagas by outcome.
	// Labels:
	//   - operation: create, update
	//   - outcome: committed, rolled_back
	SagaExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_executions_total",
			Help:      "Total number of video persistence sagas",
		},
		[]string{"operation", "outcome"},
	)

	// SagaDuration observes the wall time of a saga, uploads included.
	SagaDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Duration of video persistence sagas",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"operation"},
	)

	// FileDeletesTotal tracks best-effort object deletes issued by the saga.
	// Labels:
	//   - reason: compensation, replaced
	//   - status: success, error
	FileDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_deletes_total",
			Help:      "Total number of staged or replaced file deletions",
		},
		[]string{"reason", "status"},
	)

	// StorageOperationsTotal tracks object storage calls.
	// Labels:
	//   - operation: put, delete, exists, url
	//   - status: success, error
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	// RelationValidationsTotal tracks category/genre coverage checks.
	// Labels:
	//   - result: passed, failed
	RelationValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relation_validations_total",
			Help:      "Total number of category/genre coverage checks",
		},
		[]string{"result"},
	)

	// CleanupTasksTotal tracks orphaned file reconciliation.
	// Labels:
	//   - result: published, publish_error, deleted, skipped, dropped
	CleanupTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_tasks_total",
			Help:      "Total number of orphaned file cleanup tasks",
		},
		[]string{"result"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
	DBQueryDelete = "delete"
)

// Table name constants.
const (
	TableVideos        = "videos"
	TableCategoryGenre = "category_genre"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// Saga label constants.
const (
	SagaOpCreate         = "create"
	SagaOpUpdate         = "update"
	SagaOutcomeCommitted = "committed"
	SagaOutcomeRolled    = "rolled_back"
)

// Storage operation constants.
const (
	StorageOpPut    = "put"
	StorageOpDelete = "delete"
	StorageOpExists = "exists"
	StorageOpURL    = "url"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Relation validation results.
const (
	ValidationPassed = "passed"
	ValidationFailed = "failed"
)

// Cleanup task results.
const (
	CleanupPublished    = "published"
	CleanupPublishError = "publish_error"
	CleanupDeleted      = "deleted"
	CleanupSkipped      = "skipped"
	CleanupDropped      = "dropped"
)

// PoolStats is a snapshot of a database connection pool.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
	Max      int32
}

// RegisterPoolStats exposes mediacatalog_db_pool_connections{state} gauges,
// read from stats on every scrape.
func RegisterPoolStats(reg prometheus.Registerer, stats func() PoolStats) error {
	gauges := map[string]func(PoolStats) int32{
		"acquired": func(s PoolStats) int32 { return s.Acquired },
		"idle":     func(s PoolStats) int32 { return s.Idle },
		"total":    func(s PoolStats) int32 { return s.Total },
		"max":      func(s PoolStats) int32 { return s.Max },
	}
	for state, value := range gauges {
		g := prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "db_pool_connections",
				Help:        "Database pool connections by state",
				ConstLabels: prometheus.Labels{"state": state},
			},
			func() float64 { return float64(value(stats())) },
		)
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
