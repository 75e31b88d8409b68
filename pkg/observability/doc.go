// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("artifact_key", key).Warn("failed to copy runtime asset")
//
// Library constructors accept a nil *Logger and fall back to DefaultLogger.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordCacheHit(observability.TierL2)
//
// Every Record* method is safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("redis", false, func(ctx context.Context) error {
//		return client.Ping(ctx).Err()
//	})
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg.OTel, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
//	ctx, span := observability.StartSpan(ctx, "pipeline.compile",
//		observability.AttrCacheKey.String(key.String()))
//	defer func() { observability.EndSpan(span, err) }()
package observability
