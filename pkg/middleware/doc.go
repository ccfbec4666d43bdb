// Package middleware provides the HTTP boundary for incrementally
// regenerated pages plus optional observability wrappers.
//
// The ISR handler serves cached pages and decides, per request, between a
// fresh hit, serving stale content while a background regeneration runs,
// and a synchronous render on a miss:
//
//	handler := middleware.NewISR(cache, revalidator)
//	r.Handle("/*", handler)
//
// Prometheus and OpenTelemetry wrappers are standard net/http middleware
// and compose with any router:
//
//	r.Use(middleware.Prometheus())
//	r.Use(middleware.OpenTelemetry())
package middleware
