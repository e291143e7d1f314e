package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/pcsboard/internal/api"
)

const maxRequestBody = 64 << 10

// newRouter builds the public chi router: route-aware middleware, the probe
// endpoints added by mountProbes, and the /api/v1 routes.
func newRouter(L log.Logger, deps api.Deps, mountProbes func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Compress(5, "application/json"))
	// http.route on the request logger and span, from the chi pattern
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(maxRequestBody))

	if mountProbes != nil {
		mountProbes(r)
	}
	api.New(L, deps).RegisterRoutes(r)
	return r
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/-/healthy" || r.URL.Path == "/-/ready"
}

// instrument wraps h with the request-scoped stack. Wrappers are applied
// inside out, so the last one sees the raw request first.
func instrument(h http.Handler, L log.Logger, metricsMW func(http.Handler) http.Handler, ip httpmw.ClientIPOptions) http.Handler {
	h = httpmw.WithLogger(L)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool { return !isProbe(r) }),
		// renamed to the route pattern by AnnotateHTTPRoute
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
	if metricsMW != nil {
		h = metricsMW(h)
	}
	h = httpmw.ClientIPWithOptions(ip)(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(L, nil)(h)
	return httpmw.SecurityHeaders(h)
}
