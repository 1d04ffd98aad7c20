package edge

import (
	"net/http"
	"strconv"

	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/metrics"
)

// HeaderSlug carries the resolved slug to the frontend when the host
// identifies the shop.
const HeaderSlug = "X-Patissio-Slug"

// Middleware rewrites r.URL in place and records the original host in
// X-Forwarded-Host.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query := r.URL.Path, r.URL.RawQuery
		res := rt.Rewrite(r.Host, path, query)
		rewritten := res.Rewritten(path, query)

		if rewritten {
			r.URL.Path = res.Path
			r.URL.RawPath = ""
			r.URL.RawQuery = res.RawQuery
			r.RequestURI = r.URL.RequestURI()
		}
		if r.Header.Get("X-Forwarded-Host") == "" {
			r.Header.Set("X-Forwarded-Host", r.Host)
		}
		if res.Slug != "" {
			r.Header.Set(HeaderSlug, res.Slug)
		} else {
			r.Header.Del(HeaderSlug)
		}

		metrics.EdgeRequestsTotal.WithLabelValues(string(res.Kind), strconv.FormatBool(rewritten)).Inc()
		if rewritten {
			logging.L(r.Context()).Debug("edge rewrite", "host", r.Host, "from", path, "to", res.Path, "kind", res.Kind)
		}
		next.ServeHTTP(w, r)
	})
}
