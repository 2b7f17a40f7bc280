// file: internal/metrics/http.go

package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type hostKey struct{}

func hostFromContext(ctx context.Context) string {
	host, _ := ctx.Value(hostKey{}).(string)
	return host
}

// InstrumentTransport counts and times every request sent through next, labelled
// by target host. Requests that fail before a response arrives are counted in
// http_outbound_errors_total instead.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	byHost := promhttp.WithLabelFromCtx("host", hostFromContext)
	instrumented := promhttp.InstrumentRoundTripperCounter(m.httpOutboundRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(m.httpOutboundDuration, next, byHost),
		byHost,
	)

	return promhttp.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		host := req.URL.Host
		resp, err := instrumented.RoundTrip(req.WithContext(context.WithValue(req.Context(), hostKey{}, host)))
		if err != nil {
			m.httpOutboundErrorsTotal.WithLabelValues(host).Inc()
		}
		return resp, err
	})
}
