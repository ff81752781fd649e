package leap

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goleap",
		Subsystem: "wire",
		Name:      "frames_read_total",
		Help:      "Frames read from the peer.",
	})
	framesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goleap",
		Subsystem: "wire",
		Name:      "frames_written_total",
		Help:      "Frames written to the peer.",
	})
	bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goleap",
		Subsystem: "wire",
		Name:      "bytes_read_total",
		Help:      "Frame body bytes read from the peer.",
	})
	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goleap",
		Subsystem: "wire",
		Name:      "bytes_written_total",
		Help:      "Frame body bytes written to the peer.",
	})
	pendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goleap",
		Subsystem: "client",
		Name:      "pending_requests",
		Help:      "Requests awaiting a reply.",
	})
	activeListeners = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goleap",
		Subsystem: "client",
		Name:      "active_listeners",
		Help:      "Open pump listeners.",
	})
	bridgeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goleap",
		Subsystem: "bridge",
		Name:      "connected_clients",
		Help:      "Clients currently tracked by the bridge server.",
	})
)

// RegisterMetrics registers the package's prometheus collectors with the
// default registry. Serving them is the embedding application's concern.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesRead, framesWritten, bytesRead, bytesWritten,
			pendingRequests, activeListeners, bridgeClients,
		)
	})
}

func recordFrameRead(n int) {
	RegisterMetrics()
	framesRead.Inc()
	bytesRead.Add(float64(n))
}

func recordFrameWritten(n int) {
	RegisterMetrics()
	framesWritten.Inc()
	bytesWritten.Add(float64(n))
}
