package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	commandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qubi",
			Subsystem: "controller",
			Name:      "commands_sent_total",
			Help:      "Commands sent to modules, counted per attempt.",
		},
		[]string{"host", "tracking"},
	)
	sendRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qubi",
			Subsystem: "controller",
			Name:      "send_retries_total",
			Help:      "Delivery attempts retried after a transient failure.",
		},
		[]string{"host"},
	)
	sendTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qubi",
			Subsystem: "controller",
			Name:      "send_timeouts_total",
			Help:      "Sends that exhausted the reply window.",
		},
		[]string{"host"},
	)
	remoteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qubi",
			Subsystem: "controller",
			Name:      "remote_errors_total",
			Help:      "Replies reporting an application-level failure.",
		},
		[]string{"host", "status"},
	)
	discoveryReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qubi",
			Subsystem: "discovery",
			Name:      "replies_total",
			Help:      "Discovery replies received, including duplicates.",
		},
		[]string{"duplicate"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(commandsSent, sendRetries, sendTimeouts, remoteErrors, discoveryReplies)
	})
}

func RecordCommandsSent(host string, tracking bool, n int) {
	RegisterMetrics()
	label := "off"
	if tracking {
		label = "on"
	}
	commandsSent.WithLabelValues(host, label).Add(float64(n))
}

func RecordSendRetry(host string) {
	RegisterMetrics()
	sendRetries.WithLabelValues(host).Inc()
}

func RecordSendTimeout(host string) {
	RegisterMetrics()
	sendTimeouts.WithLabelValues(host).Inc()
}

func RecordRemoteError(host, status string) {
	RegisterMetrics()
	remoteErrors.WithLabelValues(host, status).Inc()
}

func RecordDiscoveryReply(duplicate bool) {
	RegisterMetrics()
	label := "false"
	if duplicate {
		label = "true"
	}
	discoveryReplies.WithLabelValues(label).Inc()
}
