package metrics

import (
	"os"

	"github.com/iidesho/bragi/sbragi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	log      = sbragi.WithLocalScope(sbragi.LevelInfo)
	Registry = prometheus.NewRegistry()

	EventsAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replog",
		Name:      "events_appended_total",
		Help:      "Events appended to a local log.",
	}, []string{"log"})
	EventsReplicated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replog",
		Name:      "events_replicated_total",
		Help:      "Events written by a replicator after a provenance rewrite.",
	}, []string{"source", "target"})
	BatchesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replog",
		Name:      "batches_read_total",
		Help:      "Batches produced by log reads, partitioned on emptiness.",
	}, []string{"log", "empty"})
)

func init() {
	Registry.MustRegister(EventsAppended, EventsReplicated, BatchesRead)
}

// Push publishes the registry to a prometheus push gateway.
func Push(url, job string) {
	pusher := push.New(url, job)
	pusher.Gatherer(Registry)
	hn, err := os.Hostname()
	if !log.WithError(err).Error("getting hostname for metrics push") {
		pusher.Grouping("instance", hn)
	}
	err = pusher.Push()
	log.WithError(err).Error("pushing metrics", "url", url, "job", job)
}
