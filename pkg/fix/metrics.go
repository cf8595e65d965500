package fix

import "github.com/prometheus/client_golang/prometheus"

var serializeCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "fix_serialize_count",
	Help: "fix outgoing message counters",
}, []string{"protocol", "msg_type"})

var parseCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "fix_parse_count",
	Help: "fix incoming message counters",
}, []string{"protocol", "result"})

func init() {
	prometheus.MustRegister(serializeCounters, parseCounters)
}
