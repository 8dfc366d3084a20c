package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes partitioned by provider kind
var renewalDispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "renewal_dispatch_total",
		Help: "Total number of renewal dispatches partitioned by provider and outcome",
	},
	[]string{"provider", "outcome"},
)
