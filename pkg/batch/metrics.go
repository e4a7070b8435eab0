package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ximilar_batch_chunks_total",
		Help: "Total batch chunks by result (ok, error, skipped)",
	}, []string{"result"})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ximilar_batch_records_total",
		Help: "Total records delivered to batch operations",
	})
)
