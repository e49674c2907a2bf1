package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	indexNameLabel = "index_name"
)

var (
	jordIndexCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "index_count",
		Help: "The number of spatial indexes.",
	})

	jordIndexCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "index_count_total",
		Help: "The total number of spatial indexes created.",
	})

	jordElementCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "element_count",
		Help: "The number of elements stored per index.",
	}, []string{indexNameLabel})
)

func instrumentIndexAdd() {
	jordIndexCount.Inc()
	jordIndexCountTotal.Inc()
}

func instrumentIndexRemove() {
	jordIndexCount.Dec()
}

func instrumentElementAdd(indexName string) {
	jordElementCount.
		With(prometheus.Labels{indexNameLabel: indexName}).
		Inc()
}

func instrumentElementRemove(indexName string) {
	jordElementCount.
		With(prometheus.Labels{indexNameLabel: indexName}).
		Dec()
}

func instrumentElementClear(indexName string, removed int) {
	jordElementCount.
		With(prometheus.Labels{indexNameLabel: indexName}).
		Sub(float64(removed))
}
