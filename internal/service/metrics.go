package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/laas-platform/laas/pkg/errors"
)

var (
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_operation_duration_seconds",
		Help:    "Duration of search service operations.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_operations_total",
		Help: "Search service operations by outcome.",
	}, []string{"operation", "outcome"})

	indexedDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_indexed_documents_total",
		Help: "Listing documents written to or removed from the index.",
	}, []string{"action"})
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsCanceled(err):
		return "canceled"
	case errors.Is(err, apperrors.ErrInvalidQuery), errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func observe(op string, start time.Time, err error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(op, outcome(err)).Inc()
}
