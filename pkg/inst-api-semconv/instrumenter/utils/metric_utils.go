// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

var mu sync.Mutex

// DurationBuckets are the explicit bucket boundaries, in seconds, used for
// operation duration histograms.
var DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10}

func NewFloat64Histogram(metricName, metricUnit, metricDescription string,
	meter metric.Meter, buckets ...float64) (metric.Float64Histogram, error) {
	mu.Lock()
	defer mu.Unlock()
	if meter == nil {
		return nil, errors.New("nil meter")
	}
	opts := []metric.Float64HistogramOption{
		metric.WithUnit(metricUnit),
		metric.WithDescription(metricDescription),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	d, err := meter.Float64Histogram(metricName, opts...)
	if err != nil {
		return d, fmt.Errorf("failed to create %s histogram, %w", metricName, err)
	}
	return d, nil
}

func NewInt64Counter(metricName, metricUnit, metricDescription string,
	meter metric.Meter) (metric.Int64Counter, error) {
	mu.Lock()
	defer mu.Unlock()
	if meter == nil {
		return nil, errors.New("nil meter")
	}
	c, err := meter.Int64Counter(metricName,
		metric.WithUnit(metricUnit),
		metric.WithDescription(metricDescription))
	if err != nil {
		return c, fmt.Errorf("failed to create %s counter, %w", metricName, err)
	}
	return c, nil
}
