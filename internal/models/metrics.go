package models

import "time"

// MetricsExport is the JSON snapshot written by the metrics export endpoint.
type MetricsExport struct {
	Timestamp time.Time      `json:"timestamp"`
	Metrics   []MetricSample `json:"metrics"`
}

// MetricSample is one flattened Prometheus sample.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
	Type   string            `json:"type"`
}
