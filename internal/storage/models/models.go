package models

import "time"

type AnalysisRun struct {
	ID             string
	Description    string
	Keywords       []string
	Location       string
	Status         string
	SegmentCount   int
	ArticleCount   int
	Output         string
	ProcessingTime float64
	CreatedAt      time.Time
}

type RunSummary struct {
	ID             string
	Description    string
	Location       string
	Status         string
	SegmentCount   int
	ProcessingTime float64
	CreatedAt      time.Time
}

type RunSource struct {
	ID        int
	RunID     string
	Source    string
	Succeeded bool
}

type SystemMetric struct {
	ID          int
	MetricName  string
	MetricValue float64
	Tags        string
	Timestamp   time.Time
}
