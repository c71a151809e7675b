package tasks

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"cloud.google.com/go/logging/logadmin"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/structpb"
)

// LogEntry is one structured pipeline log line read back from Cloud Logging
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	RunID     string    `json:"run_id,omitempty"`
	Pipeline  string    `json:"pipeline,omitempty"`
	Step      string    `json:"step,omitempty"`
	File      string    `json:"file,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
}

// PipelineRun is one campaign run reconstructed from its log lines
type PipelineRun struct {
	RunID     string       `json:"run_id,omitempty"`
	Pipeline  string       `json:"pipeline"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time,omitempty"`
	Duration  float64      `json:"duration,omitempty"`
	Success   bool         `json:"success"`
	Steps     []StepResult `json:"steps"`
	Files     []FileResult `json:"files,omitempty"`
	Error     string       `json:"error,omitempty"`
	LogsURL   string       `json:"logs_url,omitempty"`
}

// StepResult is one flow step of a run
type StepResult struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration,omitempty"`
	Status   string  `json:"status"` // "completed", "failed"
	Error    string  `json:"error,omitempty"`
}

// FileResult is one file submission of a run
type FileResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// LogQuery selects log lines for the history view
type LogQuery struct {
	Pipeline string        // optional: product or brand
	Severity string        // optional minimum severity
	Since    time.Duration // default 24h
	Limit    int           // default 500
}

// LogClient reads pipeline logs from Cloud Logging
type LogClient struct {
	client      *logadmin.Client
	projectID   string
	serviceName string
}

// NewLogClient creates a Cloud Logging admin client
func NewLogClient(ctx context.Context, projectID, serviceName string) (*LogClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required for run history")
	}
	client, err := logadmin.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create logadmin client: %w", err)
	}
	return &LogClient{
		client:      client,
		projectID:   projectID,
		serviceName: serviceName,
	}, nil
}

// Close closes the logging client
func (c *LogClient) Close() error {
	return c.client.Close()
}

// Filter builds the Cloud Logging filter for q
func (c *LogClient) Filter(q LogQuery, now time.Time) string {
	if q.Since == 0 {
		q.Since = 24 * time.Hour
	}
	filter := fmt.Sprintf(
		`resource.labels.service_name="%s" AND timestamp>="%s" AND jsonPayload.pipeline!=""`,
		c.serviceName,
		now.Add(-q.Since).Format(time.RFC3339),
	)
	if q.Severity != "" {
		filter += fmt.Sprintf(` AND severity>="%s"`, q.Severity)
	}
	if q.Pipeline != "" {
		filter += fmt.Sprintf(` AND jsonPayload.pipeline="%s"`, q.Pipeline)
	}
	return filter
}

// QueryLogs returns matching entries, newest first
func (c *LogClient) QueryLogs(ctx context.Context, q LogQuery) ([]LogEntry, error) {
	if q.Limit == 0 {
		q.Limit = 500
	}

	iter := c.client.Entries(ctx,
		logadmin.Filter(c.Filter(q, time.Now())),
		logadmin.NewestFirst(),
	)

	var entries []LogEntry
	for len(entries) < q.Limit {
		entry, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate logs: %w", err)
		}

		logEntry := LogEntry{
			Timestamp: entry.Timestamp,
			Severity:  entry.Severity.String(),
		}
		switch p := entry.Payload.(type) {
		case *structpb.Struct:
			parseStructPayload(&logEntry, p)
		case string:
			logEntry.Message = p
		}

		if logEntry.Message == "" {
			continue
		}
		entries = append(entries, logEntry)
	}

	return entries, nil
}

func parseStructPayload(e *LogEntry, p *structpb.Struct) {
	fields := p.GetFields()
	str := func(key string) string {
		if v := fields[key]; v != nil {
			return v.GetStringValue()
		}
		return ""
	}
	e.Message = str("msg")
	e.RunID = str("run_id")
	e.Pipeline = str("pipeline")
	e.Step = str("step")
	e.File = str("file")
	e.Error = str("error")
	if d := fields["duration"]; d != nil {
		e.Duration = d.GetNumberValue()
	}
}

// buildLogsURL opens the console log viewer at a run's start time
func buildLogsURL(projectID, serviceName string, startTime time.Time) string {
	query := fmt.Sprintf(`resource.labels.service_name="%s"`, serviceName)
	cursorTime := startTime.Format(time.RFC3339Nano)

	return fmt.Sprintf("https://console.cloud.google.com/logs/query;query=%s;cursorTimestamp=%s?project=%s",
		url.QueryEscape(query), url.QueryEscape(cursorTime), projectID)
}

// runKey separates the kinds of one invocation, which share a run id
func runKey(e LogEntry) string {
	return e.RunID + "/" + e.Pipeline
}

// GroupByRun folds log entries into runs, newest first. Entries carrying a
// run_id are grouped by it and the pipeline; others attach to the latest earlier start of the
// same pipeline.
func GroupByRun(entries []LogEntry, projectID, serviceName string) []PipelineRun {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]LogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var runs []*PipelineRun
	byID := make(map[string]*PipelineRun)

	newRun := func(e LogEntry) *PipelineRun {
		r := &PipelineRun{
			RunID:     e.RunID,
			Pipeline:  e.Pipeline,
			StartTime: e.Timestamp,
			Success:   true,
			Steps:     []StepResult{},
		}
		runs = append(runs, r)
		if e.RunID != "" {
			byID[runKey(e)] = r
		}
		return r
	}

	for _, entry := range sorted {
		if entry.Pipeline == "" {
			continue
		}

		var current *PipelineRun
		if entry.RunID != "" {
			current = byID[runKey(entry)]
		}
		if entry.Message == "pipeline started" && current == nil {
			newRun(entry)
			continue
		}
		if current == nil && entry.RunID == "" {
			for i := len(runs) - 1; i >= 0; i-- {
				if runs[i].Pipeline == entry.Pipeline {
					current = runs[i]
					break
				}
			}
		}
		if current == nil {
			current = newRun(entry)
		}

		switch entry.Message {
		case "step completed":
			current.Steps = append(current.Steps, StepResult{
				Name:     entry.Step,
				Duration: entry.Duration,
				Status:   "completed",
			})
		case "step failed":
			current.Steps = append(current.Steps, StepResult{
				Name:   entry.Step,
				Status: "failed",
				Error:  entry.Error,
			})
			current.Success = false
			current.Error = entry.Error
		case "file submitted":
			current.Files = append(current.Files, FileResult{Name: entry.File, Success: true})
		case "file failed":
			current.Files = append(current.Files, FileResult{Name: entry.File, Error: entry.Error})
			current.Success = false
		case "pipeline completed":
			current.Duration = entry.Duration
			current.EndTime = entry.Timestamp
		}
	}

	result := make([]PipelineRun, 0, len(runs))
	for _, run := range runs {
		run.LogsURL = buildLogsURL(projectID, serviceName, run.StartTime)
		result = append(result, *run)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result
}
