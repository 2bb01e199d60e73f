package ehdcc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

var (
	// ErrNoData reports that no variable yielded any sample over the whole
	// requested range.
	ErrNoData = errors.New("no data found for the requested range")

	// ErrUnknownService reports a service name outside the allow-list.
	ErrUnknownService = errors.New("unknown service")
)

// timeLayout is the ISO-8601 shape the API expects in request paths.
const timeLayout = "2006-01-02T15:04:05"

// batchCount is fixed: the server limits response sizes, so every range is
// split into this many sequential requests per variable.
const batchCount = 10

var defaultStart = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)

// ProgressFunc is called once per completed batch request, with batch in
// [1, total]. It runs on the calling goroutine.
type ProgressFunc func(code VariableCode, batch, total int)

// TimeseriesRequest describes one time-series retrieval.
type TimeseriesRequest struct {
	StationID int64
	Service   string
	Variables []VariableCode // nil means all known variables
	Start     time.Time      // zero means 1950-01-01
	End       time.Time      // zero means now
	Progress  ProgressFunc   // optional
}

// tsRecord mirrors one sample of a time-series response payload.
type tsRecord struct {
	Timestamp string  `json:"Timestamp"`
	AvgValue  float64 `json:"AvgValue"`
}

// GetTimeseries retrieves the series for one station over [Start, End],
// splitting the range into a fixed number of batches per variable. A failed
// or empty batch degrades the result instead of failing the call; only an
// unknown service or a fully empty result is an error.
func (c *Client) GetTimeseries(ctx context.Context, req TimeseriesRequest) (*TimeSeries, error) {
	if _, ok := Services[req.Service]; !ok {
		c.log.Error("unknown service",
			zap.String("service", req.Service),
			zap.Strings("known", ServiceNames()))
		return nil, fmt.Errorf("service %q: %w", req.Service, ErrUnknownService)
	}
	resolution := serviceResolution(req.Service)

	vars := req.Variables
	if len(vars) == 0 {
		vars = AllVariables
	}
	start, end := req.Start, req.End
	if start.IsZero() {
		start = defaultStart
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	bounds := batchBounds(start, end)

	var cols []column
	for _, code := range vars {
		name, ok := Variables[code]
		if !ok {
			c.log.Warn("unknown variable code", zap.String("variable", string(code)))
			continue
		}
		samples := c.fetchVariable(ctx, req, code, bounds, resolution)
		if len(samples) > 0 {
			cols = append(cols, column{name: name, samples: samples})
		}
	}

	if len(cols) == 0 {
		c.log.Info("no data found for station", zap.Int64("station_id", req.StationID))
		return nil, ErrNoData
	}
	return newTimeSeries(cols, resolution), nil
}

// fetchVariable issues the batch requests for one variable and parses
// whatever comes back. Every failure mode here is non-fatal: the batch just
// contributes nothing.
func (c *Client) fetchVariable(ctx context.Context, req TimeseriesRequest, code VariableCode, bounds []time.Time, resolution time.Duration) []sample {
	var samples []sample
	total := len(bounds) - 1
	for i := 0; i < total; i++ {
		st := bounds[i]
		if i > 0 {
			// Shift past the previous batch's final timestamp without
			// opening a gap at the boundary.
			st = st.Add(resolution / 2)
		}
		en := bounds[i+1]

		url := fmt.Sprintf("%s/%s/%s/%s/%d/%s",
			c.baseURL, req.Service, st.Format(timeLayout), en.Format(timeLayout), req.StationID, code)
		body, err := c.get(ctx, url)
		if req.Progress != nil {
			req.Progress(code, i+1, total)
		}
		if err != nil {
			c.log.Warn("batch request failed", zap.String("url", url), zap.Error(err))
			continue
		}

		recs, msg, err := parseBatch(body)
		if err != nil {
			c.log.Warn("could not decode batch payload", zap.String("url", url), zap.Error(err))
			continue
		}
		if msg != "" {
			c.log.Info("server message", zap.String("url", url), zap.String("message", msg))
			continue
		}

		for _, r := range recs {
			t, err := parseTimestamp(r.Timestamp)
			if err != nil {
				c.log.Warn("skipping sample with unparseable timestamp",
					zap.String("timestamp", r.Timestamp), zap.Error(err))
				continue
			}
			samples = append(samples, sample{ts: t, value: r.AvgValue})
		}
	}
	return samples
}

// parseBatch decodes a batch payload. An object payload is the server's way
// of sending an informational message instead of data.
func parseBatch(body []byte) ([]tsRecord, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", nil
	}
	if trimmed[0] == '{' {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, "", err
		}
		if payload.Message == "" {
			payload.Message = "unexpected object payload"
		}
		return nil, payload.Message, nil
	}
	var recs []tsRecord
	if err := json.Unmarshal(trimmed, &recs); err != nil {
		return nil, "", err
	}
	return recs, "", nil
}

// serviceResolution derives the nominal resolution from the first run of
// digits in a (validated) service name.
func serviceResolution(service string) time.Duration {
	i := strings.IndexFunc(service, unicode.IsDigit)
	if i < 0 {
		return 0
	}
	j := i
	for j < len(service) && service[j] >= '0' && service[j] <= '9' {
		j++
	}
	hours, _ := strconv.Atoi(service[i:j])
	return time.Duration(hours) * time.Hour
}

// batchBounds splits [start, end] into batchCount equal-width batches,
// returning the batchCount+1 boundary timestamps. The batch count is fixed
// regardless of span.
func batchBounds(start, end time.Time) []time.Time {
	step := end.Sub(start) / batchCount
	bounds := make([]time.Time, batchCount+1)
	for i := range bounds {
		bounds[i] = start.Add(step * time.Duration(i))
	}
	bounds[batchCount] = end
	return bounds
}

var timestampLayouts = []string{
	timeLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
