package logger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Connector wide counters. They are cheap enough to always record; the
// report loop decides whether anyone ever sees them.
var (
	restCalls       int64
	restErrors      int64
	wsReads         int64
	wsReconnects    int64
	droppedMessages int64
	warnCount       int64
	errorCount      int64

	componentIssues sync.Map // map[string]*int64, warn+error count per component
)

func recordWarn(component string) {
	atomic.AddInt64(&warnCount, 1)
	recordComponentIssue(component)
}

func recordError(component string) {
	atomic.AddInt64(&errorCount, 1)
	recordComponentIssue(component)
}

func recordComponentIssue(component string) {
	v, _ := componentIssues.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// IncrementRestCall records one completed REST round trip.
func IncrementRestCall(failed bool) {
	atomic.AddInt64(&restCalls, 1)
	if failed {
		atomic.AddInt64(&restErrors, 1)
	}
}

// IncrementWsRead records one inbound websocket frame.
func IncrementWsRead() {
	atomic.AddInt64(&wsReads, 1)
}

// IncrementReconnect records one websocket reconnect attempt.
func IncrementReconnect() {
	atomic.AddInt64(&wsReconnects, 1)
}

// IncrementDropped records a data message that had no consumer or whose
// consumer buffer was full.
func IncrementDropped() {
	atomic.AddInt64(&droppedMessages, 1)
}

// DroppedMessages returns the number of dropped data messages so far.
func DroppedMessages() int64 {
	return atomic.LoadInt64(&droppedMessages)
}

// StartReport periodically logs a connector health summary and mirrors the
// counters to CloudWatch when the client is initialised. It returns
// immediately; the loop stops with the context.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report(ctx, log)
			}
		}
	}()
}

func report(ctx context.Context, log *Log) {
	snapshot := map[string]int64{
		"rest_calls":       atomic.LoadInt64(&restCalls),
		"rest_errors":      atomic.LoadInt64(&restErrors),
		"ws_reads":         atomic.LoadInt64(&wsReads),
		"ws_reconnects":    atomic.LoadInt64(&wsReconnects),
		"dropped_messages": atomic.LoadInt64(&droppedMessages),
		"warns":            atomic.LoadInt64(&warnCount),
		"errors":           atomic.LoadInt64(&errorCount),
	}

	fields := Fields{}
	data := make([]cwtypes.MetricDatum, 0, len(snapshot))
	for name, value := range snapshot {
		fields[name] = value
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(value)),
		})
	}

	componentIssues.Range(func(key, value interface{}) bool {
		fields["issues_"+key.(string)] = atomic.LoadInt64(value.(*int64))
		return true
	})

	log.WithComponent("report").WithFields(fields).Info("connector report")
	publishMetrics(ctx, data)
}
