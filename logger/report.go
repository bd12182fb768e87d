package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	levels   int64
}

var (
	errorsStream   int64
	errorsSnapshot int64
	warnsStream    int64
	warnsSnapshot  int64
	streamMessages int64
	snapshotReads  int64
	spreadAlerts   int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	} else if strings.Contains(component, "snapshot") {
		atomic.AddInt64(&warnsSnapshot, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	} else if strings.Contains(component, "snapshot") {
		atomic.AddInt64(&errorsSnapshot, 1)
	}
}

// IncrementStreamMessage counts one stream message carrying levels price levels.
func IncrementStreamMessage(levels int) {
	atomic.AddInt64(&streamMessages, 1)
	recordChannel("depth_stream", levels)
}

func IncrementSnapshotRead(levels int) {
	atomic.AddInt64(&snapshotReads, 1)
	recordChannel("snapshot_rest", levels)
}

func IncrementSpreadAlert() {
	atomic.AddInt64(&spreadAlerts, 1)
}

func RecordChannelMessage(name string, levels int) {
	recordChannel(name, levels)
}

func recordChannel(name string, levels int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.levels, int64(levels))
}

// StartReport begins periodic logging of process and channel statistics
// until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		cs := v.(*channelStat)
		channelData[k.(string)] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"levels":   atomic.LoadInt64(&cs.levels),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memMB := 0.0
	if memStats != nil {
		memMB = float64(memStats.Used) / 1024 / 1024
	}
	var bytesRecv uint64
	if len(netStats) > 0 {
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_stream":   atomic.LoadInt64(&errorsStream),
		"errors_snapshot": atomic.LoadInt64(&errorsSnapshot),
		"warns_stream":    atomic.LoadInt64(&warnsStream),
		"warns_snapshot":  atomic.LoadInt64(&warnsSnapshot),
		"stream_messages": atomic.LoadInt64(&streamMessages),
		"snapshot_reads":  atomic.LoadInt64(&snapshotReads),
		"spread_alerts":   atomic.LoadInt64(&spreadAlerts),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memMB),
		"channels":        channelData,
		"net_bytes_recv":  int64(bytesRecv),
	}
	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memMB)},
		{MetricName: aws.String("StreamMessages"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["stream_messages"].(int64)))},
		{MetricName: aws.String("SpreadAlerts"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["spread_alerts"].(int64)))},
		{MetricName: aws.String("ErrorsStream"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_stream"].(int64)))},
		{MetricName: aws.String("ErrorsSnapshot"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_snapshot"].(int64)))},
		{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	}
	publishMetrics(ctx, data)
}
