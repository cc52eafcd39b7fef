package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsQuote    int64
	errorsStream   int64
	warnsQuote     int64
	warnsStream    int64
	quoteReads     int64
	positionReads  int64
	passesRun      int64
	reportsWritten int64
	channels       sync.Map // map[string]*channelStat

	publisherMu sync.RWMutex
	publisher   func(ctx context.Context, fields Fields)
)

func recordWarn(component string) {
	if strings.Contains(component, "quote") {
		atomic.AddInt64(&warnsQuote, 1)
	} else if strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "quote") {
		atomic.AddInt64(&errorsQuote, 1)
	} else if strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	}
}

func IncrementQuoteRead(size int) {
	atomic.AddInt64(&quoteReads, 1)
	recordChannel("quote_rest", size)
}

func IncrementPositionRead(count int) {
	atomic.AddInt64(&positionReads, 1)
	recordChannel("position_rest", count)
}

func IncrementPassRun() {
	atomic.AddInt64(&passesRun, 1)
}

func IncrementReportWritten() {
	atomic.AddInt64(&reportsWritten, 1)
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// SetReportPublisher installs a callback invoked with every runtime report.
// The metrics package registers one to forward the report to CloudWatch.
func SetReportPublisher(fn func(ctx context.Context, fields Fields)) {
	publisherMu.Lock()
	publisher = fn
	publisherMu.Unlock()
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and channel statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_quote":    atomic.LoadInt64(&errorsQuote),
		"errors_stream":   atomic.LoadInt64(&errorsStream),
		"warns_quote":     atomic.LoadInt64(&warnsQuote),
		"warns_stream":    atomic.LoadInt64(&warnsStream),
		"quote_reads":     atomic.LoadInt64(&quoteReads),
		"position_reads":  atomic.LoadInt64(&positionReads),
		"passes_run":      atomic.LoadInt64(&passesRun),
		"reports_written": atomic.LoadInt64(&reportsWritten),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"channels":        channelData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	publisherMu.RLock()
	fn := publisher
	publisherMu.RUnlock()
	if fn != nil {
		fn(ctx, fields)
	}
}
