// Package trace writes a per-run audit trail of pipeline stage transitions
// to rotating files on disk. Traces are the record consulted when a case
// creation misbehaved after the fact; they are separate from live logging.
package trace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexxia-ai/casepipe"
)

var traceSync = sync.Mutex{}

type TraceConfig struct {
	Directory         string
	RetentionDuration time.Duration
	MaxTraceFiles     int
}

const (
	defaultRetentionDuration = 7 * 24 * time.Hour
	defaultMaxTraceFiles     = 50
)

type Tracer struct {
	config  TraceConfig
	counter int64
}

// NewTracer returns a tracer that writes one file per case-creation run.
// Old files are removed on each new run according to the retention settings.
func NewTracer(config ...TraceConfig) *Tracer {
	cfg := TraceConfig{
		Directory:         filepath.Join(os.TempDir(), "casepipe-traces"),
		RetentionDuration: defaultRetentionDuration,
		MaxTraceFiles:     defaultMaxTraceFiles,
	}

	if len(config) > 0 {
		if config[0].Directory != "" {
			cfg.Directory = config[0].Directory
		}
		if config[0].RetentionDuration > 0 {
			cfg.RetentionDuration = config[0].RetentionDuration
		}
		if config[0].MaxTraceFiles > 0 {
			cfg.MaxTraceFiles = config[0].MaxTraceFiles
		}
	}

	os.MkdirAll(cfg.Directory, 0755)

	return &Tracer{config: cfg}
}

// StartRun opens a trace file for a run. Implements casepipe's RunTracer.
func (tr *Tracer) StartRun(runID string, dt casepipe.DocumentType) casepipe.RunTrace {
	timestamp := time.Now().Format("20060102150405")
	counter := atomic.AddInt64(&tr.counter, 1)
	path := filepath.Join(tr.config.Directory, fmt.Sprintf("trace-%s.%03d.txt", timestamp, counter))

	tr.cleanup()

	rt := &RunTrace{
		filepath:  path,
		startTime: time.Now(),
	}
	rt.writeHeader(runID, dt)
	return rt
}

func (tr *Tracer) cleanup() {
	entries, err := os.ReadDir(tr.config.Directory)
	if err != nil {
		slog.Error("failed to read trace directory", "error", err)
		return
	}

	var traceFiles []struct {
		path    string
		modTime time.Time
	}

	cutoffTime := time.Now().Add(-tr.config.RetentionDuration)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "trace-") || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		traceFiles = append(traceFiles, struct {
			path    string
			modTime time.Time
		}{
			path:    filepath.Join(tr.config.Directory, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(traceFiles, func(i, j int) bool {
		return traceFiles[i].modTime.Before(traceFiles[j].modTime)
	})

	if tr.config.RetentionDuration > 0 {
		for _, file := range traceFiles {
			if file.modTime.Before(cutoffTime) {
				if err := os.Remove(file.path); err != nil {
					slog.Error("failed to remove old trace file", "file", file.path, "error", err)
				}
			}
		}
	}

	if tr.config.MaxTraceFiles > 0 && len(traceFiles) > tr.config.MaxTraceFiles {
		filesToRemove := len(traceFiles) - tr.config.MaxTraceFiles
		for i := 0; i < filesToRemove && i < len(traceFiles); i++ {
			if err := os.Remove(traceFiles[i].path); err != nil {
				slog.Error("failed to remove excess trace file", "file", traceFiles[i].path, "error", err)
			}
		}
	}
}
