package trace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nexxia-ai/casepipe"
)

// RunTrace is the trace file of a single case-creation run. Writes open and
// close the file each time so a crash mid-run leaves the trail on disk.
type RunTrace struct {
	filepath  string
	startTime time.Time
}

func (rt *RunTrace) Filepath() string {
	return rt.filepath
}

var stageMarks = map[casepipe.StepStatus]string{
	casepipe.StepInProgress: "⏳",
	casepipe.StepCompleted:  "✅",
	casepipe.StepFailed:     "❌",
}

func (rt *RunTrace) writeHeader(runID string, dt casepipe.DocumentType) {
	rt.writeToFile(func(w io.Writer) {
		fmt.Fprintf(w, "====> [%s] Start %s run runID: %s\n",
			time.Now().Format("15:04:05"), dt, runID)
	})
}

// StageEvent records a stage transition. detail carries the error text for
// failed stages and is empty otherwise.
func (rt *RunTrace) StageEvent(stage string, status casepipe.StepStatus, detail string) {
	traceSync.Lock()
	defer traceSync.Unlock()

	rt.writeToFile(func(w io.Writer) {
		mark, ok := stageMarks[status]
		if !ok {
			mark = "•"
		}
		fmt.Fprintf(w, "[%s] %s %s", time.Now().Format("15:04:05"), mark, stage)
		if detail != "" {
			fmt.Fprintf(w, " (%s)", detail)
		}
		fmt.Fprintln(w)
	})
}

// End closes the trail with the run outcome and total elapsed time.
func (rt *RunTrace) End(outcome string) {
	traceSync.Lock()
	defer traceSync.Unlock()

	rt.writeToFile(func(w io.Writer) {
		fmt.Fprintf(w, "<==== [%s] End run: %s (%.1fs)\n",
			time.Now().Format("15:04:05"), outcome, time.Since(rt.startTime).Seconds())
	})
}

func (rt *RunTrace) writeToFile(fn func(io.Writer)) {
	file, err := os.OpenFile(rt.filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("failed to open trace file for writing", "file", rt.filepath, "error", err)
		return
	}
	defer file.Close()

	fn(file)
	file.Sync()
}
