package casepipe

import (
	"fmt"
	"strings"
	"time"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// ProgressTracker records the state of each pipeline step. Transitions are
// monotonic: a completed step never changes again, and a failed step can only
// be observed, not restarted. The tracker is written by the single pipeline
// goroutine, so it carries no lock.
type ProgressTracker struct {
	steps   []string
	status  map[string]StepStatus
	started map[string]time.Time
	elapsed map[string]time.Duration

	now func() time.Time
}

func NewProgressTracker(steps []string) *ProgressTracker {
	t := &ProgressTracker{
		steps:   append([]string(nil), steps...),
		status:  make(map[string]StepStatus, len(steps)),
		started: make(map[string]time.Time, len(steps)),
		elapsed: make(map[string]time.Duration, len(steps)),
		now:     time.Now,
	}
	for _, s := range steps {
		t.status[s] = StepPending
	}
	return t
}

// StartStep marks the step in progress. Starting an already running step is a
// no-op so a retried stage body does not reset its timer.
func (t *ProgressTracker) StartStep(name string) error {
	st, ok := t.status[name]
	if !ok {
		return fmt.Errorf("unknown step %q", name)
	}
	switch st {
	case StepInProgress:
		return nil
	case StepCompleted, StepFailed:
		return fmt.Errorf("step %q already %s", name, st)
	}
	t.status[name] = StepInProgress
	t.started[name] = t.now()
	return nil
}

func (t *ProgressTracker) CompleteStep(name string) error {
	if t.status[name] != StepInProgress {
		return fmt.Errorf("step %q not in progress", name)
	}
	t.status[name] = StepCompleted
	t.elapsed[name] = t.now().Sub(t.started[name])
	return nil
}

// FailStep marks the step failed from any state except completed. Pending
// steps can fail directly so a fatal error can fold up the remainder of the
// plan without starting each step first.
func (t *ProgressTracker) FailStep(name string) error {
	st, ok := t.status[name]
	if !ok {
		return fmt.Errorf("unknown step %q", name)
	}
	if st == StepCompleted {
		return fmt.Errorf("step %q already completed", name)
	}
	if st == StepInProgress {
		t.elapsed[name] = t.now().Sub(t.started[name])
	}
	t.status[name] = StepFailed
	return nil
}

func (t *ProgressTracker) Status(name string) StepStatus {
	return t.status[name]
}

type StepSnapshot struct {
	Name    string
	Status  StepStatus
	Elapsed string
}

// Snapshot returns the steps in plan order with their current state. Elapsed
// is set only for finished steps.
func (t *ProgressTracker) Snapshot() []StepSnapshot {
	out := make([]StepSnapshot, 0, len(t.steps))
	for _, s := range t.steps {
		snap := StepSnapshot{Name: s, Status: t.status[s]}
		if d, ok := t.elapsed[s]; ok {
			snap.Elapsed = fmt.Sprintf("%.1fs", d.Seconds())
		}
		out = append(out, snap)
	}
	return out
}

var statusIcons = map[StepStatus]string{
	StepPending:    "⬜",
	StepInProgress: "⏳",
	StepCompleted:  "✅",
	StepFailed:     "❌",
}

// Render formats the tracker as a progress message suitable for repeated
// in-place edits.
func (t *ProgressTracker) Render(title string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, snap := range t.Snapshot() {
		b.WriteString(statusIcons[snap.Status])
		b.WriteString(" ")
		b.WriteString(snap.Name)
		if snap.Elapsed != "" {
			b.WriteString(" (")
			b.WriteString(snap.Elapsed)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}
