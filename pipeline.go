package casepipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexxia-ai/casepipe/retry"
	"github.com/nexxia-ai/casepipe/template"
)

// Pipeline wires the external systems a case-creation run touches. Records
// and Generator are required; Folders, Documents, Researcher and Progress are
// optional and their stages degrade to soft failures when absent.
type Pipeline struct {
	Records   CaseRecordClient
	Folders   FolderStoreClient
	Documents DocumentStoreClient
	Generator Generator
	Research  Researcher
	Templates *template.Library
	Progress  ProgressSink
	Trace     RunTracer

	// DeepLinkBase, when set, prefixes the case id to form a follow-up
	// link included in the success message for document types that use it.
	DeepLinkBase string

	Logger       *slog.Logger
	Now          func() time.Time
	RetryOptions []retry.Option
}

// Result is the outcome of a run. When RolledBack is true the run failed,
// created resources were reverted and Message holds the rollback report.
type Result struct {
	CaseID     string
	Message    string
	DeepLink   string
	RolledBack bool
}

type stageResult int

const (
	stageOK stageResult = iota
	stageSoft
	stageFatal
)

// runState carries the artifacts produced so far through the stage sequence.
type runState struct {
	dt          DocumentType
	cfg         Config
	userContext string
	research    string
	env         Envelope
	caseID      string
	recordID    string
	recordLink  string
	folderID    string
	folderLink  string
	docLink     string
}

// Execute runs the full case-creation sequence for a document type. A fatal
// stage error rolls back created resources and returns the rollback report in
// Result.Message with a nil error; the error return is reserved for calls
// that never started a run, such as an unknown document type.
func (p *Pipeline) Execute(ctx context.Context, dt DocumentType, userContext string) (Result, error) {
	cfg, err := ConfigFor(dt)
	if err != nil {
		return Result{}, err
	}
	if p.Records == nil {
		return Result{}, errors.New("case record client is required")
	}
	if p.Generator == nil {
		return Result{}, errors.New("generator is required")
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "document_type", dt)
	logger.Info("starting case creation")

	tracker := NewProgressTracker(cfg.Stages)
	tracker.now = now

	var audit RunTrace
	if p.Trace != nil {
		audit = p.Trace.StartRun(runID, dt)
	}

	rollback := NewRollbackManager(p.Records, p.Folders, logger)

	title := fmt.Sprintf("Creating %s...", cfg.Label)
	progressID := p.sendProgress(ctx, logger, tracker.Render(title))

	state := &runState{dt: dt, cfg: cfg, userContext: userContext}

	for _, stage := range cfg.Stages {
		if err := tracker.StartStep(stage); err != nil {
			logger.Error("tracker rejected stage start", "stage", stage, "error", err)
			failRemaining(tracker, cfg.Stages)
			rollback.RecordFailure(stage, fmt.Errorf("start stage: %w", err))
			report := rollback.Rollback(ctx)
			p.editProgress(ctx, logger, progressID, tracker.Render(title))
			traceEnd(audit, "rolled back")
			return Result{Message: report, RolledBack: true}, nil
		}
		p.editProgress(ctx, logger, progressID, tracker.Render(title))
		traceEvent(audit, stage, StepInProgress, "")

		res, stageErr := p.runStage(ctx, stage, state, rollback, logger)
		switch res {
		case stageOK:
			if err := tracker.CompleteStep(stage); err != nil {
				logger.Error("tracker rejected stage completion", "stage", stage, "error", err)
			}
			traceEvent(audit, stage, StepCompleted, "")
		case stageSoft:
			logger.Warn("stage degraded", "stage", stage, "error", stageErr)
			_ = tracker.FailStep(stage)
			traceEvent(audit, stage, StepFailed, stageErr.Error())
		case stageFatal:
			logger.Error("stage failed", "stage", stage, "error", stageErr)
			_ = tracker.FailStep(stage)
			traceEvent(audit, stage, StepFailed, stageErr.Error())
			failRemaining(tracker, cfg.Stages)
			rollback.RecordFailure(stage, stageErr)
			report := rollback.Rollback(ctx)
			p.editProgress(ctx, logger, progressID, tracker.Render(title))
			traceEnd(audit, "rolled back")
			return Result{Message: report, RolledBack: true}, nil
		}
		p.editProgress(ctx, logger, progressID, tracker.Render(title))
	}

	result := p.buildSuccess(state)
	logger.Info("case created", "case_id", state.caseID)
	traceEnd(audit, "created "+state.caseID)
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage string, state *runState, rollback *RollbackManager, logger *slog.Logger) (stageResult, error) {
	switch stage {
	case StageInitialization:
		if strings.TrimSpace(state.userContext) == "" {
			return stageFatal, errors.New("empty case context")
		}
		return stageOK, nil

	case StageResearch:
		if p.Research == nil {
			return stageSoft, errors.New("researcher not configured")
		}
		research, err := retry.Do(ctx, "research", func(ctx context.Context) (string, error) {
			return p.Research.Research(ctx, state.userContext, string(state.dt))
		}, p.retryOpts(logger)...)
		if err != nil {
			return stageFatal, fmt.Errorf("research: %w", err)
		}
		state.research = research
		return stageOK, nil

	case StageGeneration:
		env, err := GenerateDraft(ctx, p.Generator, state.cfg, state.userContext, state.research, logger)
		if err != nil {
			return stageFatal, fmt.Errorf("generate draft: %w", err)
		}
		state.env = env
		return stageOK, nil

	case StageCaseRecord:
		return p.createRecord(ctx, state, rollback, logger)

	case StageFolder:
		if p.Folders == nil {
			return stageSoft, errors.New("folder store not configured")
		}
		return p.createFolder(ctx, state, rollback, logger)

	case StageDocument:
		if p.Documents == nil {
			return stageSoft, errors.New("document store not configured")
		}
		if state.folderID == "" {
			return stageSoft, errors.New("no case folder to hold the document")
		}
		return p.createDocument(ctx, state, rollback, logger)

	case StageFinalization:
		if state.folderLink == "" && state.docLink == "" {
			return stageOK, nil
		}
		_, err := retry.Do(ctx, "update record links", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.Records.UpdateRecordLinks(ctx, state.recordID, state.folderLink, state.docLink)
		}, p.retryOpts(logger)...)
		if err != nil {
			return stageFatal, fmt.Errorf("finalize record: %w", err)
		}
		return stageOK, nil

	default:
		return stageFatal, fmt.Errorf("unknown stage %q", stage)
	}
}

func (p *Pipeline) createRecord(ctx context.Context, state *runState, rollback *RollbackManager, logger *slog.Logger) (stageResult, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	lastID, err := retry.Do(ctx, "last case id", func(ctx context.Context) (string, error) {
		return p.Records.LastCaseID(ctx, state.cfg.CasePrefix)
	}, p.retryOpts(logger)...)
	if err != nil {
		return stageFatal, fmt.Errorf("allocate case id: %w", err)
	}
	state.caseID = NextCaseID(state.cfg.CasePrefix, lastID, now())

	rec := CaseRecord{
		CaseID:         state.caseID,
		Title:          fmt.Sprintf("%s - %s", state.caseID, SafeSummary(state.env.Summary)),
		DocumentType:   state.dt,
		Persona:        state.cfg.Persona.Name,
		Status:         "open",
		CreatedAt:      now(),
		InitialContext: state.userContext,
		Summary:        state.env.Summary,
		Thesis:         state.env.Thesis,
		LegalArea:      state.env.LegalArea,
		SpecificPoint:  state.env.SpecificPoint,
	}

	type created struct{ id, link string }
	got, err := retry.Do(ctx, "create case record", func(ctx context.Context) (created, error) {
		id, link, err := p.Records.CreateRecord(ctx, rec)
		return created{id, link}, err
	}, p.retryOpts(logger)...)
	if err != nil {
		return stageFatal, fmt.Errorf("create case record: %w", err)
	}
	state.recordID = got.id
	state.recordLink = got.link
	rollback.RegisterCaseRecord(got.id)
	return stageOK, nil
}

func (p *Pipeline) createFolder(ctx context.Context, state *runState, rollback *RollbackManager, logger *slog.Logger) (stageResult, error) {
	name := fmt.Sprintf("%s - %s", state.caseID, SafeSummary(state.env.Summary))

	type created struct{ link, id string }
	got, err := retry.Do(ctx, "create case folder", func(ctx context.Context) (created, error) {
		link, id, err := p.Folders.CreateCaseFolder(ctx, state.dt, name)
		return created{link, id}, err
	}, p.retryOpts(logger)...)
	if err != nil {
		return stageFatal, fmt.Errorf("create case folder: %w", err)
	}
	state.folderID = got.id
	state.folderLink = got.link
	rollback.RegisterFolder(got.id)

	for _, sub := range state.cfg.Subfolders {
		_, err := retry.Do(ctx, "create subfolder", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.Folders.CreateSubfolder(ctx, got.id, sub)
		}, p.retryOpts(logger)...)
		if err != nil {
			return stageFatal, fmt.Errorf("create subfolder %q: %w", sub, err)
		}
	}
	return stageOK, nil
}

func (p *Pipeline) createDocument(ctx context.Context, state *runState, rollback *RollbackManager, logger *slog.Logger) (stageResult, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	body := state.env.Content
	if p.Templates != nil {
		if tpl, err := p.Templates.ForDocumentType(string(state.dt)); err == nil {
			body = template.Merge(tpl, map[string]string{
				"CASE_ID":  state.caseID,
				"DATE":     now().Format("2006-01-02"),
				"CONTEXT":  state.env.Content,
				"RESEARCH": state.research,
			})
		} else {
			logger.Warn("no template for document type, using raw draft", "error", err)
		}
	}

	title := fmt.Sprintf("%s - %s", state.caseID, state.cfg.Label)
	type created struct{ link, id string }
	got, err := retry.Do(ctx, "create document", func(ctx context.Context) (created, error) {
		link, id, err := p.Documents.CreateDocument(ctx, title, body, state.folderID)
		return created{link, id}, err
	}, p.retryOpts(logger)...)
	if err != nil {
		return stageFatal, fmt.Errorf("create document: %w", err)
	}
	state.docLink = got.link
	rollback.RegisterDocument(got.id)
	return stageOK, nil
}

func (p *Pipeline) buildSuccess(state *runState) Result {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s\n\n", state.cfg.ResponseHeader)
	fmt.Fprintf(&b, "Case: %s\n", state.caseID)
	fmt.Fprintf(&b, "Type: %s\n", state.cfg.Label)
	fmt.Fprintf(&b, "Subject: %s\n\n", SafeSummary(state.env.Summary))

	if state.recordLink != "" {
		fmt.Fprintf(&b, "📋 Case record: %s\n", state.recordLink)
	}
	if state.folderLink != "" {
		fmt.Fprintf(&b, "📁 Case folder: %s\n", state.folderLink)
	} else {
		b.WriteString("❌ Case folder unavailable\n")
	}
	if state.docLink != "" {
		fmt.Fprintf(&b, "📄 Draft document: %s\n", state.docLink)
	} else {
		b.WriteString("❌ Draft document unavailable\n")
	}

	result := Result{CaseID: state.caseID, Message: b.String()}
	if state.cfg.UseDeepLink && p.DeepLinkBase != "" {
		result.DeepLink = p.DeepLinkBase + state.caseID
		fmt.Fprintf(&b, "\n🔗 Continue working on this case: %s\n", result.DeepLink)
		result.Message = b.String()
	}
	return result
}

func (p *Pipeline) retryOpts(logger *slog.Logger) []retry.Option {
	opts := []retry.Option{retry.WithLogger(logger)}
	return append(opts, p.RetryOptions...)
}

func (p *Pipeline) sendProgress(ctx context.Context, logger *slog.Logger, text string) string {
	if p.Progress == nil {
		return ""
	}
	id, err := p.Progress.Send(ctx, text)
	if err != nil {
		logger.Warn("progress send failed", "error", err)
		return ""
	}
	return id
}

func (p *Pipeline) editProgress(ctx context.Context, logger *slog.Logger, id, text string) {
	if p.Progress == nil || id == "" {
		return
	}
	if err := p.Progress.Edit(ctx, id, text); err != nil {
		logger.Warn("progress edit failed", "error", err)
	}
}

func traceEvent(audit RunTrace, stage string, status StepStatus, detail string) {
	if audit != nil {
		audit.StageEvent(stage, status, detail)
	}
}

func traceEnd(audit RunTrace, outcome string) {
	if audit != nil {
		audit.End(outcome)
	}
}

// failRemaining marks stages that never ran as failed so the final progress
// render shows the whole plan resolved.
func failRemaining(tracker *ProgressTracker, stages []string) {
	for _, s := range stages {
		if tracker.Status(s) == StepPending {
			_ = tracker.FailStep(s)
		}
	}
}
