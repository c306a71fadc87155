package casepipe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FailureRecord captures the first fatal error of a run. Later failures do
// not overwrite it so the report names the original cause.
type FailureRecord struct {
	Stage string
	Cause error
}

// RollbackManager registers resources as the pipeline creates them and
// deletes them in reverse dependency order when the run aborts. Deleting the
// folder removes documents filed inside it, so a document is deleted directly
// only when no folder was created.
type RollbackManager struct {
	records RecordDeleter
	objects ObjectDeleter
	logger  *slog.Logger

	caseRecordID string
	folderID     string
	documentID   string
	failure      *FailureRecord
}

// RecordDeleter deletes a case record by id.
type RecordDeleter interface {
	DeleteRecord(ctx context.Context, recordID string) error
}

// ObjectDeleter deletes a folder or document by id.
type ObjectDeleter interface {
	Delete(ctx context.Context, id string) error
}

func NewRollbackManager(records RecordDeleter, objects ObjectDeleter, logger *slog.Logger) *RollbackManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RollbackManager{records: records, objects: objects, logger: logger}
}

func (r *RollbackManager) RegisterCaseRecord(id string) { r.caseRecordID = id }
func (r *RollbackManager) RegisterFolder(id string)     { r.folderID = id }
func (r *RollbackManager) RegisterDocument(id string)   { r.documentID = id }

// RecordFailure stores the failed stage and cause. Only the first call takes
// effect.
func (r *RollbackManager) RecordFailure(stage string, cause error) {
	if r.failure != nil {
		return
	}
	r.failure = &FailureRecord{Stage: stage, Cause: cause}
}

func (r *RollbackManager) Failure() *FailureRecord { return r.failure }

// Rollback deletes registered resources and returns a human-readable report.
// Individual deletion failures are logged and left out of the reverted list;
// they never interrupt the remaining deletions.
func (r *RollbackManager) Rollback(ctx context.Context) string {
	var reverted []string

	if r.documentID != "" && r.folderID == "" && r.objects != nil {
		if err := r.objects.Delete(ctx, r.documentID); err != nil {
			r.logger.Error("rollback: delete document failed", "id", r.documentID, "error", err)
		} else {
			reverted = append(reverted, "draft document")
		}
	}

	if r.folderID != "" && r.objects != nil {
		if err := r.objects.Delete(ctx, r.folderID); err != nil {
			r.logger.Error("rollback: delete folder failed", "id", r.folderID, "error", err)
		} else {
			reverted = append(reverted, "case folder")
			if r.documentID != "" {
				reverted = append(reverted, "draft document")
			}
		}
	}

	if r.caseRecordID != "" && r.records != nil {
		if err := r.records.DeleteRecord(ctx, r.caseRecordID); err != nil {
			r.logger.Error("rollback: delete case record failed", "id", r.caseRecordID, "error", err)
		} else {
			reverted = append(reverted, "case record")
		}
	}

	var b strings.Builder
	b.WriteString("❌ Case creation failed")
	if r.failure != nil {
		fmt.Fprintf(&b, " at stage %q: %v", r.failure.Stage, r.failure.Cause)
	}
	b.WriteString("\n\n")
	if len(reverted) == 0 {
		b.WriteString("No artifacts to revert.")
	} else {
		b.WriteString("Reverted:\n")
		for _, item := range reverted {
			b.WriteString("• ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	return b.String()
}
