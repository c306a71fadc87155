package casepipe

import (
	"context"
	"time"
)

// CaseRecord is the row written to the case tracker when a case is created.
type CaseRecord struct {
	CaseID         string
	Title          string
	DocumentType   DocumentType
	Persona        string
	Status         string
	CreatedAt      time.Time
	InitialContext string
	Summary        string
	Thesis         string
	LegalArea      string
	SpecificPoint  string
}

// CaseRecordClient is the case tracker. LastCaseID returns the highest
// existing case id for a prefix, or empty when none exist.
type CaseRecordClient interface {
	CreateRecord(ctx context.Context, rec CaseRecord) (recordID, viewLink string, err error)
	DeleteRecord(ctx context.Context, recordID string) error
	LastCaseID(ctx context.Context, prefix string) (string, error)
	UpdateRecordLinks(ctx context.Context, recordID, folderLink, documentLink string) error
}

// FolderStoreClient is the hierarchical file store.
type FolderStoreClient interface {
	CreateCaseFolder(ctx context.Context, dt DocumentType, name string) (viewLink, folderID string, err error)
	CreateSubfolder(ctx context.Context, parentID, name string) error
	Delete(ctx context.Context, id string) error
}

// DocumentStoreClient is the editable document store. The returned link opens
// the document for editing. When parentID is set the document is filed inside
// that folder.
type DocumentStoreClient interface {
	CreateDocument(ctx context.Context, title, content, parentID string) (viewLink, documentID string, err error)
}

// Researcher produces a legal-context brief for the given facts.
type Researcher interface {
	Research(ctx context.Context, facts string, documentType string) (string, error)
}

// RunTracer opens an audit trail for a run. Stage transitions are written to
// the returned trace as the pipeline advances.
type RunTracer interface {
	StartRun(runID string, dt DocumentType) RunTrace
}

// RunTrace is the audit trail of a single run.
type RunTrace interface {
	StageEvent(stage string, status StepStatus, detail string)
	End(outcome string)
}

// ProgressSink receives the live progress message. Send posts a new message
// and returns its id, Edit replaces an existing one in place.
type ProgressSink interface {
	Send(ctx context.Context, text string) (messageID string, err error)
	Edit(ctx context.Context, messageID, text string) error
}
