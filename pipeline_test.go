package casepipe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexxia-ai/casepipe/ai"
	"github.com/nexxia-ai/casepipe/retry"
)

type fakeRecords struct {
	lastID      string
	lastIDErrs  []error
	createErr   error
	linksErr    error
	created     []CaseRecord
	deleted     []string
	linkUpdates int
	folderLink  string
	docLink     string
}

func (f *fakeRecords) CreateRecord(_ context.Context, rec CaseRecord) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	f.created = append(f.created, rec)
	return "rec-" + rec.CaseID, "https://tracker.example/" + rec.CaseID, nil
}

func (f *fakeRecords) DeleteRecord(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRecords) LastCaseID(_ context.Context, _ string) (string, error) {
	if len(f.lastIDErrs) > 0 {
		err := f.lastIDErrs[0]
		f.lastIDErrs = f.lastIDErrs[1:]
		return "", err
	}
	return f.lastID, nil
}

func (f *fakeRecords) UpdateRecordLinks(_ context.Context, _, folderLink, docLink string) error {
	if f.linksErr != nil {
		return f.linksErr
	}
	f.linkUpdates++
	f.folderLink = folderLink
	f.docLink = docLink
	return nil
}

type fakeFolders struct {
	createErr  error
	subfolders []string
	deleted    []string
}

func (f *fakeFolders) CreateCaseFolder(_ context.Context, _ DocumentType, name string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return "https://files.example/" + name, "folder-1", nil
}

func (f *fakeFolders) CreateSubfolder(_ context.Context, _, name string) error {
	f.subfolders = append(f.subfolders, name)
	return nil
}

func (f *fakeFolders) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeDocs struct {
	titles []string
	bodies []string
}

func (f *fakeDocs) CreateDocument(_ context.Context, title, content, _ string) (string, string, error) {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, content)
	return "https://docs.example/" + title, "doc-1", nil
}

type fakeSink struct {
	sends []string
	edits []string
}

func (f *fakeSink) Send(_ context.Context, text string) (string, error) {
	f.sends = append(f.sends, text)
	return "msg-1", nil
}

func (f *fakeSink) Edit(_ context.Context, _, text string) error {
	f.edits = append(f.edits, text)
	return nil
}

type staticGenerator struct{ response string }

func (g staticGenerator) Complete(_ context.Context, _ []ai.Message, _ ai.TaskCategory, _ *ai.ResponseFormat) (string, error) {
	return g.response, nil
}

func fastRetries() []retry.Option {
	return []retry.Option{retry.WithInitialDelay(time.Millisecond)}
}

func newTestPipeline(records *fakeRecords, folders FolderStoreClient, docs DocumentStoreClient) *Pipeline {
	p := &Pipeline{
		Records:      records,
		Generator:    staticGenerator{response: envelopeJSON(600)},
		Now:          func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
		RetryOptions: fastRetries(),
	}
	if folders != nil {
		p.Folders = folders
	}
	if docs != nil {
		p.Documents = docs
	}
	return p
}

func TestExecuteSuccess(t *testing.T) {
	records := &fakeRecords{}
	folders := &fakeFolders{}
	docs := &fakeDocs{}
	sink := &fakeSink{}

	p := newTestPipeline(records, folders, docs)
	p.Progress = sink
	p.DeepLinkBase = "https://bot.example/start?case="

	res, err := p.Execute(context.Background(), DocumentComplaint, "my employer withholds wages")
	require.NoError(t, err)

	assert.False(t, res.RolledBack)
	assert.Equal(t, "D-2026-001", res.CaseID)
	assert.Contains(t, res.Message, "CASE FILE CREATED")
	assert.Contains(t, res.Message, "https://tracker.example/D-2026-001")
	assert.Contains(t, res.Message, "https://files.example/")
	assert.Contains(t, res.Message, "https://docs.example/")
	assert.Equal(t, "https://bot.example/start?case=D-2026-001", res.DeepLink)

	require.Len(t, records.created, 1)
	assert.Equal(t, "open", records.created[0].Status)
	assert.Equal(t, DocumentComplaint, records.created[0].DocumentType)
	assert.Equal(t, []string{"Evidence", "Responses"}, folders.subfolders)
	assert.Equal(t, 1, records.linkUpdates)
	assert.NotEmpty(t, records.folderLink)
	assert.NotEmpty(t, records.docLink)

	require.Len(t, sink.sends, 1)
	require.NotEmpty(t, sink.edits)
	final := sink.edits[len(sink.edits)-1]
	assert.NotContains(t, final, "⬜")
	assert.NotContains(t, final, "⏳")
}

func TestExecuteSequenceContinuesFromLastID(t *testing.T) {
	records := &fakeRecords{lastID: "D-2026-007"}
	p := newTestPipeline(records, nil, nil)

	res, err := p.Execute(context.Background(), DocumentComplaint, "facts")
	require.NoError(t, err)
	assert.Equal(t, "D-2026-008", res.CaseID)
}

func TestExecuteDegradedWithoutStores(t *testing.T) {
	records := &fakeRecords{}
	p := newTestPipeline(records, nil, nil)

	res, err := p.Execute(context.Background(), DocumentComplaint, "facts")
	require.NoError(t, err)

	// run still succeeds with the record alone
	assert.False(t, res.RolledBack)
	assert.Equal(t, "D-2026-001", res.CaseID)
	assert.Contains(t, res.Message, "❌ Case folder unavailable")
	assert.Contains(t, res.Message, "❌ Draft document unavailable")
	assert.Empty(t, records.deleted)
	assert.Zero(t, records.linkUpdates)
}

func TestExecuteDocumentSkippedWithoutFolder(t *testing.T) {
	records := &fakeRecords{}
	docs := &fakeDocs{}
	p := newTestPipeline(records, nil, docs)

	res, err := p.Execute(context.Background(), DocumentComplaint, "facts")
	require.NoError(t, err)

	// no folder means no document; the run still succeeds with the record
	assert.False(t, res.RolledBack)
	assert.Empty(t, docs.titles)
	assert.NotContains(t, res.Message, "https://docs.example/")
	assert.Contains(t, res.Message, "❌ Draft document unavailable")
}

func TestExecuteFolderFailureRollsBack(t *testing.T) {
	records := &fakeRecords{}
	folders := &fakeFolders{createErr: errors.New("quota exceeded")}
	p := newTestPipeline(records, folders, &fakeDocs{})

	res, err := p.Execute(context.Background(), DocumentComplaint, "facts")
	require.NoError(t, err)

	assert.True(t, res.RolledBack)
	assert.Contains(t, res.Message, StageFolder)
	assert.Contains(t, res.Message, "quota exceeded")
	assert.Contains(t, res.Message, "case record")
	assert.Equal(t, []string{"rec-D-2026-001"}, records.deleted)
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	records := &fakeRecords{
		lastIDErrs: []error{fmt.Errorf("tracker busy: %w", retry.ErrTemporary)},
	}
	p := newTestPipeline(records, nil, nil)

	res, err := p.Execute(context.Background(), DocumentComplaint, "facts")
	require.NoError(t, err)
	assert.False(t, res.RolledBack)
	assert.Equal(t, "D-2026-001", res.CaseID)
}

func TestExecuteNonTransientErrorFailsFast(t *testing.T) {
	records := &fakeRecords{createErr: errors.New("unauthorized")}
	p := newTestPipeline(records, nil, nil)

	res, err := p.Execute(context.Background(), DocumentComplaint, "facts")
	require.NoError(t, err)
	assert.True(t, res.RolledBack)
	assert.Contains(t, res.Message, "No artifacts to revert")
}

func TestExecuteEmptyContext(t *testing.T) {
	p := newTestPipeline(&fakeRecords{}, nil, nil)

	res, err := p.Execute(context.Background(), DocumentComplaint, "   ")
	require.NoError(t, err)
	assert.True(t, res.RolledBack)
	assert.Contains(t, res.Message, StageInitialization)
}

func TestExecuteUnknownDocumentType(t *testing.T) {
	p := newTestPipeline(&fakeRecords{}, nil, nil)
	_, err := p.Execute(context.Background(), "memo", "facts")
	assert.ErrorIs(t, err, ErrUnknownDocumentType)
}

func TestExecuteRepeatedStageAborts(t *testing.T) {
	const dt = DocumentType("duplicated")
	documentConfigs[dt] = Config{
		CasePrefix:     "X",
		Label:          "Duplicated",
		ResponseHeader: "CREATED",
		Stages:         []string{StageInitialization, StageInitialization, StageFinalization},
	}
	defer delete(documentConfigs, dt)

	records := &fakeRecords{}
	p := newTestPipeline(records, nil, nil)

	res, err := p.Execute(context.Background(), dt, "facts")
	require.NoError(t, err)

	// a stage that cannot start again aborts the run instead of running twice
	assert.True(t, res.RolledBack)
	assert.Contains(t, res.Message, StageInitialization)
	assert.Contains(t, res.Message, "No artifacts to revert")
	assert.Empty(t, records.created)
}

func TestExecuteNoDeepLinkForCommunications(t *testing.T) {
	p := newTestPipeline(&fakeRecords{}, nil, nil)
	p.DeepLinkBase = "https://bot.example/start?case="

	res, err := p.Execute(context.Background(), DocumentCommunication, "facts")
	require.NoError(t, err)
	assert.Equal(t, "E-2026-001", res.CaseID)
	assert.Empty(t, res.DeepLink)
}
