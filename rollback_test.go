package casepipe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecordDeleter struct {
	deleted []string
	err     error
}

func (f *fakeRecordDeleter) DeleteRecord(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeObjectDeleter struct {
	deleted []string
	err     error
}

func (f *fakeObjectDeleter) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestRollbackOrder(t *testing.T) {
	records := &fakeRecordDeleter{}
	objects := &fakeObjectDeleter{}
	rb := NewRollbackManager(records, objects, nil)

	rb.RegisterCaseRecord("rec-1")
	rb.RegisterFolder("folder-1")
	rb.RegisterDocument("doc-1")
	rb.RecordFailure(StageFinalization, errors.New("link update failed"))

	report := rb.Rollback(context.Background())

	// folder first, document rides along with it, record last
	assert.Equal(t, []string{"folder-1"}, objects.deleted)
	assert.Equal(t, []string{"rec-1"}, records.deleted)
	assert.Contains(t, report, StageFinalization)
	assert.Contains(t, report, "link update failed")
	assert.Contains(t, report, "case folder")
	assert.Contains(t, report, "draft document")
	assert.Contains(t, report, "case record")
}

func TestRollbackDocumentWithoutFolder(t *testing.T) {
	objects := &fakeObjectDeleter{}
	rb := NewRollbackManager(&fakeRecordDeleter{}, objects, nil)

	rb.RegisterDocument("doc-1")
	rb.Rollback(context.Background())

	assert.Equal(t, []string{"doc-1"}, objects.deleted)
}

func TestRollbackNothingRegistered(t *testing.T) {
	rb := NewRollbackManager(&fakeRecordDeleter{}, &fakeObjectDeleter{}, nil)
	rb.RecordFailure(StageResearch, errors.New("boom"))

	report := rb.Rollback(context.Background())
	assert.Contains(t, report, "No artifacts to revert")
	assert.Contains(t, report, StageResearch)
}

func TestRollbackDeletionFailureIsNonFatal(t *testing.T) {
	records := &fakeRecordDeleter{}
	objects := &fakeObjectDeleter{err: errors.New("store down")}
	rb := NewRollbackManager(records, objects, nil)

	rb.RegisterCaseRecord("rec-1")
	rb.RegisterFolder("folder-1")

	report := rb.Rollback(context.Background())

	// folder deletion failed but the record was still reverted
	require.Equal(t, []string{"rec-1"}, records.deleted)
	assert.NotContains(t, report, "case folder")
	assert.Contains(t, report, "case record")
}

func TestRecordFailureFirstWins(t *testing.T) {
	rb := NewRollbackManager(nil, nil, nil)
	rb.RecordFailure(StageCaseRecord, errors.New("first"))
	rb.RecordFailure(StageFolder, errors.New("second"))

	require.NotNil(t, rb.Failure())
	assert.Equal(t, StageCaseRecord, rb.Failure().Stage)
	assert.EqualError(t, rb.Failure().Cause, "first")
}
