// Package casepipe orchestrates the creation of a legal case file across a
// case tracker, a folder store and a document store, driven by AI-generated
// content. A run walks a fixed sequence of stages with live progress
// reporting, and best-effort rollback of already-created resources when a
// stage fails.
package casepipe

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentComplaint     DocumentType = "complaint"
	DocumentClaim         DocumentType = "claim"
	DocumentCommunication DocumentType = "communication"
)

var ErrUnknownDocumentType = errors.New("unknown document type")

// Persona is the drafting voice tied to a document type. It travels with the
// type and is written onto the case record, so a later refinement pass reads
// it from the record instead of re-deriving it from the case-id prefix.
type Persona struct {
	Name         string
	SystemPrompt string
}

// Config is the per-document-type pipeline configuration.
type Config struct {
	CasePrefix       string
	Label            string
	Subfolders       []string
	MinContentLength int
	ResponseHeader   string
	UseDeepLink      bool
	Persona          Persona
	Stages           []string
}

// Stage names. Initialization is always first and Finalization always last;
// the order in between is per-document-type configuration.
const (
	StageInitialization = "Initialization"
	StageResearch       = "Research"
	StageGeneration     = "Document Generation"
	StageCaseRecord     = "Case Record"
	StageFolder         = "Folder Structure"
	StageDocument       = "Document Draft"
	StageFinalization   = "Finalization"
)

func defaultStages() []string {
	return []string{
		StageInitialization,
		StageResearch,
		StageGeneration,
		StageCaseRecord,
		StageFolder,
		StageDocument,
		StageFinalization,
	}
}

var documentConfigs = map[DocumentType]Config{
	DocumentComplaint: {
		CasePrefix:       "D",
		Label:            "Inspectorate Complaint",
		Subfolders:       []string{"Evidence", "Responses"},
		MinContentLength: 200,
		ResponseHeader:   "CASE FILE CREATED",
		UseDeepLink:      true,
		Persona: Persona{
			Name:         "inspector",
			SystemPrompt: inspectorPrompt,
		},
	},
	DocumentClaim: {
		CasePrefix:       "J",
		Label:            "Court Claim",
		Subfolders:       []string{"Evidence", "Proceedings"},
		MinContentLength: 500,
		ResponseHeader:   "COURT CASE FILE CREATED",
		UseDeepLink:      true,
		Persona: Persona{
			Name:         "litigator",
			SystemPrompt: litigatorPrompt,
		},
	},
	DocumentCommunication: {
		CasePrefix:       "E",
		Label:            "HR Communication",
		Subfolders:       nil,
		MinContentLength: 100,
		ResponseHeader:   "COMMUNICATION CREATED",
		UseDeepLink:      false,
		Persona: Persona{
			Name:         "communicator",
			SystemPrompt: communicatorPrompt,
		},
	},
}

// ConfigFor returns the pipeline configuration for a document type.
func ConfigFor(dt DocumentType) (Config, error) {
	cfg, ok := documentConfigs[dt]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownDocumentType, dt)
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = defaultStages()
	}
	return cfg, nil
}

var caseIDPattern = regexp.MustCompile(`^([A-Z])-(\d{4})-(\d+)$`)

// NextCaseID allocates the next case id in the <Prefix>-<Year>-<NNN> format.
// lastID is the highest existing id for the prefix, or empty when none exist.
// The sequence restarts at 001 each year.
func NextCaseID(prefix, lastID string, now time.Time) string {
	year := now.Year()
	seq := 1

	if m := caseIDPattern.FindStringSubmatch(lastID); m != nil {
		lastYear, _ := strconv.Atoi(m[2])
		lastSeq, _ := strconv.Atoi(m[3])
		if lastYear == year {
			seq = lastSeq + 1
		}
	}

	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

var unsafeTitleChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SafeSummary condenses free-form user context into a short single-line label
// usable in folder and record titles.
func SafeSummary(context string) string {
	summary := strings.ReplaceAll(context, "\n", " ")
	runes := []rune(summary)
	if len(runes) > 80 {
		summary = string(runes[:80]) + "..."
	}
	return strings.TrimSpace(unsafeTitleChars.ReplaceAllString(summary, ""))
}
