// Package config assembles a production pipeline from environment
// variables, with an optional .env file loader for local development.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nexxia-ai/casepipe"
	"github.com/nexxia-ai/casepipe/ai"
	"github.com/nexxia-ai/casepipe/ai/openrouter"
	"github.com/nexxia-ai/casepipe/ai/perplexity"
	"github.com/nexxia-ai/casepipe/store/docs"
	"github.com/nexxia-ai/casepipe/store/drive"
	"github.com/nexxia-ai/casepipe/store/notion"
	"github.com/nexxia-ai/casepipe/template"
	"github.com/nexxia-ai/casepipe/trace"
)

const (
	defaultPrimaryModel  = "deepseek/deepseek-chat"
	defaultFallbackModel = "google/gemma-3-27b-it"
	defaultRepairModel   = "qwen/qwen3-4b"
)

type Config struct {
	NotionAPIKey     string
	NotionDatabaseID string

	DriveToken         string
	RootComplaints     string
	RootClaims         string
	RootCommunications string

	OpenRouterAPIKey string
	PrimaryModel     string
	FallbackModel    string
	RepairModel      string

	PerplexityPrimaryKey  string
	PerplexityFallbackKey string

	DeepLinkBase string
	TraceDir     string
}

// FromEnv reads the configuration from the process environment. Missing
// optional entries leave their pipeline collaborator unset, which degrades
// the matching stage instead of failing the run.
func FromEnv() Config {
	return Config{
		NotionAPIKey:     os.Getenv("NOTION_API_KEY"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),

		DriveToken:         os.Getenv("GOOGLE_DRIVE_TOKEN"),
		RootComplaints:     os.Getenv("DRIVE_ROOT_COMPLAINTS"),
		RootClaims:         os.Getenv("DRIVE_ROOT_CLAIMS"),
		RootCommunications: os.Getenv("DRIVE_ROOT_COMMUNICATIONS"),

		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		PrimaryModel:     envOrDefault("DRAFT_MODEL_PRIMARY", defaultPrimaryModel),
		FallbackModel:    envOrDefault("DRAFT_MODEL_FALLBACK", defaultFallbackModel),
		RepairModel:      envOrDefault("REPAIR_MODEL", defaultRepairModel),

		PerplexityPrimaryKey:  os.Getenv("PERPLEXITY_API_KEY_PRIMARY"),
		PerplexityFallbackKey: os.Getenv("PERPLEXITY_API_KEY_FALLBACK"),

		DeepLinkBase: os.Getenv("DEEP_LINK_BASE"),
		TraceDir:     os.Getenv("TRACE_DIR"),
	}
}

// BuildPipeline wires the configured collaborators into a pipeline. The case
// tracker and the generation models are required; everything else is
// optional.
func (c Config) BuildPipeline() (*casepipe.Pipeline, error) {
	if c.NotionAPIKey == "" || c.NotionDatabaseID == "" {
		return nil, fmt.Errorf("NOTION_API_KEY and NOTION_DATABASE_ID are required")
	}
	if c.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	templates, err := template.NewLibrary()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	pair := ai.ModelPair{
		Primary:  openrouter.NewModel(c.PrimaryModel, c.OpenRouterAPIKey),
		Fallback: openrouter.NewModel(c.FallbackModel, c.OpenRouterAPIKey),
	}
	repair := openrouter.NewModel(c.RepairModel, c.OpenRouterAPIKey)
	completer := ai.NewCompleter(map[ai.TaskCategory]ai.ModelPair{
		ai.TaskDraft:      pair,
		ai.TaskRefinement: pair,
	}, repair)

	p := &casepipe.Pipeline{
		Records:      notion.NewClient(c.NotionAPIKey, c.NotionDatabaseID),
		Generator:    completer,
		Templates:    templates,
		DeepLinkBase: c.DeepLinkBase,
	}

	if c.DriveToken != "" {
		roots := map[casepipe.DocumentType]string{}
		if c.RootComplaints != "" {
			roots[casepipe.DocumentComplaint] = c.RootComplaints
		}
		if c.RootClaims != "" {
			roots[casepipe.DocumentClaim] = c.RootClaims
		}
		if c.RootCommunications != "" {
			roots[casepipe.DocumentCommunication] = c.RootCommunications
		}
		p.Folders = drive.NewClient(c.DriveToken, roots)
		p.Documents = docs.NewClient(c.DriveToken)
	}

	if c.PerplexityPrimaryKey != "" || c.PerplexityFallbackKey != "" {
		p.Research = perplexity.NewClient(c.PerplexityPrimaryKey, c.PerplexityFallbackKey)
	}

	if c.TraceDir != "" {
		p.Trace = trace.NewTracer(trace.TraceConfig{Directory: c.TraceDir})
	}

	return p, nil
}

// LoadEnvFile reads KEY=VALUE pairs into the process environment. Blank
// lines and # comments are skipped; an optional "export " prefix and
// surrounding quotes are stripped.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid env line: %s", line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading env file: %w", err)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
