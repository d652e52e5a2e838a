// Package cli provides output helpers for the tanya command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json". Anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its cited sources.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(ans.Sources, ", "))
	}
	return nil
}

// WriteIngestResult writes the stored and skipped files of a batch.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Namespace %s: %d stored, %d skipped (%s)\n",
		res.Namespace, len(res.Stored), len(res.Skipped), res.Duration.Round(time.Millisecond))
	for _, f := range res.Stored {
		fmt.Fprintf(w, "  + %s (%d chunks)\n", f.File, f.Chunks)
	}
	for _, f := range res.Skipped {
		fmt.Fprintf(w, "  - %s: %s\n", f.File, f.Reason)
	}
	return nil
}

// WriteNamespaces writes one namespace per line.
func WriteNamespaces(w io.Writer, names []string, format OutputFormat) error {
	if format == OutputJSON {
		if names == nil {
			names = []string{}
		}
		return writeJSON(w, names)
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "No namespaces.")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

// WriteHistory writes a namespace's conversation, oldest first. In text mode long
// messages are shortened to maxWords words (0 = no limit).
func WriteHistory(w io.Writer, namespace string, turns []models.ConversationTurn, format OutputFormat, maxWords int) error {
	if format == OutputJSON {
		if turns == nil {
			turns = []models.ConversationTurn{}
		}
		return writeJSON(w, map[string]any{"namespace": namespace, "history": turns})
	}
	if len(turns) == 0 {
		fmt.Fprintf(w, "No conversation in %s.\n", namespace)
		return nil
	}
	for _, t := range turns {
		msg := t.Message
		if maxWords > 0 {
			msg = TruncateWords(msg, maxWords)
		}
		fmt.Fprintf(w, "[%s] %-9s %s\n", t.Timestamp.Format("2006-01-02 15:04:05"), t.Sender+":", msg)
		if len(t.Sources) > 0 {
			fmt.Fprintf(w, "%21s sources: %s\n", "", strings.Join(t.Sources, ", "))
		}
	}
	return nil
}

// WriteStatus writes the /status payload.
func WriteStatus(w io.Writer, status map[string]any, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	for _, key := range []string{"namespaces", "conversation_turns", "disk_usage_bytes"} {
		if v, ok := status[key]; ok {
			fmt.Fprintf(w, "%-20s %v\n", key+":", v)
		}
	}
	if cfg, ok := status["config"].(map[string]any); ok {
		fmt.Fprintln(w, "config:")
		for _, key := range []string{"vector_store_type", "embedding_provider", "embedding_model", "embedding_dimensions", "generation_model", "chunk_size", "chunk_overlap", "database_path", "vector_path", "inbox_dir"} {
			if v, ok := cfg[key]; ok {
				fmt.Fprintf(w, "  %-22s %s\n", key+":", utils.Truncate(fmt.Sprint(v), 80))
			}
		}
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
