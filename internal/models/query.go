package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects between single-namespace and federated answering.
type Mode int

const (
	ModeNamespace Mode = iota
	ModeGlobal
)

func (m Mode) String() string {
	if m == ModeGlobal {
		return "global"
	}
	return "namespace"
}

// Question is an answer request.
type Question struct {
	Text      string `json:"question"`
	Namespace string `json:"namespace,omitempty"`
	Mode      Mode   `json:"-"`
}

// Validate trims the question and checks mode-dependent requirements.
// In global mode the namespace is ignored and cleared.
func (q *Question) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	q.Namespace = strings.TrimSpace(q.Namespace)
	if q.Text == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrValidation)
	}
	if q.Mode == ModeGlobal {
		q.Namespace = ""
		return nil
	}
	if q.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", ErrValidation)
	}
	if q.Namespace == GlobalNamespace {
		return fmt.Errorf("%w: namespace %q is reserved", ErrValidation, GlobalNamespace)
	}
	return nil
}

// ConversationNamespace is the partition the question's turns are recorded under.
func (q *Question) ConversationNamespace() string {
	if q.Mode == ModeGlobal {
		return GlobalNamespace
	}
	return q.Namespace
}

// Source identifies one document a piece of evidence came from.
type Source struct {
	Namespace string `json:"namespace"`
	PDFName   string `json:"pdf_name"`
}

// Key returns the grouping key for mode: "namespace|pdfName" in global mode, pdfName otherwise.
func (s Source) Key(mode Mode) string {
	if mode == ModeGlobal {
		return s.Namespace + "|" + s.PDFName
	}
	return s.PDFName
}

// Answer is the orchestrator's reply.
type Answer struct {
	Text     string   `json:"answer"`
	Sources  []string `json:"sources"`
	Fallback bool     `json:"fallback,omitempty"`
}

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)

// ValidateNamespace checks that name can be used as an ingestion target.
func ValidateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("%w: namespace is required", ErrValidation)
	}
	if name == GlobalNamespace {
		return fmt.Errorf("%w: namespace %q is reserved", ErrValidation, GlobalNamespace)
	}
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: namespace %q must be 1-63 letters, digits, '-' or '_'", ErrValidation, name)
	}
	return nil
}
