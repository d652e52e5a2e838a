package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestQuestion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
		wantNS  string
	}{
		{"empty question", Question{Text: "  ", Namespace: "docs"}, true, ""},
		{"namespace mode requires namespace", Question{Text: "what?"}, true, ""},
		{"reserved namespace", Question{Text: "what?", Namespace: GlobalNamespace}, true, ""},
		{"valid namespace question", Question{Text: " what? ", Namespace: " docs "}, false, "docs"},
		{"global ignores namespace", Question{Text: "what?", Namespace: "docs", Mode: ModeGlobal}, false, ""},
		{"global without namespace", Question{Text: "what?", Mode: ModeGlobal}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if tt.q.Namespace != tt.wantNS {
				t.Errorf("namespace = %q, want %q", tt.q.Namespace, tt.wantNS)
			}
			if tt.q.Text != "what?" {
				t.Errorf("text not trimmed: %q", tt.q.Text)
			}
		})
	}
}

func TestQuestion_ConversationNamespace(t *testing.T) {
	q := Question{Text: "x", Namespace: "docs"}
	if got := q.ConversationNamespace(); got != "docs" {
		t.Errorf("got %q", got)
	}
	q.Mode = ModeGlobal
	if got := q.ConversationNamespace(); got != GlobalNamespace {
		t.Errorf("got %q", got)
	}
}

func TestSource_Key(t *testing.T) {
	a := Source{Namespace: "A", PDFName: "X"}
	b := Source{Namespace: "B", PDFName: "X"}
	if a.Key(ModeGlobal) == b.Key(ModeGlobal) {
		t.Error("same pdf name in different namespaces must produce distinct global keys")
	}
	if a.Key(ModeGlobal) != "A|X" {
		t.Errorf("global key = %q", a.Key(ModeGlobal))
	}
	if a.Key(ModeNamespace) != "X" {
		t.Errorf("namespace key = %q", a.Key(ModeNamespace))
	}
}

func TestValidateNamespace(t *testing.T) {
	valid := []string{"docs", "Team_1", "a-b-c", "x"}
	for _, ns := range valid {
		if err := ValidateNamespace(ns); err != nil {
			t.Errorf("ValidateNamespace(%q) = %v", ns, err)
		}
	}
	invalid := []string{"", GlobalNamespace, "-lead", "has space", "slash/y", string(make([]byte, 64))}
	for _, ns := range invalid {
		if err := ValidateNamespace(ns); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateNamespace(%q) = %v, want ErrValidation", ns, err)
		}
	}
}

func TestUserMessage(t *testing.T) {
	v := fmt.Errorf("%w: namespace is required", ErrValidation)
	if got := UserMessage(v); got != v.Error() {
		t.Errorf("validation message should be echoed, got %q", got)
	}
	internal := fmt.Errorf("%w: dial tcp 10.0.0.1:443: refused", ErrRetrievalFailed)
	if got := UserMessage(internal); got == internal.Error() {
		t.Error("internal detail must not be echoed")
	}
	if UserMessage(nil) != "" {
		t.Error("nil error should map to empty message")
	}
}
