package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type sample struct {
	ID     string `json:"id" yaml:"id"`
	Status string `json:"status" yaml:"status"`
}

func (s sample) String() string { return s.ID + " " + s.Status }

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, " yaml ": FormatYAML, "text": FormatText} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}

func TestWriterFormats(t *testing.T) {
	v := sample{ID: "run-1", Status: "passed"}

	var buf bytes.Buffer
	if err := New(FormatJSON, WithWriter(&buf)).Write(v); err != nil {
		t.Fatalf("json write: %v", err)
	}
	var decoded sample
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded != v {
		t.Fatalf("json output %q decoded to %+v (%v)", buf.String(), decoded, err)
	}

	buf.Reset()
	if err := New(FormatYAML, WithWriter(&buf)).Write(v); err != nil {
		t.Fatalf("yaml write: %v", err)
	}
	decoded = sample{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded != v {
		t.Fatalf("yaml output %q decoded to %+v (%v)", buf.String(), decoded, err)
	}

	buf.Reset()
	if err := New(FormatText, WithWriter(&buf)).Write(v); err != nil {
		t.Fatalf("text write: %v", err)
	}
	if buf.String() != "run-1 passed\n" {
		t.Fatalf("text output = %q", buf.String())
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []string{"ID", "STATUS"}, [][]string{{"a", "passed"}, {"bbbb", "failed"}})
	if err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", buf.String())
	}
	if strings.Index(lines[1], "passed") != strings.Index(lines[2], "failed") {
		t.Fatalf("columns not aligned:\n%s", buf.String())
	}
}

func TestGlobalMode(t *testing.T) {
	t.Cleanup(func() { SetOutputMode(FormatText) })
	SetOutputMode(FormatYAML)
	if !IsStructured() || GetOutputMode() != FormatYAML {
		t.Fatalf("mode = %q", GetOutputMode())
	}
}

func TestBadgeContainsLabel(t *testing.T) {
	for _, s := range []string{"passed", "failed", "skipped", "cancelled"} {
		if !strings.Contains(Badge(s), strings.ToUpper(s)) {
			t.Errorf("Badge(%q) = %q", s, Badge(s))
		}
	}
}
