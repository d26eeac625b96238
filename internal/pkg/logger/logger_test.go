package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	SetRedactPII(true)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestLog_WritesJSON(t *testing.T) {
	buf := capture(t)

	Info("send finished", "message_id", "m-1", "attempt", 2)

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["level"] != "INFO" || entry["msg"] != "send finished" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["message_id"] != "m-1" || entry["attempt"] != "2" {
		t.Errorf("fields not recorded: %v", entry)
	}
}

func TestLog_RespectsLevel(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("dropped")
	Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("INFO line written at WARN level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("WARN line missing")
	}
}

func TestLog_RedactsPhoneNumbers(t *testing.T) {
	buf := capture(t)

	Info("recipient", "whatsapp_number", "+4915123456789", "note", "contact jane.roe@example.com")

	out := buf.String()
	if strings.Contains(out, "4915123456789") {
		t.Errorf("phone number leaked: %s", out)
	}
	if !strings.Contains(out, "***6789") {
		t.Errorf("expected masked suffix: %s", out)
	}
	if strings.Contains(out, "jane.roe@") || !strings.Contains(out, "ja***@example.com") {
		t.Errorf("embedded email not redacted: %s", out)
	}
}

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "jo***@example.com",
		"ab@example.com":       "***@example.com",
		"garbage":              "***@***",
	}
	for in, want := range cases {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != DEBUG || ParseLevel("warning") != WARN || ParseLevel("ERROR") != ERROR {
		t.Error("unexpected level mapping")
	}
	if ParseLevel("") != INFO {
		t.Error("empty level should default to INFO")
	}
}
