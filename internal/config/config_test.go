package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/submitq/smtpsubmit/internal/mail"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "smtpsubmit.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimal = `
[user]
address = "me@example.com"
password = "hunter2"

[server]
address = "smtp.example.com"
port = 587
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimal)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := f.SessionConfig()
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", cfg.Timeout)
	}
	if !cfg.Pipeline {
		t.Errorf("expected pipeline default true")
	}
	if cfg.AutoQuit {
		t.Errorf("expected auto_quit default false")
	}
	if f.Parallel() {
		t.Errorf("expected parallel default false")
	}
	if f.MaxChannels() != DefaultMaxChannels {
		t.Errorf("expected default max channels, got %d", f.MaxChannels())
	}
}

func TestLoadMissingUserAddress(t *testing.T) {
	path := writeConfig(t, `
[user]
password = "x"
[server]
address = "smtp.example.com"
port = 587
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing [user] address")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, minimal+"\nbogus = true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown key in [server]")
	}
}

func TestLoadMaxChannelsHyphenAlias(t *testing.T) {
	path := writeConfig(t, minimal+"\n[config]\nmax-channels = 16\n")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.MaxChannels(); got != 16 {
		t.Errorf("expected max-channels alias to set 16, got %d", got)
	}
}

func TestLoadMailsAndCredentials(t *testing.T) {
	path := writeConfig(t, minimal+`
[[mail]]
address = "a@example.com"
subject = "hi"
text = "hello"

[[mail]]
address = "b@example.com"
subject = "hi2"
text = "hello2"
attach = ["/tmp/x.txt"]
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mails := f.Mails()
	want := []mail.Mail{
		{Subject: "hi", From: "me@example.com", To: "a@example.com", Text: "hello"},
		{Subject: "hi2", From: "me@example.com", To: "b@example.com", Text: "hello2",
			Attachments: []string{"/tmp/x.txt"}},
	}
	if diff := cmp.Diff(want, mails); diff != "" {
		t.Errorf("Mails() mismatch (-want +got):\n%s", diff)
	}

	cred := f.Credentials()
	if cred.Username != "me@example.com" || cred.Password != "hunter2" {
		t.Errorf("unexpected credentials: %+v", cred)
	}
}

func TestLoadExplicitUsernameOverridesAddress(t *testing.T) {
	path := writeConfig(t, `
[user]
address = "me@example.com"
username = "me-login"
password = "hunter2"
[server]
address = "smtp.example.com"
port = 587
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Credentials().Username; got != "me-login" {
		t.Errorf("expected explicit username to win, got %q", got)
	}
}
