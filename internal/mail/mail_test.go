package mail

import (
	"testing"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		addr string
		ok   bool
	}{
		{"a@x.io", true},
		{"A@X.IO", true}, // mixed case, normalized before validation
		{"first.last+tag@sub.example.com", true},
		{"no-at-sign", false},
		{"@missing-user.com", false},
		{"user@", false},
	}
	for _, c := range cases {
		err := ValidateAddress(c.addr)
		if (err == nil) != c.ok {
			t.Errorf("ValidateAddress(%q): err=%v, want ok=%v", c.addr, err, c.ok)
		}
	}
}

func TestValidateAddressErrorKind(t *testing.T) {
	err := ValidateAddress("not-an-address")
	e, ok := err.(*smtperr.Err)
	if !ok || e.Kind != smtperr.MailBoxName {
		t.Errorf("expected MailBoxName error, got %v", err)
	}
}

func TestNormalizeLowercases(t *testing.T) {
	if got := Normalize("User@Example.COM"); got != "user@example.com" {
		t.Errorf("got %q", got)
	}
}

func TestMailValidate(t *testing.T) {
	m := Mail{From: "a@x.io", To: "b@y.io"}
	if err := m.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	m.To = "bad"
	if err := m.Validate(); err == nil {
		t.Errorf("expected error for bad To address")
	}
}

func TestHasAttachments(t *testing.T) {
	if (Mail{}).HasAttachments() {
		t.Errorf("empty mail should have no attachments")
	}
	if !(Mail{Attachments: []string{"x.png"}}).HasAttachments() {
		t.Errorf("expected attachments to be detected")
	}
}
