// Package config loads the driver's TOML configuration file: the
// [user]/[server]/[config]/[[mail]] schema described in SPEC_FULL.md,
// almost field-for-field with the original Rust input format, decoded
// with BurntSushi/toml and rejecting any undecoded key the way chasquid's
// config.Load rejects malformed protobuf text.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/submitq/smtpsubmit/internal/mail"
	"github.com/submitq/smtpsubmit/internal/session"
)

// User is the [user] section: the authenticating identity and the
// From-address every mail in the file is sent as.
type User struct {
	Address  string `toml:"address"`
	Name     string `toml:"name"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Server is the [server] section: the submission target.
type Server struct {
	Address string `toml:"address"`
	Port    uint16 `toml:"port"`
}

// Options is the optional [config] section. A pointer field is nil when
// its key is absent; SessionConfig, Parallel and MaxChannels substitute
// the defaults for nil fields. An explicit value, zero included (e.g.
// timeout = 0), is used as given.
type Options struct {
	Retries     *uint32 `toml:"retries"`
	TimeoutSecs *uint64 `toml:"timeout"`
	Parallel    *bool   `toml:"parallel"`
	Logfile     string  `toml:"logfile"`
	MaxChannels *uint32 `toml:"max_channels"`
	AutoQuit    *bool   `toml:"auto_quit"`
	Pipeline    *bool   `toml:"pipeline"`
}

// aliasMaxChannels rewrites the original file format's hyphenated
// "max-channels" key to "max_channels" (spec.md §6's naming) before
// decoding, since TOML key names aren't valid Go identifiers and
// BurntSushi/toml has no built-in alias-tag support.
func aliasMaxChannels(src string) string {
	return strings.ReplaceAll(src, "max-channels", "max_channels")
}

// MailEntry is one [[mail]] table: a single outgoing message.
type MailEntry struct {
	Address string   `toml:"address"`
	Name    string   `toml:"name"`
	Subject string   `toml:"subject"`
	Text    string   `toml:"text"`
	Attach  []string `toml:"attach"`
}

// File is the full decoded configuration file.
type File struct {
	User   User        `toml:"user"`
	Server Server      `toml:"server"`
	Config Options     `toml:"config"`
	Mails  []MailEntry `toml:"mail"`
}

// Defaults matching spec.md §6's configuration knobs.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxChannels = 8
)

// Load reads and strictly decodes the TOML file at path: any key not
// recognized by User, Server, Options, or MailEntry is an error.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	var f File
	md, err := toml.Decode(aliasMaxChannels(string(raw)), &f)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("config: unknown key(s) in %q: %v", path, u)
	}
	if f.User.Address == "" {
		return nil, fmt.Errorf("config: [user] address is required")
	}
	if f.Server.Address == "" {
		return nil, fmt.Errorf("config: [server] address is required")
	}
	return &f, nil
}

// Addr returns the "host:port" dial target.
func (f *File) Addr() string {
	return fmt.Sprintf("%s:%d", f.Server.Address, f.Server.Port)
}

// Credentials builds the mail.Credentials to authenticate with. Username
// defaults to the user's address when not set separately, matching the
// common case where the SMTP login is the From-address itself.
func (f *File) Credentials() mail.Credentials {
	username := f.User.Username
	if username == "" {
		username = f.User.Address
	}
	return mail.Credentials{Username: username, Password: f.User.Password}
}

// SessionConfig builds the session.Config every worker Session is
// constructed with, applying the defaults from spec.md §6 for any
// [config] field left unset.
func (f *File) SessionConfig() session.Config {
	cfg := session.Config{
		Timeout:  DefaultTimeout,
		Pipeline: true,
	}
	if f.Config.Retries != nil {
		cfg.Retries = int(*f.Config.Retries)
	}
	if f.Config.TimeoutSecs != nil {
		cfg.Timeout = time.Duration(*f.Config.TimeoutSecs) * time.Second
	}
	if f.Config.AutoQuit != nil {
		cfg.AutoQuit = *f.Config.AutoQuit
	}
	if f.Config.Pipeline != nil {
		cfg.Pipeline = *f.Config.Pipeline
	}
	return cfg
}

// Parallel reports whether the batch should fan out over MaxChannels
// workers rather than run serially.
func (f *File) Parallel() bool {
	return f.Config.Parallel != nil && *f.Config.Parallel
}

// MaxChannels returns the configured worker count, or DefaultMaxChannels
// if unset.
func (f *File) MaxChannels() int {
	if f.Config.MaxChannels != nil {
		return int(*f.Config.MaxChannels)
	}
	return DefaultMaxChannels
}

// Mails builds the mail.Mail batch from the file's [[mail]] entries,
// filling in the shared From/From-name from [user].
func (f *File) Mails() []mail.Mail {
	mails := make([]mail.Mail, 0, len(f.Mails))
	for _, m := range f.Mails {
		mails = append(mails, mail.Mail{
			Subject:     m.Subject,
			From:        f.User.Address,
			FromName:    f.User.Name,
			To:          m.Address,
			ToName:      m.Name,
			Text:        m.Text,
			Attachments: m.Attach,
		})
	}
	return mails
}
