package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Section names recognised by housemgr.
const (
	SectionServer  = "Server"
	SectionMail    = "Mail"
	SectionManager = "Manager"
)

// Keys of the [Server] section.
const (
	KeyTokenFile       = "token_file"
	KeyCredentialsFile = "credentials_file"
	KeyUserID          = "user_id"
	KeyScopes          = "scopes"
)

// Keys of the [Mail] section.
const (
	KeySender         = "sender"
	KeyMarkRead       = "mark_read"
	KeyQuery          = "query"
	KeyMaxResults     = "max_results"
	KeyAttachmentsDir = "attachments_dir"
	KeyBodyFormat     = "body_format"
)

// Keys of the [Manager] section.
const (
	KeySchedule      = "schedule"
	KeyReportTo      = "report_to"
	KeyReportSubject = "report_subject"
)

// DefaultReportSubject is used when [Manager] report_subject is not set.
const DefaultReportSubject = "House manager report"

var (
	// ErrNotFound is returned when the configuration file does not exist.
	ErrNotFound = errors.New("configuration file not found")

	// ErrInvalid is returned when the configuration file cannot be parsed
	// or lacks a required key.
	ErrInvalid = errors.New("invalid configuration")
)

// ServerConfig holds the [Server] section.
type ServerConfig struct {
	TokenFile       string
	CredentialsFile string
	UserID          string
	Scopes          []string
}

// MailConfig holds the [Mail] section.
type MailConfig struct {
	Sender         string
	MarkRead       bool
	Query          string
	MaxResults     int64
	AttachmentsDir string
	BodyFormat     string
}

// ManagerConfig holds the [Manager] section.
type ManagerConfig struct {
	Schedule      string
	ReportTo      string
	ReportSubject string
}

// Config is the parsed configuration file. The raw section/key/value pairs
// stay reachable through Get, Sections and Keys.
type Config struct {
	Path    string
	Server  ServerConfig
	Mail    MailConfig
	Manager ManagerConfig

	file *ini.File
}

// Load reads the INI configuration at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path given", ErrNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:            true,
		IgnoreInlineComment:        true,
		IgnoreContinuation:         true,
		AllowPythonMultilineValues: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}

	cfg := &Config{Path: path, file: f}
	if err := cfg.decode(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode() error {
	if _, err := c.file.GetSection(SectionServer); err != nil {
		return fmt.Errorf("%w: missing [%s] section in %s", ErrInvalid, SectionServer, c.Path)
	}
	for _, key := range []string{KeyTokenFile, KeyCredentialsFile} {
		if v, _ := c.Get(SectionServer, key); strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: [%s] %s is required", ErrInvalid, SectionServer, key)
		}
	}

	base := filepath.Dir(c.Path)
	c.Server = ServerConfig{
		TokenFile:       resolvePath(base, c.value(SectionServer, KeyTokenFile, "")),
		CredentialsFile: resolvePath(base, c.value(SectionServer, KeyCredentialsFile, "")),
		UserID:          c.value(SectionServer, KeyUserID, "me"),
		Scopes:          splitList(c.value(SectionServer, KeyScopes, "")),
	}

	markRead, err := parseBool(c.value(SectionMail, KeyMarkRead, "true"))
	if err != nil {
		return fmt.Errorf("%w: [%s] %s: %v", ErrInvalid, SectionMail, KeyMarkRead, err)
	}
	maxResults, err := strconv.ParseInt(c.value(SectionMail, KeyMaxResults, "0"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: [%s] %s: %v", ErrInvalid, SectionMail, KeyMaxResults, err)
	}
	if maxResults < 0 {
		return fmt.Errorf("%w: [%s] %s must not be negative", ErrInvalid, SectionMail, KeyMaxResults)
	}
	c.Mail = MailConfig{
		Sender:         c.value(SectionMail, KeySender, ""),
		MarkRead:       markRead,
		Query:          c.value(SectionMail, KeyQuery, ""),
		MaxResults:     maxResults,
		AttachmentsDir: resolvePath(base, c.value(SectionMail, KeyAttachmentsDir, "")),
		BodyFormat:     strings.ToLower(c.value(SectionMail, KeyBodyFormat, "text")),
	}

	c.Manager = ManagerConfig{
		Schedule:      c.value(SectionManager, KeySchedule, ""),
		ReportTo:      c.value(SectionManager, KeyReportTo, ""),
		ReportSubject: c.value(SectionManager, KeyReportSubject, DefaultReportSubject),
	}
	return nil
}

// value returns the trimmed value of key, or def when it is absent or empty.
// Lookups never create sections or keys, so Sections and Keys keep
// mirroring the file.
func (c *Config) value(section, key, def string) string {
	v, ok := c.Get(section, key)
	if v = strings.TrimSpace(v); !ok || v == "" {
		return def
	}
	return v
}

// Get returns the raw value of key in section, and whether it is present.
// Indented continuation lines are joined with a newline and their leading
// whitespace removed.
func (c *Config) Get(section, key string) (string, bool) {
	s, err := c.file.GetSection(section)
	if err != nil {
		return "", false
	}
	key = strings.ToLower(key)
	if !s.HasKey(key) {
		return "", false
	}
	lines := strings.Split(s.Key(key).Value(), "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = strings.TrimLeft(lines[i], " \t\f")
	}
	return strings.Join(lines, "\n"), true
}

// Sections returns the section names in file order, excluding the implicit
// default section.
func (c *Config) Sections() []string {
	var names []string
	for _, s := range c.file.Sections() {
		if s.Name() == ini.DefaultSection {
			continue
		}
		names = append(names, s.Name())
	}
	return names
}

// Keys returns the key names of section in file order.
func (c *Config) Keys(section string) []string {
	s, err := c.file.GetSection(section)
	if err != nil {
		return nil
	}
	return s.KeyStrings()
}

// resolvePath expands a leading ~ and makes relative paths relative to base.
func resolvePath(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return filepath.Clean(path)
}

// parseBool accepts the boolean spellings configparser users expect.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
