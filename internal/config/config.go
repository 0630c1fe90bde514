package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is built once at startup and
// passed by reference into every component that needs it.
type Config struct {
	// APIURL is the MediaWiki action API endpoint, e.g. https://en.wikipedia.org/w/api.php.
	APIURL string `json:"api_url,omitempty"`

	// UserAgent is sent with every API request.
	UserAgent string `json:"user_agent,omitempty"`

	// Env is "development" or "production". Controls log format.
	Env string `json:"env,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// Timestamp describes how the wiki renders signature timestamps.
	Timestamp TimestampConfig `json:"timestamp"`

	// UserNamespaces are the namespace names (and aliases) whose links identify
	// a signature author, e.g. "User", "User talk".
	UserNamespaces []string `json:"user_namespaces,omitempty"`

	// ContributionsPage is the special page prefix linking to anonymous users' contributions.
	ContributionsPage string `json:"contributions_page,omitempty"`

	// KeepInSectionEnding lists regexps matching trailing code (navboxes, clearing
	// templates, hidden comments) that must stay at the very end of a section.
	// Each pattern should be anchored at the end of text with `$`.
	KeepInSectionEnding []string `json:"keep_in_section_ending,omitempty"`

	// Scoring holds the locator weights and acceptance threshold.
	Scoring ScoringConfig `json:"scoring"`

	// MoveMarker selects the strategy used to leave "moved to"/"moved from"
	// markers when a section is moved. Known: "none", "moved-templates", "discussion-box".
	MoveMarker string `json:"move_marker,omitempty"`

	// SignatureCode is appended by the server to sign markers, normally "~~~~".
	SignatureCode string `json:"signature_code,omitempty"`

	// IndentationCharMode is "mimic" (reuse the last comment's indentation) or "unify".
	IndentationCharMode string `json:"indentation_char_mode,omitempty"`

	// DefaultIndentationChar is used for replies when nothing else applies.
	DefaultIndentationChar string `json:"default_indentation_char,omitempty"`

	// NewTopicsOnTop forces new-topic placement when set; otherwise it is detected.
	NewTopicsOnTop *bool `json:"new_topics_on_top,omitempty"`

	// TalkNamespaces are extra namespace prefixes treated as discussion pages.
	TalkNamespaces []string `json:"talk_namespaces,omitempty"`

	// OptionsSizeLimit is the maximum byte size of a user option value.
	OptionsSizeLimit int `json:"options_size_limit,omitempty"`

	// HighlightNewInterval is how many minutes old a visit may be and still be
	// used to tell new comments from seen ones.
	HighlightNewInterval int `json:"highlight_new_interval,omitempty"`

	// VisitsOptionName is the remote user option that stores packed visits.
	VisitsOptionName string `json:"visits_option_name,omitempty"`

	// WatchedSectionsOptionName is the remote user option that stores watched sections.
	WatchedSectionsOptionName string `json:"watched_sections_option_name,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type prefixes to disable entirely
	// (e.g. "section", "visits").
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// BotUser and BotPassword are read from the environment only.
	BotUser     string `json:"-"`
	BotPassword string `json:"-"`
}

// TimestampConfig describes the content language's signature timestamps.
type TimestampConfig struct {
	// DateFormat uses MediaWiki date format codes, e.g. "H:i, j F Y".
	DateFormat string `json:"date_format,omitempty"`

	// Timezone is an IANA zone name used to interpret timestamps.
	Timezone string `json:"timezone,omitempty"`

	// UTCLabel is the localized "UTC" text in the timezone suffix.
	UTCLabel string `json:"utc_label,omitempty"`

	// Digits holds the ten localized digits in order when the wiki doesn't use 0-9.
	Digits string `json:"digits,omitempty"`

	MonthNames         []string `json:"month_names,omitempty"`          // F
	MonthNamesGenitive []string `json:"month_names_genitive,omitempty"` // xg
	MonthAbbrevs       []string `json:"month_abbrevs,omitempty"`        // M
	DayNames           []string `json:"day_names,omitempty"`            // l
	DayAbbrevs         []string `json:"day_abbrevs,omitempty"`          // D
}

// ScoringConfig holds the locator weights. The defaults are empirical and kept
// for compatibility.
type ScoringConfig struct {
	Headline           float64 `json:"headline,omitempty"`
	OldestComment      float64 `json:"oldest_comment,omitempty"`
	SectionIndex       float64 `json:"section_index,omitempty"`
	PrecedingHeadlines float64 `json:"preceding_headlines,omitempty"`
	Threshold          float64 `json:"threshold,omitempty"`
}

// MaxScore is the highest score a candidate can reach.
func (s ScoringConfig) MaxScore() float64 {
	return s.Headline + s.OldestComment + s.SectionIndex + s.PrecedingHeadlines
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

var englishMonths = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DefaultConfig returns the default configuration (English Wikipedia conventions).
func DefaultConfig() *Config {
	return &Config{
		UserAgent: "cdtool/dev",
		Env:       "development",
		LogLevel:  "info",
		Timestamp: TimestampConfig{
			DateFormat:         "H:i, j F Y",
			Timezone:           "UTC",
			UTCLabel:           "UTC",
			MonthNames:         englishMonths,
			MonthNamesGenitive: englishMonths,
			MonthAbbrevs:       []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
			DayNames:           []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
			DayAbbrevs:         []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		},
		UserNamespaces:    []string{"User", "User talk"},
		ContributionsPage: "Special:Contributions",
		KeepInSectionEnding: []string{
			`\n+(?:<!--(?s:.*?)-->\s*)+$`,
			`(?i)\n+(?:\{\{(?:-|clear)\}\}\s*)+$`,
		},
		Scoring: ScoringConfig{
			Headline:           1,
			OldestComment:      1,
			SectionIndex:       0.5,
			PrecedingHeadlines: 0.25,
			Threshold:          1,
		},
		MoveMarker:                "moved-templates",
		SignatureCode:             "~~~~",
		IndentationCharMode:       "mimic",
		DefaultIndentationChar:    ":",
		OptionsSizeLimit:          65535,
		HighlightNewInterval:      15,
		VisitsOptionName:          "userjs-convenientDiscussions-visits",
		WatchedSectionsOptionName: "userjs-convenientDiscussions-watchedSections",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.cdtool) and repo (.cdtool) directories.
// Repo config is found by walking upward from startDir to find the nearest .cdtool/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cdtool/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".cdtool", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadEnv reads envFile (if present) into the process environment and applies
// the CD_* variables on top of cfg. Variables already set in the environment win
// over the file.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	ApplyEnv(cfg)
	return nil
}

// ApplyEnv overlays CD_* environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("CD_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("CD_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CD_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("CD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CD_TIMEZONE"); v != "" {
		cfg.Timestamp.Timezone = v
	}
	if v := os.Getenv("CD_NEW_TOPICS_ON_TOP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NewTopicsOnTop = &b
		}
	}
	if v := os.Getenv("CD_BOT_USER"); v != "" {
		cfg.BotUser = v
	}
	if v := os.Getenv("CD_BOT_PASSWORD"); v != "" {
		cfg.BotPassword = v
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; string arrays that act as sets are
// merged and deduplicated, ordered lists (locale names) are replaced wholesale.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.APIURL = firstString(overlay.APIURL, base.APIURL)
	result.UserAgent = firstString(overlay.UserAgent, base.UserAgent)
	result.Env = firstString(overlay.Env, base.Env)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.ContributionsPage = firstString(overlay.ContributionsPage, base.ContributionsPage)
	result.MoveMarker = firstString(overlay.MoveMarker, base.MoveMarker)
	result.SignatureCode = firstString(overlay.SignatureCode, base.SignatureCode)
	result.IndentationCharMode = firstString(overlay.IndentationCharMode, base.IndentationCharMode)
	result.DefaultIndentationChar = firstString(overlay.DefaultIndentationChar, base.DefaultIndentationChar)
	result.VisitsOptionName = firstString(overlay.VisitsOptionName, base.VisitsOptionName)
	result.WatchedSectionsOptionName = firstString(overlay.WatchedSectionsOptionName, base.WatchedSectionsOptionName)
	result.BotUser = firstString(overlay.BotUser, base.BotUser)
	result.BotPassword = firstString(overlay.BotPassword, base.BotPassword)

	result.OptionsSizeLimit = firstInt(overlay.OptionsSizeLimit, base.OptionsSizeLimit)
	result.HighlightNewInterval = firstInt(overlay.HighlightNewInterval, base.HighlightNewInterval)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.NewTopicsOnTop = base.NewTopicsOnTop
	if overlay.NewTopicsOnTop != nil {
		result.NewTopicsOnTop = overlay.NewTopicsOnTop
	}

	result.Timestamp = mergeTimestamp(base.Timestamp, overlay.Timestamp)
	result.Scoring = ScoringConfig{
		Headline:           firstFloat(overlay.Scoring.Headline, base.Scoring.Headline),
		OldestComment:      firstFloat(overlay.Scoring.OldestComment, base.Scoring.OldestComment),
		SectionIndex:       firstFloat(overlay.Scoring.SectionIndex, base.Scoring.SectionIndex),
		PrecedingHeadlines: firstFloat(overlay.Scoring.PrecedingHeadlines, base.Scoring.PrecedingHeadlines),
		Threshold:          firstFloat(overlay.Scoring.Threshold, base.Scoring.Threshold),
	}

	result.UserNamespaces = mergeStringSlice(base.UserNamespaces, overlay.UserNamespaces)
	result.KeepInSectionEnding = mergeStringSlice(base.KeepInSectionEnding, overlay.KeepInSectionEnding)
	result.TalkNamespaces = mergeStringSlice(base.TalkNamespaces, overlay.TalkNamespaces)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func mergeTimestamp(base, overlay TimestampConfig) TimestampConfig {
	return TimestampConfig{
		DateFormat:         firstString(overlay.DateFormat, base.DateFormat),
		Timezone:           firstString(overlay.Timezone, base.Timezone),
		UTCLabel:           firstString(overlay.UTCLabel, base.UTCLabel),
		Digits:             firstString(overlay.Digits, base.Digits),
		MonthNames:         firstSlice(overlay.MonthNames, base.MonthNames),
		MonthNamesGenitive: firstSlice(overlay.MonthNamesGenitive, base.MonthNamesGenitive),
		MonthAbbrevs:       firstSlice(overlay.MonthAbbrevs, base.MonthAbbrevs),
		DayNames:           firstSlice(overlay.DayNames, base.DayNames),
		DayAbbrevs:         firstSlice(overlay.DayAbbrevs, base.DayAbbrevs),
	}
}

func firstString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func firstFloat(overlay, base float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

func firstSlice(overlay, base []string) []string {
	if len(overlay) > 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
