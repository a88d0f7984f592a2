package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config, e.g. "storage.batch_size".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	storageKinds   = []string{"mysql", "postgres", "sqlite", "mssql"}
	metricBackends = []string{"", "none", "pushgateway", "datadog"}
	logFormats     = []string{"text", "json"}
	compactTS      = regexp.MustCompile(`^\d{14}$`)
)

// Validate performs static checks over cfg. It does not mutate cfg; callers
// decide whether warnings are fatal.
func Validate(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, validateAPI(cfg.API)...)
	issues = append(issues, validateStorage(cfg.Storage)...)
	issues = append(issues, validateSync(cfg.Sync)...)
	issues = append(issues, validateLog(cfg.Log)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func errorAt(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnAt(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

func validateAPI(a APIConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(a.URL) == "" {
		issues = append(issues, errorAt("api.url", "api.url must not be empty"))
	} else if u, err := url.Parse(a.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, errorAt("api.url", "api.url %q is not an http(s) URL", a.URL))
	} else if !strings.HasSuffix(u.Path, "api.php") {
		issues = append(issues, warnAt("api.url", "api.url %q does not end in api.php", a.URL))
	}

	if a.Password != "" && a.Username == "" {
		issues = append(issues, errorAt("api.username", "api.password is set but api.username is empty"))
	}
	if a.Username != "" && a.Password == "" {
		issues = append(issues, errorAt("api.password", "api.username is set but api.password is empty"))
	}
	if a.MaxRetries < 0 {
		issues = append(issues, errorAt("api.max_retries", "must be >= 0, got %d", a.MaxRetries))
	}
	if a.Timeout < 0 {
		issues = append(issues, errorAt("api.timeout", "must not be negative"))
	}
	if a.RateLimit < 0 {
		issues = append(issues, errorAt("api.rate_limit", "must be >= 0, got %g", a.RateLimit))
	}
	if a.InsecureSkipVerify {
		issues = append(issues, warnAt("api.insecure_skip_verify", "TLS certificate verification is disabled"))
	}
	return issues
}

func validateStorage(s StorageConfig) []Issue {
	var issues []Issue

	if !slices.Contains(storageKinds, strings.ToLower(s.Kind)) {
		issues = append(issues, errorAt("storage.kind", "unknown storage kind %q; want one of %s", s.Kind, strings.Join(storageKinds, ", ")))
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, errorAt("storage.dsn", "storage.dsn must not be empty"))
	}
	if s.BatchSize <= 0 {
		issues = append(issues, errorAt("storage.batch_size", "must be > 0, got %d", s.BatchSize))
	} else if s.BatchSize > 10000 {
		issues = append(issues, warnAt("storage.batch_size", "large batch size %d; very large transactions may hit server limits", s.BatchSize))
	}
	return issues
}

func validateSync(s SyncConfig) []Issue {
	var issues []Issue

	if len(s.Jobs) == 0 {
		issues = append(issues, errorAt("sync.jobs", "no jobs selected"))
	}
	seen := map[string]bool{}
	for i, j := range s.Jobs {
		path := fmt.Sprintf("sync.jobs[%d]", i)
		if !slices.Contains(JobNames, j) {
			issues = append(issues, errorAt(path, "unknown job %q; want one of %s", j, strings.Join(JobNames, ", ")))
			continue
		}
		if seen[j] {
			issues = append(issues, warnAt(path, "job %q listed more than once", j))
		}
		seen[j] = true
	}

	issues = append(issues, validateRange("sync.blocks", s.Blocks)...)
	issues = append(issues, validateRange("sync.protected_titles", s.ProtectedTitles)...)

	for i, g := range s.UserGroups.Groups {
		if strings.TrimSpace(g) == "" || strings.Contains(g, "|") {
			issues = append(issues, errorAt(fmt.Sprintf("sync.user_groups.groups[%d]", i), "invalid group name %q", g))
		}
	}
	return issues
}

func validateRange(path string, r RangeConfig) []Issue {
	var issues []Issue
	var start, end time.Time
	var okStart, okEnd bool

	if r.Start != "" {
		t, err := ParseTimestamp(r.Start)
		if err != nil {
			issues = append(issues, errorAt(path+".start", "%v", err))
		}
		start, okStart = t, err == nil
	}
	if r.End != "" {
		t, err := ParseTimestamp(r.End)
		if err != nil {
			issues = append(issues, errorAt(path+".end", "%v", err))
		}
		end, okEnd = t, err == nil
	}
	if okStart && okEnd && end.Before(start) {
		issues = append(issues, errorAt(path, "end %s is before start %s", r.End, r.Start))
	}
	return issues
}

// ParseTimestamp accepts 2006-01-02T15:04:05Z or a 14-digit compact
// timestamp (20060102150405), both UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if compactTS.MatchString(s) {
		return time.Parse("20060102150405", s)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: want YYYY-MM-DDTHH:MM:SSZ or 14 digits", s)
	}
	return t.UTC(), nil
}

func validateLog(l LogConfig) []Issue {
	var issues []Issue
	switch strings.ToLower(l.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, errorAt("log.level", "unknown log level %q", l.Level))
	}
	if l.Format != "" && !slices.Contains(logFormats, l.Format) {
		issues = append(issues, errorAt("log.format", "unknown log format %q; want text or json", l.Format))
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue
	if !slices.Contains(metricBackends, m.Backend) {
		issues = append(issues, errorAt("metrics.backend", "unknown metrics backend %q", m.Backend))
		return issues
	}
	switch m.Backend {
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, errorAt("metrics.pushgateway_url", "required when metrics.backend=pushgateway"))
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, errorAt("metrics.datadog_addr", "required when metrics.backend=datadog"))
		}
	}
	return issues
}
