package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string // SCOUT_DATABASE_URL (required)
	HTTPAddr    string // SCOUT_HTTP_ADDR (default ":8080")
	NATSURL     string // SCOUT_NATS_URL (optional, empty = no events)
	APIKey      string // SCOUT_API_KEY (optional, empty = auth disabled)
	ProfilePath string // SCOUT_PROFILE (default "profile.toml")

	// Approval channel settings
	TwilioAccountSID string // SCOUT_TWILIO_ACCOUNT_SID (enables SMS when set)
	TwilioAuthToken  string // SCOUT_TWILIO_AUTH_TOKEN
	TwilioFrom       string // SCOUT_TWILIO_FROM
	SMTPHost         string // SCOUT_SMTP_HOST (enables email when set)
	SMTPPort         int    // SCOUT_SMTP_PORT (default 587)
	SMTPUser         string // SCOUT_SMTP_USER
	SMTPPassword     string // SCOUT_SMTP_PASSWORD
	SMTPFrom         string // SCOUT_SMTP_FROM

	// Evidence (screenshot) storage
	EvidenceS3Bucket   string // SCOUT_EVIDENCE_S3_BUCKET (enables S3 when set)
	EvidenceS3Endpoint string // SCOUT_EVIDENCE_S3_ENDPOINT (custom endpoint for MinIO)
	EvidenceS3Region   string // SCOUT_EVIDENCE_S3_REGION (default "us-east-1")
	EvidenceDir        string // SCOUT_EVIDENCE_DIR (local fallback, default "evidence")

	// Calendar
	CalendarICSURL string // SCOUT_CALENDAR_ICS_URL (optional ICS feed)

	// Discovery feeds, "name=url" pairs separated by commas
	Feeds map[string]string // SCOUT_FEEDS

	// Task cadences (0 disables the task)
	DiscoveryInterval    time.Duration // SCOUT_DISCOVERY_INTERVAL (default 6h)
	ApprovalInterval     time.Duration // SCOUT_APPROVAL_INTERVAL (default 5m)
	RegistrationInterval time.Duration // SCOUT_REGISTRATION_INTERVAL (default 10m)
	CalendarInterval     time.Duration // SCOUT_CALENDAR_INTERVAL (default 30m)
	ReportInterval       time.Duration // SCOUT_REPORT_INTERVAL (default 24h)
	HealthInterval       time.Duration // SCOUT_HEALTH_INTERVAL (default 1m)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:        os.Getenv("SCOUT_DATABASE_URL"),
		HTTPAddr:           envOrDefault("SCOUT_HTTP_ADDR", ":8080"),
		NATSURL:            os.Getenv("SCOUT_NATS_URL"),
		APIKey:             os.Getenv("SCOUT_API_KEY"),
		ProfilePath:        envOrDefault("SCOUT_PROFILE", "profile.toml"),
		TwilioAccountSID:   os.Getenv("SCOUT_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("SCOUT_TWILIO_AUTH_TOKEN"),
		TwilioFrom:         os.Getenv("SCOUT_TWILIO_FROM"),
		SMTPHost:           os.Getenv("SCOUT_SMTP_HOST"),
		SMTPUser:           os.Getenv("SCOUT_SMTP_USER"),
		SMTPPassword:       os.Getenv("SCOUT_SMTP_PASSWORD"),
		SMTPFrom:           os.Getenv("SCOUT_SMTP_FROM"),
		EvidenceS3Bucket:   os.Getenv("SCOUT_EVIDENCE_S3_BUCKET"),
		EvidenceS3Endpoint: os.Getenv("SCOUT_EVIDENCE_S3_ENDPOINT"),
		EvidenceS3Region:   envOrDefault("SCOUT_EVIDENCE_S3_REGION", "us-east-1"),
		EvidenceDir:        envOrDefault("SCOUT_EVIDENCE_DIR", "evidence"),
		CalendarICSURL:     os.Getenv("SCOUT_CALENDAR_ICS_URL"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("SCOUT_DATABASE_URL is required")
	}

	var err error
	if c.SMTPPort, err = envInt("SCOUT_SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if c.Feeds, err = parseFeeds(os.Getenv("SCOUT_FEEDS")); err != nil {
		return nil, err
	}

	for _, iv := range []struct {
		name     string
		fallback string
		dst      *time.Duration
	}{
		{"SCOUT_DISCOVERY_INTERVAL", "6h", &c.DiscoveryInterval},
		{"SCOUT_APPROVAL_INTERVAL", "5m", &c.ApprovalInterval},
		{"SCOUT_REGISTRATION_INTERVAL", "10m", &c.RegistrationInterval},
		{"SCOUT_CALENDAR_INTERVAL", "30m", &c.CalendarInterval},
		{"SCOUT_REPORT_INTERVAL", "24h", &c.ReportInterval},
		{"SCOUT_HEALTH_INTERVAL", "1m", &c.HealthInterval},
	} {
		d, err := time.ParseDuration(envOrDefault(iv.name, iv.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iv.name, err)
		}
		*iv.dst = d
	}

	return c, nil
}

// parseFeeds splits "library=https://a,parks=https://b" into a name-to-URL
// map. Empty input yields an empty map.
func parseFeeds(v string) (map[string]string, error) {
	feeds := map[string]string{}
	if v == "" {
		return feeds, nil
	}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("SCOUT_FEEDS: malformed entry %q, want name=url", pair)
		}
		feeds[strings.TrimSpace(name)] = strings.TrimSpace(url)
	}
	return feeds, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
