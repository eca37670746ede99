package config

import (
	"os"
	"strconv"
	"time"
)

// GDPRMode selects how strictly the compliance gate treats medical data.
type GDPRMode string

const (
	GDPRModeStrict   GDPRMode = "strict"
	GDPRModeStandard GDPRMode = "standard"
	GDPRModeMinimal  GDPRMode = "minimal"
)

// Server captures process-level configuration.
type Server struct {
	Addr                  string
	Environment           string
	DatabaseURL           string
	KafkaBrokers          string
	MedicalDataProtection bool
	GDPRComplianceLevel   GDPRMode
	RetentionDays         int
	ArchiveThreshold      time.Duration
	AuditEncryptionKey    string
}

const (
	defaultRetentionDays    = 2555 // 7 years, HIPAA horizon for medical records
	defaultArchiveThreshold = 90 * 24 * time.Hour
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CUSTODIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	environment := os.Getenv("CUSTODIA_ENV")
	if environment == "" {
		environment = "development"
	}

	// Protection defaults on; it must be disabled explicitly.
	protection := os.Getenv("MEDICAL_DATA_PROTECTION") != "false"

	// Unknown levels coerce to strict: misconfiguration must not weaken
	// medical-data handling.
	mode := GDPRMode(os.Getenv("GDPR_COMPLIANCE_LEVEL"))
	if mode != GDPRModeStrict && mode != GDPRModeStandard && mode != GDPRModeMinimal {
		mode = GDPRModeStrict
	}

	retentionDays := defaultRetentionDays
	if v := os.Getenv("MEDICAL_DATA_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			retentionDays = days
		}
	}

	archiveThreshold := defaultArchiveThreshold
	if v := os.Getenv("AUDIT_ARCHIVE_THRESHOLD_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			archiveThreshold = time.Duration(days) * 24 * time.Hour
		}
	}

	return Server{
		Addr:                  addr,
		Environment:           environment,
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		KafkaBrokers:          os.Getenv("KAFKA_BROKERS"),
		MedicalDataProtection: protection,
		GDPRComplianceLevel:   mode,
		RetentionDays:         retentionDays,
		ArchiveThreshold:      archiveThreshold,
		AuditEncryptionKey:    os.Getenv("AUDIT_LOG_ENCRYPTION_KEY"),
	}
}
