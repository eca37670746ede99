package secrets

import (
	"time"

	"custodia/internal/keys"
)

// Category groups secrets by what they protect; it determines the rotation
// interval and GDPR relevance.
type Category string

const (
	CategoryDatabase    Category = "database"
	CategoryMedicalData Category = "medical-data"
	CategoryAuditLog    Category = "audit-log"
	CategoryAuth        Category = "auth"
	CategoryPayment     Category = "payment"
	CategoryWebhook     Category = "webhook"
)

// Rotation intervals are regulatory/operational policy, fixed per category.
var rotationIntervalDays = map[Category]int{
	CategoryDatabase:    90,
	CategoryMedicalData: 60,
	CategoryAuditLog:    90,
	CategoryAuth:        30,
	CategoryPayment:     90,
	CategoryWebhook:     180,
}

var gdprRelevantCategories = map[Category]bool{
	CategoryDatabase:    true,
	CategoryMedicalData: true,
	CategoryAuditLog:    true,
}

func (c Category) IsValid() bool {
	_, ok := rotationIntervalDays[c]
	return ok
}

// RotationIntervalDays returns how often secrets of this category must rotate.
func (c Category) RotationIntervalDays() int {
	return rotationIntervalDays[c]
}

// GDPRRelevant reports whether secrets of this category protect personal data.
func (c Category) GDPRRelevant() bool {
	return gdprRelevantCategories[c]
}

// Metadata describes a stored secret without revealing its value.
type Metadata struct {
	Category             Category
	Description          string
	RotationIntervalDays int
	LastRotatedAt        *time.Time
	CreatedAt            time.Time
	Environment          string
	GDPRRelevant         bool
}

// EncryptedSecret pairs a sealed value with its metadata. The envelope parts
// were produced by a single encryption call and are only ever decrypted
// together.
type EncryptedSecret struct {
	Name     string
	Sealed   *keys.Ciphertext
	Metadata Metadata
}
