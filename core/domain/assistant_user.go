package domain

import (
	"strings"

	"github.com/google/uuid"
)

// User is a member of a tenant (household), reachable by phone.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TenantID    uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Phone       string    `json:"phone" db:"phone"`
	Email       *string   `json:"email,omitempty" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Role        string    `json:"role" db:"role"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

// NormalizePhone converts a phone number to E.164, inserting the Argentina
// mobile "9" prefix when a 10-digit national number follows +54.
func NormalizePhone(phone string) string {
	normalized := strings.TrimSpace(phone)
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}

	if strings.HasPrefix(normalized, "+54") && !strings.HasPrefix(normalized, "+549") {
		rest := normalized[3:]
		if len(rest) == 10 {
			normalized = "+549" + rest
		}
	}

	return normalized
}

// PhoneVariants returns the normalized phone plus the variant without the
// Argentina mobile "9" prefix, so lookups match rows stored either way.
func PhoneVariants(phone string) []string {
	normalized := NormalizePhone(phone)
	variants := []string{normalized}
	if strings.HasPrefix(normalized, "+549") {
		variants = append(variants, "+54"+normalized[4:])
	}
	return variants
}
