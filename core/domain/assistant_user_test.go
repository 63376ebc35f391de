package domain

import (
	"reflect"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"already e164 mobile", "+5491155551234", "+5491155551234"},
		{"missing plus", "5491155551234", "+5491155551234"},
		{"argentina without 9", "+541155551234", "+5491155551234"},
		{"argentina without 9 or plus", "541155551234", "+5491155551234"},
		{"non argentina untouched", "+14155551234", "+14155551234"},
		{"short argentina untouched", "+54115555", "+54115555"},
		{"whitespace trimmed", "  +5491155551234 ", "+5491155551234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.phone); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.phone, got, tt.want)
			}
		})
	}
}

func TestPhoneVariants(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  []string
	}{
		{"mobile gets both forms", "+5491155551234", []string{"+5491155551234", "+541155551234"}},
		{"landline form normalized first", "+541155551234", []string{"+5491155551234", "+541155551234"}},
		{"foreign number single variant", "+14155551234", []string{"+14155551234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhoneVariants(tt.phone); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PhoneVariants(%q) = %v, want %v", tt.phone, got, tt.want)
			}
		})
	}
}
