package validation

import (
	"testing"

	apperrors "github.com/anime-shed/live-ocr-go/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}
	if len(validator.allowedHosts) != 0 {
		t.Errorf("Expected no host restrictions, got %v", validator.allowedHosts)
	}
}

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name      string
		validator *URLValidator
		location  string
		wantErr   bool
	}{
		{"https model", NewURLValidator(), "https://models.example.com/eng.traineddata", false},
		{"http with port", NewURLValidator(), "http://localhost:9000/osd.traineddata", false},
		{"ip host", NewURLValidator(), "http://192.168.1.1/brands.json", false},
		{"upper-case scheme", NewURLValidator(), "HTTPS://example.com/brands.json", false},
		{"empty", NewURLValidator(), "", true},
		{"whitespace", NewURLValidator(), "   ", true},
		{"ftp scheme", NewURLValidator(), "ftp://example.com/eng.traineddata", true},
		{"file scheme", NewURLValidator(), "file:///tmp/eng.traineddata", true},
		{"missing host", NewURLValidator(), "https:///eng.traineddata", true},
		{"relative path", NewURLValidator(), "/eng.traineddata", true},
		{"malformed", NewURLValidator(), "http://[::1", true},
		{
			"allowed host ignores port",
			NewURLValidatorWithOptions([]string{"https"}, []string{"cdn.example.com"}),
			"https://cdn.example.com:8443/eng.traineddata",
			false,
		},
		{
			"host not allowed",
			NewURLValidatorWithOptions([]string{"https"}, []string{"cdn.example.com"}),
			"https://evil.example.com/eng.traineddata",
			true,
		},
		{
			"scheme restricted",
			NewURLValidatorWithOptions([]string{"https"}, nil),
			"http://cdn.example.com/eng.traineddata",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.ValidateLocation(tt.location)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLocation(%q) error = %v, wantErr %v", tt.location, err, tt.wantErr)
			}
			if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("Expected validation error type, got %v", err)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"https://example.com/brands.json", true},
		{"HTTP://example.com/brands.json", true},
		{"  https://example.com/brands.json", true},
		{"brands.json", false},
		{"/etc/liveocr/brands.json", false},
		{"httpdocs/brands.json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsRemote(tt.location); got != tt.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}
