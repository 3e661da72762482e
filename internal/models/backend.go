package models

import (
	"fmt"
	"strings"
)

// Backend describes the sports-facility REST API the workbench talks to.
type Backend struct {
	Name      string `json:"name"`
	Scheme    string `json:"scheme"` // "http" or "https"
	Host      string `json:"host"`
	Port      int    `json:"port"`
	APIPrefix string `json:"api_prefix"` // e.g. "/api"
	Token     string `json:"-"`          // static bearer token, optional
	Insecure  bool   `json:"insecure"`   // skip TLS verification
	CACert    string `json:"-"`
}

// BaseURL returns scheme://host:port for this backend.
func (b *Backend) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", b.Scheme, b.Host, b.Port)
}

// APIURL returns the base URL joined with the API prefix, without a trailing slash.
func (b *Backend) APIURL() string {
	prefix := strings.TrimSuffix(b.APIPrefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return b.BaseURL() + prefix
}

// MaskedToken hides the token for display.
func (b *Backend) MaskedToken() string {
	if b.Token == "" {
		return ""
	}
	return "••••••••"
}

// ApplyDefaults fills scheme and port when they were left empty.
func (b *Backend) ApplyDefaults() {
	if b.Scheme == "" {
		b.Scheme = "https"
	}
	if b.Port == 0 {
		if b.Scheme == "https" {
			b.Port = 443
		} else {
			b.Port = 80
		}
	}
}
