package config

import (
	"fmt"
	"net/url"
	"strconv"
)

// ParseBackendURL splits a base URL such as https://api.club.test:8443/api
// into the backend section.
func ParseBackendURL(raw string) (BackendConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return BackendConfig{}, fmt.Errorf("parsing backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return BackendConfig{}, fmt.Errorf("backend URL %q: scheme must be http or https", raw)
	}
	if u.Hostname() == "" {
		return BackendConfig{}, fmt.Errorf("backend URL %q: missing host", raw)
	}
	b := BackendConfig{Scheme: u.Scheme, Host: u.Hostname(), APIPrefix: u.Path}
	if p := u.Port(); p != "" {
		b.Port, err = strconv.Atoi(p)
		if err != nil {
			return BackendConfig{}, fmt.Errorf("backend URL %q: bad port", raw)
		}
	}
	return b, nil
}
