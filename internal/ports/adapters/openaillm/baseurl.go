package openaillm

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBaseURL checks an OpenAI-compatible endpoint override before any
// credentialed request is sent to it. An empty value is fine (library
// default); otherwise the URL must be absolute, clean, and https — plain
// http is tolerated only for loopback, so local stubs keep working.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid LLM base URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid LLM base URL %q: absolute URL with host is required", baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid LLM base URL %q: userinfo is not allowed", baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid LLM base URL %q: query and fragment are not allowed", baseURL)
	}

	host := strings.ToLower(u.Hostname())
	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !isLoopback(host) {
			return fmt.Errorf("invalid LLM base URL %q: https is required", baseURL)
		}
	default:
		return fmt.Errorf("invalid LLM base URL %q: unsupported scheme", baseURL)
	}

	if len(allowedHosts) == 0 {
		return nil
	}
	for _, h := range allowedHosts {
		if normalizeHost(h) == host {
			return nil
		}
	}
	return fmt.Errorf("invalid LLM base URL %q: host %q is not in the allowed host list", baseURL, host)
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func normalizeHost(h string) string {
	v := strings.ToLower(strings.TrimSpace(h))
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "https://")
	v = strings.Trim(v, "/")
	if i := strings.Index(v, ":"); i >= 0 {
		v = v[:i]
	}
	return v
}
