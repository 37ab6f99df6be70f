package utils

import (
	"net/url"
	"strings"
)

// StripProtocol normalizes a server URL to the host[:port][/path] form the
// argocd CLI expects. Inputs without a scheme are returned trimmed.
func StripProtocol(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if strings.Contains(address, "://") {
		if parsed, err := url.Parse(address); err == nil && parsed.Host != "" {
			stripped := parsed.Host
			if parsed.Path != "" && parsed.Path != "/" {
				stripped += strings.TrimSuffix(parsed.Path, "/")
			}
			return stripped
		}
		// Unparseable URL, strip the scheme prefix manually.
		address = strings.TrimPrefix(address, "https://")
		address = strings.TrimPrefix(address, "http://")
	}

	return strings.TrimSuffix(address, "/")
}

// ContainsAny checks if s contains any of the substrings (case-insensitive).
func ContainsAny(s string, substrings ...string) bool {
	sLower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(sLower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// IsValidConnectionName checks if a connection name contains only printable
// characters and stays within a sane length. This keeps names safe for log
// lines and file-backed storage.
func IsValidConnectionName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 128 {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
