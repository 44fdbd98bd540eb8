// Package privacy scrubs host and user identifying data from messages that
// leave the process, such as error reports and broker logs.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern   = regexp.MustCompile(`\b(?:https?|wss?|mqtts?|tcp|ssl|tls)://\S+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	homePattern  = regexp.MustCompile(`(/home/|/Users/|\\Users\\)[^/\\\s]+`)
	// serials and hardware ids embedded in device labels and sysfs paths
	serialPattern = regexp.MustCompile(`\b[0-9A-Fa-f]{16,}\b`)
)

// ScrubMessage anonymizes URLs and removes e-mail addresses, user names in
// home directory paths and long hexadecimal hardware identifiers.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = emailPattern.ReplaceAllString(message, "[EMAIL]")
	message = homePattern.ReplaceAllString(message, "${1}[USER]")
	return serialPattern.ReplaceAllString(message, "[ID]")
}

// AnonymizeURL replaces a URL with a stable hash of its scheme, host category
// and port, so reports about the same endpoint group together without naming it.
func AnonymizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	parts := []string{u.Scheme, categorizeHost(u.Hostname())}
	if port := u.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

// RedactURL removes credentials and everything after the host, keeping the
// scheme, host and port readable for local logs.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

func categorizeHost(host string) string {
	switch {
	case host == "":
		return "no-host"
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case isIPAddress(host):
		return "public-ip"
	case strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".lan"):
		return "local-domain"
	default:
		return "domain"
	}
}

func isIPAddress(host string) bool {
	if strings.Contains(host, ":") {
		return true
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 || strings.Trim(p, "0123456789") != "" {
			return false
		}
	}
	return true
}

func isPrivateIP(host string) bool {
	if !isIPAddress(host) {
		return false
	}
	for _, prefix := range []string{"10.", "192.168.", "169.254.", "fe80:", "fd"} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	if strings.HasPrefix(host, "172.") {
		var second int
		if _, err := fmt.Sscanf(host, "172.%d.", &second); err == nil {
			return second >= 16 && second <= 31
		}
	}
	return false
}
