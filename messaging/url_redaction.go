package messaging

import (
	"net/url"
	"strings"
)

// #nosec G101 -- Placeholder text for redacted URLs, not actual credentials
const redactedURLPlaceholder = "amqp://****:****@<host>:<port>/<vhost>"

// RedactURL masks the password of an AMQP URL so it can be logged or printed.
// The username, host, vhost and query survive. Anything that does not parse as
// an amqp:// or amqps:// URL with a host collapses to a fixed placeholder.
func RedactURL(brokerURL string) string {
	u, err := url.Parse(brokerURL)
	if err != nil || brokerURL == "" {
		return redactedURLPlaceholder
	}
	if (u.Scheme != "amqp" && u.Scheme != "amqps") || u.Host == "" {
		return redactedURLPlaceholder
	}

	username := "****"
	if u.User != nil && u.User.Username() != "" {
		username = u.User.Username()
	}

	// Built by hand so the asterisks are not percent-encoded
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(username)
	b.WriteString(":****@")
	b.WriteString(u.Host)
	if u.RawPath != "" {
		b.WriteString(u.RawPath)
	} else {
		b.WriteString(u.Path)
	}
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}
