package observability

import (
	"fmt"
	"net/url"
	"strings"
)

// signalURL appends the signal path (/v1/traces, /v1/metrics) to an OTLP
// HTTP base URL unless it is already there. Query strings survive.
func signalURL(endpoint, signalPath string) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	suffix := "/" + strings.Trim(signalPath, "/")
	base := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(base, suffix) {
		base += suffix
	}
	u.Path = base
	return u.String(), nil
}

// grpcTarget returns host:port and whether the connection is plaintext.
// A bare host:port is treated as plaintext.
func grpcTarget(raw string) (string, bool, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return "", false, fmt.Errorf("endpoint cannot be empty")
	}
	if !strings.Contains(endpoint, "://") {
		if !strings.Contains(endpoint, ":") {
			return "", false, fmt.Errorf("endpoint %q should be host:port", endpoint)
		}
		return endpoint, true, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint must include host")
	}
	switch u.Scheme {
	case "http", "grpc":
		return u.Host, true, nil
	case "https", "grpcs":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
