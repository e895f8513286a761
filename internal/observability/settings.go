// Package observability wires OpenTelemetry tracing and metrics for the
// server and the CLI.
package observability

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ca-srg/tripintel/internal/types"
)

const (
	defaultServiceName    = "tripintel"
	protocolHTTPProtobuf  = "http/protobuf"
	protocolGRPC          = "grpc"
	serviceNameAttribute  = "service.name"
	defaultExportInterval = time.Minute
)

// Settings are the OpenTelemetry options resolved from the root config
type Settings struct {
	Enabled        bool
	ServiceName    string
	Endpoint       string
	Protocol       string
	Attributes     map[string]string
	Sampler        string
	SamplerArg     float64
	MetricInterval time.Duration
}

// SettingsFrom resolves and validates Settings from the root configuration.
func SettingsFrom(cfg *types.Config) (*Settings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil root configuration provided")
	}

	attrs, err := parseAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to parse resource attributes: %w", err)
	}

	s := &Settings{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    strings.TrimSpace(cfg.OTelServiceName),
		Endpoint:       strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		Protocol:       strings.ToLower(strings.TrimSpace(cfg.OTelExporterOTLPProtocol)),
		Attributes:     attrs,
		Sampler:        strings.ToLower(strings.TrimSpace(cfg.OTelTracesSampler)),
		SamplerArg:     cfg.OTelTracesSamplerArg,
		MetricInterval: cfg.OTelMetricInterval,
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

// normalize fills defaults and rejects settings an exporter could not use.
// Disabled settings are never rejected.
func (s *Settings) normalize() error {
	if s.ServiceName == "" {
		s.ServiceName = defaultServiceName
	}
	if s.Protocol == "" {
		s.Protocol = protocolHTTPProtobuf
	}
	if s.Sampler == "" {
		s.Sampler = "always_on"
	}
	if s.MetricInterval <= 0 {
		s.MetricInterval = defaultExportInterval
	}
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	if _, ok := s.Attributes[serviceNameAttribute]; !ok {
		s.Attributes[serviceNameAttribute] = s.ServiceName
	}

	if !s.Enabled {
		return nil
	}

	if s.Endpoint == "" {
		return fmt.Errorf("observability: OTEL_EXPORTER_OTLP_ENDPOINT is required when OpenTelemetry is enabled")
	}

	switch s.Protocol {
	case protocolHTTPProtobuf:
		u, err := url.Parse(s.Endpoint)
		if err != nil {
			return fmt.Errorf("observability: invalid OTLP endpoint: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("observability: OTLP endpoint %q must be an http(s) URL with a host", s.Endpoint)
		}
	case protocolGRPC:
		if _, _, err := grpcTarget(s.Endpoint); err != nil {
			return fmt.Errorf("observability: invalid OTLP gRPC endpoint: %w", err)
		}
	default:
		return fmt.Errorf("observability: unsupported OTLP protocol %q", s.Protocol)
	}

	if s.Sampler == "traceidratio" && (s.SamplerArg <= 0 || s.SamplerArg > 1) {
		return fmt.Errorf("observability: OTEL_TRACES_SAMPLER_ARG must be in (0, 1] for traceidratio")
	}
	return nil
}

// parseAttributes reads "k1=v1,k2=v2"
func parseAttributes(input string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("resource attribute key cannot be empty")
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}
