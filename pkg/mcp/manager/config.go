// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manager

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// DefaultStartTimeout bounds one provider's launch and handshake.
const DefaultStartTimeout = 60 * time.Second

// Provider names used by DefaultConfig.
const (
	PrometheusServer   = "prometheus"
	VictoriaLogsServer = "victorialogs"
)

var serverNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Config defines the configuration for the MCP manager.
type Config struct {
	// Servers maps provider name to its launch config
	Servers map[string]ServerConfig `yaml:"servers" json:"servers" mapstructure:"servers"`

	// ClientInfo is sent to every provider during the handshake
	ClientInfo ClientInfo `yaml:"client_info" json:"client_info" mapstructure:"client_info"`
}

// ServerConfig is the launch config of a single stdio provider.
type ServerConfig struct {
	// Enabled indicates whether this provider should be started
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// Command is the executable to run
	Command string `yaml:"command" json:"command" mapstructure:"command"`

	// Args are the command-line arguments for the command
	Args []string `yaml:"args" json:"args" mapstructure:"args"`

	// Env is added to the parent environment of the subprocess
	Env map[string]string `yaml:"env" json:"env" mapstructure:"env"`

	// ToolFilter controls which tools are exposed from this provider
	ToolFilter ToolFilter `yaml:"tools" json:"tools" mapstructure:"tools"`

	// Timeout bounds launch plus handshake (e.g., "30s", "1m")
	Timeout string `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// ToolFilter controls which tools are exposed from a provider. An empty
// filter exposes everything.
type ToolFilter struct {
	// Include is an allow list of provider-local names
	Include []string `yaml:"include" json:"include" mapstructure:"include"`

	// Exclude is a deny list applied after Include
	Exclude []string `yaml:"exclude" json:"exclude" mapstructure:"exclude"`
}

// ClientInfo provides implementation details sent to MCP servers.
type ClientInfo struct {
	Name    string `yaml:"name" json:"name" mapstructure:"name"`
	Version string `yaml:"version" json:"version" mapstructure:"version"`
}

// Validate checks the configuration for errors. A config with no servers is
// valid: the agent then runs without tools.
func (c *Config) Validate() error {
	for name, server := range c.Servers {
		if !serverNamePattern.MatchString(name) {
			return fmt.Errorf("server %q: name must match %s", name, serverNamePattern)
		}
		if strings.Contains(name, "__") {
			return fmt.Errorf("server %q: name must not contain \"__\"", name)
		}
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the server configuration for errors.
func (s ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Command == "" {
		return fmt.Errorf("command required for stdio transport")
	}
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
		}
	}
	return nil
}

// StartTimeout returns the parsed timeout or DefaultStartTimeout.
func (s ServerConfig) StartTimeout() time.Duration {
	if s.Timeout == "" {
		return DefaultStartTimeout
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return DefaultStartTimeout
	}
	return d
}

// ShouldRegisterTool reports whether a tool passes the filter.
func (f ToolFilter) ShouldRegisterTool(toolName string) bool {
	if len(f.Include) > 0 && !slices.Contains(f.Include, toolName) {
		return false
	}
	return !slices.Contains(f.Exclude, toolName)
}

// DefaultConfig returns the two observability providers, launched as
// containers that speak MCP over stdio.
func DefaultConfig(prometheusURL, victoriaLogsURL string) Config {
	return Config{
		Servers: map[string]ServerConfig{
			PrometheusServer: {
				Enabled: true,
				Command: "docker",
				Args: []string{
					"run", "-i", "--rm",
					"-e", "PROMETHEUS_URL",
					"ghcr.io/pab1it0/prometheus-mcp-server:latest",
				},
				Env: map[string]string{
					"PROMETHEUS_URL": prometheusURL,
				},
			},
			VictoriaLogsServer: {
				Enabled: true,
				Command: "docker",
				Args: []string{
					"run", "-i", "--rm",
					"-e", "VL_INSTANCE_ENTRYPOINT",
					"-e", "MCP_SERVER_MODE",
					"ghcr.io/victoriametrics-community/mcp-victorialogs",
				},
				Env: map[string]string{
					"VL_INSTANCE_ENTRYPOINT": victoriaLogsURL,
					"MCP_SERVER_MODE":        "stdio",
				},
			},
		},
		ClientInfo: ClientInfo{
			Name:    "pgobserve",
			Version: "0.1.0",
		},
	}
}
