// Package config handles configuration loading for the atrium host.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The zero value of every setting selects a component default,
// so an empty file (or no file at all) is a valid configuration.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	panels:
//	  manifest_dir: "${ATRIUM_PANEL_DIR}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	bus:
//	  request_timeout: "5s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Message routing:
//
//	bus:
//	  queue_size: 256       # undelivered envelopes held by the router
//	  endpoint_buffer: 64   # queued pushes per panel
//	  request_timeout: "5s" # default request/response deadline
//
// Panel definitions, inline or from a manifest directory:
//
//	panels:
//	  manifest_dir: "./panels.d"
//	  definitions:
//	    - id: "settings"
//	      title: "Settings"
//	      width: 420
//	      height: 560
//	      content: "panels/settings.html"
//
// # Usage
//
//	cfg, err := config.Load("/etc/atrium/host.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
