// Package config handles loading and validating lnbridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading legacy mqtt.cfg JSON documents from older bridge firmware
//   - Overriding with environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/lnbridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Node.Name)
package config
