// Package config handles loading and validating bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields, including the device slug/ID mapping
//   - Default value handling
//
// Security Considerations:
//   - Vendor and broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.TopicPrefix)
package config
