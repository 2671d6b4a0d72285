// Package config handles loading and validating Workbench Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (WORKBENCH_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, password hashes) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret must be set before the API is exposed on the shop network
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
