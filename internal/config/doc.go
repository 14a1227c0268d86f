// Package config provides loading and environment overlay for KAS broker
// configuration. It exposes a Default() baseline, Load for JSON (comments and
// trailing commas allowed) or YAML files, and FromEnv for KAS_* overrides.
//
// Example:
//
//	cfg, err := config.Load("/etc/kas/kas.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: cfg.DataDir, Config: cfg})
//	defer rt.Close()
package config
