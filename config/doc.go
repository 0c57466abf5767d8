// Package config loads streamkit configuration.
//
// Configuration is layered: a config.yml file provides the base values, a
// .env file and the process environment override them, and ApplyDefaults
// fills in whatever is still empty. Validate reports every problem as a
// single INVALID_CONFIG error.
//
//	cfg, err := config.Load("streamkit", config.WithConfigFile("config.yml"))
//
// Environment variables map onto nested keys by splitting on underscores, so
// PIPELINE_MAX_ELEMENTS sets pipeline.max_elements and LOGGING_LEVEL sets
// logging.level.
package config
