// Package config describes the construction-time settings of a docflow
// client and how they are loaded.
//
// Three sources are supported, in increasing priority: [Default], a YAML file
// read by [LoadFile], and the environment (including a local .env file) read
// by [FromEnv]. Once a client is built from a [Config] the settings are fixed.
package config
