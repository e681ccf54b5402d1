// Package config loads persistkit settings with viper. Values come from
// built-in defaults, an optional .env file, PERSISTKIT_* environment variables
// and an optional YAML config file.
package config
