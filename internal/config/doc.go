// Package config defines the settings shared by office-store and
// office-dashboard and provides helpers to load, validate and save them in
// YAML format.
//
// Missing values are filled from `default` struct tags before validation.
package config
