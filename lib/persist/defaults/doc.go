// Package defaults provides read-only default values for settings
// instances, either from a fixed map or from a settings file.
package defaults
