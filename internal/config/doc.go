// Package config loads routerd configuration from YAML.
//
// Values of the form ${VAR} are expanded from the environment before
// parsing, so secrets such as database passwords can stay out of the file.
// LoadAndValidate is what binaries should call; Load and LoadWithDefaults
// exist for tests and tooling.
package config
