// Package config loads typed configuration structs from environment
// variables. Every tunable in the system is declared once, on an
// env-tagged struct built at startup; there are no runtime reflection
// checks against a settings object.
package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when Load is given a nil destination.
	ErrNilPointer = errors.New("config: nil pointer")

	// ErrParse is returned when environment variables cannot be parsed
	// into the destination struct.
	ErrParse = errors.New("config: failed to parse environment")
)

// dotenv is loaded at most once per process; a missing .env file is fine.
var dotenvOnce sync.Once

// Load fills v from the environment, reading a .env file first if one
// exists in the working directory.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParse, err)
	}
	return nil
}

// MustLoad panics when loading fails. Use for configuration the process
// cannot start without.
func MustLoad[T any](v *T) *T {
	if err := Load(v); err != nil {
		panic(err)
	}
	return v
}
