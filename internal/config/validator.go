// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, so the binary never runs
// with a zero-capacity cache or a store driver it cannot open.
//
// Beyond the built-in rules, one cross-field check lives here: a DSN
// template may carry at most one %s verb, the slot for Store.Password.

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if n := strings.Count(c.Store.DSN, "%s"); n > 1 {
		return fmt.Errorf("store.dsn has %d %%s verbs, want at most 1", n)
	}
	return nil
}
