// Package config loads the debug toggles spec §6 describes as
// compile-time flags into environment-driven runtime settings, using
// github.com/caarlos0/env the way mna-nenuphar's configuration loads
// (the teacher itself has no configuration layer — see DESIGN.md).
package config

import "github.com/caarlos0/env/v6"

// Debug holds the four DEBUG_* switches from spec §6 plus NAN_BOXING.
// NAN_BOXING is parsed but intentionally has no effect: this
// implementation represents Value as a Go struct rather than a packed
// 64-bit word (see DESIGN.md), so there is no boxing strategy to toggle.
type Debug struct {
	PrintCode      bool `env:"DEBUG_PRINT_CODE" envDefault:"false"`
	TraceExecution bool `env:"DEBUG_TRACE_EXECUTION" envDefault:"false"`
	StressGC       bool `env:"DEBUG_STRESS_GC" envDefault:"false"`
	LogGC          bool `env:"DEBUG_LOG_GC" envDefault:"false"`
	NanBoxing      bool `env:"NAN_BOXING" envDefault:"false"`
}

// Load reads the debug toggles from the process environment.
func Load() (Debug, error) {
	var d Debug
	if err := env.Parse(&d); err != nil {
		return Debug{}, err
	}
	return d, nil
}
