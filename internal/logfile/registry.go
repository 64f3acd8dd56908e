// Package logfile implements the logfile registry: it resolves
// (customer, logfile name) to a LogfileDefinition and mutates a
// logfile's parsing regex, both backed by the config directory
// collaborator.
package logfile

import (
	"logscan/pkg/configdir"
	"logscan/pkg/errs"
)

const component = "logfile"

// Registry resolves and mutates logfile definitions for a customer.
type Registry struct {
	dir configdir.Directory
}

// NewRegistry wraps a config directory as a Logfile Registry.
func NewRegistry(dir configdir.Directory) *Registry {
	return &Registry{dir: dir}
}

// Find resolves (customer, name) to its definition. The second return
// value is false, with no error, when the customer simply has no logfile
// by that name -- unknown-ness is not itself an error at this layer,
// callers that require the logfile to exist raise errs.NotFound.
func (r *Registry) Find(customer, name string) (*configdir.LogfileDefinition, bool, error) {
	cfg, err := r.dir.ConfigFor(customer)
	if err != nil {
		return nil, false, err
	}

	for i := range cfg.LogfileImportConfig.Logfiles {
		def := cfg.LogfileImportConfig.Logfiles[i]
		if def.Name == name {
			return &def, true, nil
		}
	}
	return nil, false, nil
}

// MustFind is Find plus the errs.NotFound that most callers (ingestion,
// scan) actually want when the logfile doesn't exist.
func (r *Registry) MustFind(customer, name string) (*configdir.LogfileDefinition, error) {
	def, ok, err := r.Find(customer, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound(component, "Find", "logfile not found: "+name)
	}
	return def, nil
}

// List returns every logfile definition configured for customer, in the
// order the config directory returns them.
func (r *Registry) List(customer string) ([]configdir.LogfileDefinition, error) {
	cfg, err := r.dir.ConfigFor(customer)
	if err != nil {
		return nil, err
	}
	return cfg.LogfileImportConfig.Logfiles, nil
}

// SetRegex replaces name's regex field and persists the updated customer
// configuration. No validation of regex syntax is performed here -- that
// check is deliberately deferred to first use by the parser.
func (r *Registry) SetRegex(customer, name, newRegex string) error {
	cfg, err := r.dir.ConfigFor(customer)
	if err != nil {
		return err
	}

	for i := range cfg.LogfileImportConfig.Logfiles {
		if cfg.LogfileImportConfig.Logfiles[i].Name == name {
			cfg.LogfileImportConfig.Logfiles[i].Regex = newRegex
			return r.dir.UpdateCustomerConfig(cfg)
		}
	}

	return errs.NotFound(component, "SetRegex", "logfile not found: "+name)
}
