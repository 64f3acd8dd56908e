// Package configdir implements the customer configuration directory,
// with CustomerConfig.logfile_import_config.logfiles holding the
// per-customer logfile definitions the logfile registry resolves
// against.
//
// Each customer gets one YAML document, <root>/<customer>.yaml:
// gopkg.in/yaml.v2 for (de)serialization, github.com/fsnotify/fsnotify
// to pick up out-of-band edits (an operator hand-editing the file, or a
// sibling process writing it) without requiring a restart.
package configdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"logscan/pkg/errs"
)

// Directory resolves and mutates per-customer configuration documents.
// This is the narrow surface the Logfile Registry (component A) depends on.
type Directory interface {
	ConfigFor(customer string) (*CustomerConfig, error)
	UpdateCustomerConfig(cfg *CustomerConfig) error
}

// FileDirectory is a Directory backed by one YAML file per customer under
// Root, with an fsnotify watch so edits made outside UpdateCustomerConfig
// (e.g. by an operator, or a config-management job) are picked up live.
type FileDirectory struct {
	Root   string
	logger *logrus.Logger

	mu     sync.RWMutex
	cache  map[string]*CustomerConfig
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileDirectory creates the root directory if missing, loads whatever
// customer documents already exist, and starts a background fsnotify
// watch on Root so subsequent out-of-band edits are reloaded into cache.
func NewFileDirectory(root string, logger *logrus.Logger) (*FileDirectory, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("configdir: create root %s: %w", root, err)
	}

	d := &FileDirectory{
		Root:   root,
		logger: logger,
		cache:  make(map[string]*CustomerConfig),
		done:   make(chan struct{}),
	}

	if err := d.loadAll(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("configdir: create watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("configdir: watch root %s: %w", root, err)
	}
	d.watcher = watcher

	go d.watchLoop()

	return d, nil
}

func (d *FileDirectory) loadAll() error {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return fmt.Errorf("configdir: read root: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		cfg, err := d.readFile(filepath.Join(d.Root, e.Name()))
		if err != nil {
			d.logger.WithError(err).WithField("file", e.Name()).Warn("configdir: skipping unreadable customer config")
			continue
		}
		d.cache[cfg.Customer] = cfg
	}
	return nil
}

func (d *FileDirectory) readFile(path string) (*CustomerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg CustomerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configdir: parse %s: %w", path, err)
	}
	if cfg.Customer == "" {
		cfg.Customer = trimYAMLExt(filepath.Base(path))
	}
	return &cfg, nil
}

func trimYAMLExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func (d *FileDirectory) watchLoop() {
	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".yaml" {
				continue
			}
			cfg, err := d.readFile(event.Name)
			if err != nil {
				d.logger.WithError(err).WithField("file", event.Name).Warn("configdir: reload failed")
				continue
			}
			d.mu.Lock()
			d.cache[cfg.Customer] = cfg
			d.mu.Unlock()
			d.logger.WithField("customer", cfg.Customer).Info("configdir: reloaded customer config")
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.WithError(err).Warn("configdir: watcher error")
		}
	}
}

// Close stops the background watch. Safe to call once.
func (d *FileDirectory) Close() error {
	close(d.done)
	if d.watcher != nil {
		return d.watcher.Close()
	}
	return nil
}

// ConfigFor returns the named customer's configuration document. An
// unknown customer is reported back as an empty, zero-logfile config
// rather than an error: this collaborator's failure mode only surfaces
// as "logfile not found" further up, in the Registry.
func (d *FileDirectory) ConfigFor(customer string) (*CustomerConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if cfg, ok := d.cache[customer]; ok {
		return cfg, nil
	}
	return &CustomerConfig{Customer: customer}, nil
}

// UpdateCustomerConfig persists cfg to <root>/<customer>.yaml and updates
// the in-memory cache immediately (the watcher will also observe the
// write, but callers should not have to wait for that round trip).
func (d *FileDirectory) UpdateCustomerConfig(cfg *CustomerConfig) error {
	if cfg.Customer == "" {
		return errs.IllegalState("configdir", "UpdateCustomerConfig", "customer config has no customer id")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("configdir: marshal config for %s: %w", cfg.Customer, err)
	}

	path := filepath.Join(d.Root, cfg.Customer+".yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("configdir: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("configdir: rename %s: %w", tmp, err)
	}

	d.mu.Lock()
	d.cache[cfg.Customer] = cfg
	d.mu.Unlock()

	return nil
}
