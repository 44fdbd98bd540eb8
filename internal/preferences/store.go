// Package preferences persists explicit device selections between runs.
package preferences

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

const (
	componentName = "preferences"
	fileVersion   = 1
)

// DefaultFile is the store location relative to the XDG data directory.
const DefaultFile = "libwebphone/preferences.yaml"

type document struct {
	Version int                 `yaml:"version"`
	Devices map[string][]string `yaml:"devices"`
}

// Store keeps per-class device ids, highest preference first, in a YAML file.
type Store struct {
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// DefaultPath resolves DefaultFile under $XDG_DATA_HOME, creating parent directories.
func DefaultPath() (string, error) {
	path, err := xdg.DataFile(DefaultFile)
	if err != nil {
		return "", errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "resolve_data_file").
			Build()
	}
	return path, nil
}

// New opens a store at path, or at DefaultPath when path is empty.
func New(path string, log logger.Logger) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logger.Global().Module(componentName)
	}
	return &Store{path: path, log: log}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Load reads the stored order. A missing file is an empty store.
func (s *Store) Load() (map[mediadevices.DeviceClass][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[mediadevices.DeviceClass][]string{}, nil
	}
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("path", s.path).
			Build()
	}

	out := make(map[mediadevices.DeviceClass][]string, len(doc.Devices))
	for name, ids := range doc.Devices {
		class, err := mediadevices.ParseDeviceClass(name)
		if err != nil {
			s.log.Warn("ignoring stored preferences for unknown class", logger.String("class", name))
			continue
		}
		out[class] = ids
	}
	return out, nil
}

// Save replaces the stored order atomically.
func (s *Store) Save(order map[mediadevices.DeviceClass][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := document{Version: fileVersion, Devices: make(map[string][]string, len(order))}
	for class, ids := range order {
		doc.Devices[class.String()] = ids
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryGeneric).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Build()
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("path", s.path).
			Context("operation", "atomic_write").
			Build()
	}
	s.log.Debug("device preferences saved", logger.String("path", s.path))
	return nil
}
