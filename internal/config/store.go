package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/tracknode/internal/logging"
)

// DocumentName is the file name probed in the conventional locations.
const DocumentName = "tracknode.toml"

// attribute binds one document attribute to a Settings field.
type attribute struct {
	section string
	key     string
	// parse applies raw to s. On error s is left unchanged.
	parse  func(s *Settings, raw string) error
	format func(s Settings) string
}

var attributes = []attribute{
	{"tuio", "host",
		func(s *Settings, raw string) error { s.Host = raw; return nil },
		func(s Settings) string { return s.Host }},
	{"tuio", "port",
		intField(func(s *Settings) *int { return &s.Port }),
		func(s Settings) string { return strconv.Itoa(s.Port) }},
	{"camera", "config",
		func(s *Settings, raw string) error { s.CameraConfig = raw; return nil },
		func(s Settings) string { return s.CameraConfig }},
	{"finger", "size",
		intField(func(s *Settings) *int { return &s.FingerSize }),
		func(s Settings) string { return strconv.Itoa(s.FingerSize) }},
	{"finger", "sensitivity",
		intField(func(s *Settings) *int { return &s.FingerSensitivity }),
		func(s Settings) string { return strconv.Itoa(s.FingerSensitivity) }},
	{"image", "display",
		func(s *Settings, raw string) error {
			m, err := ParseDisplayMode(raw)
			if err != nil {
				return err
			}
			s.Display = m
			return nil
		},
		func(s Settings) string { return s.Display.String() }},
	{"image", "equalize",
		func(s *Settings, raw string) error { s.Background = parseFlag(raw); return nil },
		func(s Settings) string { return strconv.FormatBool(s.Background) }},
	{"image", "fullscreen",
		func(s *Settings, raw string) error { s.Fullscreen = parseFlag(raw); return nil },
		func(s Settings) string { return strconv.FormatBool(s.Fullscreen) }},
	{"threshold", "gradient",
		levelField(func(s *Settings) *Level { return &s.Gradient }),
		func(s Settings) string { return strconv.Itoa(s.GradientGate()) }},
	{"threshold", "tile",
		levelField(func(s *Settings) *Level { return &s.Tile }),
		func(s Settings) string { return strconv.Itoa(s.TileSize()) }},
	{"threshold", "threads",
		levelField(func(s *Settings) *Level { return &s.Threads }),
		func(s Settings) string { return strconv.Itoa(s.ThreadCount()) }},
	{"fiducial", "engine",
		func(s *Settings, raw string) error { s.Amoeba = raw == FiducialEngine; return nil },
		func(s Settings) string {
			if s.Amoeba {
				return FiducialEngine
			}
			return "none"
		}},
	{"fiducial", "tree",
		func(s *Settings, raw string) error { s.TreeConfig = raw; return nil },
		func(s Settings) string { return s.TreeConfig }},
	{"calibration", "invert",
		func(s *Settings, raw string) error {
			s.InvertX = strings.Contains(raw, "x")
			s.InvertY = strings.Contains(raw, "y")
			s.InvertA = strings.Contains(raw, "a")
			return nil
		},
		func(s Settings) string {
			var b strings.Builder
			if s.InvertX {
				b.WriteByte('x')
			}
			if s.InvertY {
				b.WriteByte('y')
			}
			if s.InvertA {
				b.WriteByte('a')
			}
			return b.String()
		}},
	{"calibration", "grid",
		func(s *Settings, raw string) error { s.GridConfig = raw; return nil },
		func(s Settings) string { return s.GridConfig }},
}

func intField(field func(*Settings) *int) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		*field(s) = n
		return nil
	}
}

func levelField(field func(*Settings) *Level) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		l, err := ParseLevel(raw)
		if err != nil {
			return err
		}
		*field(s) = l
		return nil
	}
}

// Decode overlays every attribute present in doc onto base. Attributes
// that fail to parse keep the base value and are returned as a joined error.
func Decode(doc *Document, base Settings) (Settings, error) {
	s := base
	var errs []error
	for _, a := range attributes {
		raw, ok := doc.Attr(a.section, a.key)
		if !ok {
			continue
		}
		if err := a.parse(&s, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", a.section, a.key, err))
		}
	}
	return s, errors.Join(errs...)
}

// Encode writes s into the attributes doc already has and returns how many
// changed. An attribute whose stored text already means the current value
// is left byte-for-byte as it was.
func Encode(doc *Document, s Settings) int {
	changed := 0
	for _, a := range attributes {
		raw, ok := doc.Attr(a.section, a.key)
		if !ok {
			continue
		}

		stored := s
		if err := a.parse(&stored, raw); err != nil {
			// Load ignored this text, so the run cannot have changed it.
			continue
		}
		if a.format(stored) == a.format(s) {
			continue
		}
		if doc.Set(a.section, a.key, a.format(s)) {
			changed++
		}
	}
	return changed
}

// Store loads and persists the Settings record.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: logging.GetLogger("config"),
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load returns defaults overlaid with the document. A missing or malformed
// document is logged and yields the defaults unchanged.
func (s *Store) Load() Settings {
	defaults := DefaultSettings()

	doc, err := ReadDocument(s.path)
	if err != nil {
		s.logger.Warn("Error loading configuration file, using defaults", "path", s.path, "error", err)
		return defaults
	}

	settings, err := Decode(doc, defaults)
	if err != nil {
		s.logger.Warn("Ignoring invalid configuration attributes", "path", s.path, "error", err)
	}
	s.logger.Info("Configuration loaded", "path", s.path)
	return settings
}

// Save re-reads the document and rewrites the attributes it already holds.
func (s *Store) Save(settings Settings) error {
	doc, err := ReadDocument(s.path)
	if err != nil {
		return fmt.Errorf("error loading configuration file: %w", err)
	}

	changed := Encode(doc, settings)
	if changed == 0 {
		s.logger.Debug("Configuration unchanged", "path", s.path)
		return nil
	}

	if err := doc.WriteFile(s.path); err != nil {
		return fmt.Errorf("error saving configuration file: %w", err)
	}
	s.logger.Info("Configuration saved", "path", s.path, "changed", changed)
	return nil
}

// RelativeTo resolves a definition file named in the document against the
// document's directory. Absolute paths and NoPath are returned as is.
func RelativeTo(document, path string) string {
	if path == "" || path == NoPath || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(document), path)
}

// SearchPaths lists the conventional document locations in probe order.
func SearchPaths() []string {
	paths := []string{filepath.Join(".", DocumentName)}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "tracknode", DocumentName))
	}
	return append(paths,
		filepath.Join("/usr/share/tracknode", DocumentName),
		filepath.Join("/usr/local/share/tracknode", DocumentName),
		filepath.Join("/opt/share/tracknode", DocumentName),
	)
}

// ResolvePath returns explicit when set, otherwise the first existing
// candidate, falling back to the first candidate.
func ResolvePath(explicit string, candidates []string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return DocumentName
}
