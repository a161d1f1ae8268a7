// Package prefs persists small user preference documents as YAML files, one
// file per namespace.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Namespaces used by the application.
const (
	AppNamespace   = "app-preferences"
	ThemeNamespace = "theme-preferences"
)

// Themes.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// ErrInvalidNamespace is returned for namespaces that are not safe file names.
var ErrInvalidNamespace = errors.New("invalid preferences namespace")

var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Preferences is the document stored under AppNamespace. The theme has its
// own namespace.
type Preferences struct {
	Mode      string    `yaml:"mode,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// ThemePreferences is the document stored under ThemeNamespace.
type ThemePreferences struct {
	Theme string `yaml:"theme"`
}

// DefaultTheme returns the theme used when none has been saved.
func DefaultTheme() string { return ThemeDark }

// ValidTheme reports whether theme is one of the known themes.
func ValidTheme(theme string) bool {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Store manages preference files under a directory.
type Store struct {
	basePath string
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}

	return &Store{basePath: basePath}, nil
}

// Path returns the directory the store writes to.
func (s *Store) Path() string { return s.basePath }

// Load decodes the namespace into v. It reports false when nothing is saved.
func (s *Store) Load(ctx context.Context, namespace string, v any) (bool, error) {
	path, err := s.path(namespace)
	if err != nil {
		return false, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read preferences %s: %w", namespace, err)
	}

	if err := yaml.Unmarshal(content, v); err != nil {
		return false, fmt.Errorf("failed to parse preferences %s: %w", namespace, err)
	}

	return true, nil
}

// Save encodes v into the namespace file. The write goes to a temporary file
// in the same directory which then replaces the target.
func (s *Store) Save(ctx context.Context, namespace string, v any) error {
	path, err := s.path(namespace)
	if err != nil {
		return err
	}

	content, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences %s: %w", namespace, err)
	}

	tmp, err := os.CreateTemp(s.basePath, namespace+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write preferences %s: %w", namespace, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write preferences %s: %w", namespace, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace preferences %s: %w", namespace, err)
	}

	return nil
}

// Delete removes the namespace file. Deleting a missing namespace is not an error.
func (s *Store) Delete(ctx context.Context, namespace string) error {
	path, err := s.path(namespace)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete preferences %s: %w", namespace, err)
	}

	return nil
}

// Namespaces lists the saved namespaces.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}

	return names, nil
}

// LoadPreferences returns the saved app preferences, or the zero value.
func (s *Store) LoadPreferences(ctx context.Context) (Preferences, error) {
	var p Preferences
	if _, err := s.Load(ctx, AppNamespace, &p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// SaveMode updates the mode in the app preferences.
func (s *Store) SaveMode(ctx context.Context, mode string) error {
	p, err := s.LoadPreferences(ctx)
	if err != nil {
		p = Preferences{}
	}
	p.Mode = mode
	p.UpdatedAt = time.Now().UTC()
	return s.Save(ctx, AppNamespace, p)
}

// Theme returns the saved theme, or the default.
func (s *Store) Theme(ctx context.Context) (string, error) {
	var tp ThemePreferences
	ok, err := s.Load(ctx, ThemeNamespace, &tp)
	if err != nil || !ok || !ValidTheme(tp.Theme) {
		return DefaultTheme(), err
	}
	return tp.Theme, nil
}

// SetTheme saves the theme.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if !ValidTheme(theme) {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return s.Save(ctx, ThemeNamespace, ThemePreferences{Theme: theme})
}

func (s *Store) path(namespace string) (string, error) {
	if !namespacePattern.MatchString(namespace) {
		return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	return filepath.Join(s.basePath, namespace+".yaml"), nil
}
