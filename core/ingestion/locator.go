package ingestion

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pharma-margin/internal/errors"
)

// Locator finds the rate file among known and likely names
type Locator struct {
	// Path, when set, is the only file considered
	Path string

	// Candidates are file names tried in each search directory, in order
	Candidates []string

	// SearchDirs default to the working directory
	SearchDirs []string

	// Patterns are glob fallbacks, filtered by Keywords
	Patterns []string
	Keywords []string
}

// DefaultLocator returns the usual file names of the rate grid
func DefaultLocator() *Locator {
	return &Locator{
		Candidates: []string{
			"grille_remises.csv",
			"grille_tarifaire.csv",
			"grille.csv",
			"tarifs.csv",
			"grille_remises.xlsx",
			"grille_tarifaire.xlsx",
		},
		SearchDirs: []string{"."},
		Patterns:   []string{"*.csv", "*.xlsx"},
		Keywords:   []string{"grille", "tarif", "remise"},
	}
}

// Locate returns the first existing candidate
func (l *Locator) Locate() (string, error) {
	var tried []string

	if l.Path != "" {
		if isRegularFile(l.Path) {
			return l.Path, nil
		}
		return "", errors.SourceNotFound([]string{l.Path})
	}

	dirs := l.SearchDirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	for _, dir := range dirs {
		for _, name := range l.Candidates {
			p := filepath.Join(dir, name)
			if isRegularFile(p) {
				return p, nil
			}
			tried = append(tried, p)
		}
	}

	for _, dir := range dirs {
		for _, pattern := range l.Patterns {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return "", errors.Wrapf(errors.TypeConfig, err, "invalid source pattern %q", pattern)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if l.matchesKeyword(m) && isRegularFile(m) {
					return m, nil
				}
			}
			tried = append(tried, filepath.Join(dir, pattern))
		}
	}

	return "", errors.SourceNotFound(tried)
}

func (l *Locator) matchesKeyword(path string) bool {
	if len(l.Keywords) == 0 {
		return true
	}
	name := strings.ToLower(filepath.Base(path))
	for _, k := range l.Keywords {
		if strings.Contains(name, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
