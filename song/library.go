package song

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-phrase/config"
	"go-phrase/errs"
)

const stampLayout = "2006-01-02_15-04-05"

// SaveInfo describes a saved song file
type SaveInfo struct {
	Filename  string
	Name      string // parsed from the filename, empty if unnamed
	Timestamp time.Time
}

// Library is a directory of timestamped song saves
type Library struct {
	Dir string
}

// DefaultLibrary returns the library under the config directory
func DefaultLibrary() (*Library, error) {
	base, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return &Library{Dir: filepath.Join(base, "songs")}, nil
}

// List returns the saves, newest first
func (l *Library) List() ([]SaveInfo, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		base := strings.TrimSuffix(name, ".yaml")
		if len(base) < len(stampLayout) {
			continue
		}
		ts, err := time.Parse(stampLayout, base[:len(stampLayout)])
		if err != nil {
			continue
		}
		info := SaveInfo{Filename: name, Timestamp: ts}
		if len(base) > len(stampLayout)+1 && base[len(stampLayout)] == '_' {
			info.Name = base[len(stampLayout)+1:]
		}
		saves = append(saves, info)
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// Save writes s under a new timestamped filename and returns it
func (l *Library) Save(s *Song, name string) (string, error) {
	return l.saveAt(s, name, time.Now())
}

func (l *Library) saveAt(s *Song, name string, at time.Time) (string, error) {
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return "", err
	}
	data, err := s.Marshal()
	if err != nil {
		return "", err
	}
	filename := at.Format(stampLayout)
	if name = sanitizeFilename(name); name != "" {
		filename += "_" + name
	}
	filename += ".yaml"
	if err := os.WriteFile(filepath.Join(l.Dir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// Load reads a save; an empty filename loads the newest one
func (l *Library) Load(filename string) (*Song, error) {
	if filename == "" {
		saves, err := l.List()
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, errs.New(errs.InvalidSong, "no saves in %s", l.Dir)
		}
		filename = saves[0].Filename
	}
	return Load(filepath.Join(l.Dir, filename))
}

// Find returns the newest save with the given name
func (l *Library) Find(name string) (*Song, error) {
	saves, err := l.List()
	if err != nil {
		return nil, err
	}
	name = sanitizeFilename(name)
	for _, s := range saves {
		if s.Name == name {
			return Load(filepath.Join(l.Dir, s.Filename))
		}
	}
	return nil, errs.New(errs.InvalidSong, "no song named %q", name)
}

// Delete removes a save
func (l *Library) Delete(filename string) error {
	return os.Remove(filepath.Join(l.Dir, filename))
}

// Rename changes the name part of a save, keeping its timestamp
func (l *Library) Rename(filename, name string) (string, error) {
	base := strings.TrimSuffix(filename, ".yaml")
	if len(base) < len(stampLayout) {
		return "", errs.New(errs.InvalidSong, "invalid save filename %q", filename)
	}
	next := base[:len(stampLayout)]
	if name = sanitizeFilename(name); name != "" {
		next += "_" + name
	}
	next += ".yaml"
	if err := os.Rename(filepath.Join(l.Dir, filename), filepath.Join(l.Dir, next)); err != nil {
		return "", err
	}
	return next, nil
}

var filenameReplacer = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
)

// sanitizeFilename replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(strings.TrimSpace(name))
}
