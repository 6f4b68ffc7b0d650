// Package persons holds the per-person profile knowledge base that biases
// termin extraction: who people are, where their activities happen, and
// which recurring patterns and corrections have been learned over time.
package persons

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Place is a known location with the context needed to disambiguate it.
type Place struct {
	Name    string `yaml:"name"`
	Kontext string `yaml:"kontext,omitempty"`
}

// Activity is a recurring activity with its pattern and inference rules.
type Activity struct {
	Typ         string   `yaml:"typ,omitempty"`
	Muster      string   `yaml:"muster,omitempty"`
	Ort         string   `yaml:"ort,omitempty"`
	TerminLogik []string `yaml:"termin_logik,omitempty"`
}

// Learned holds machine-written observations, kept separate from the
// hand-maintained part of a profile.
type Learned struct {
	TimeObservations map[string][]string `yaml:"time_observations,omitempty"`
}

// Profile is one person's knowledge file.
type Profile struct {
	Name          string              `yaml:"name"`
	Rolle         string              `yaml:"rolle,omitempty"`
	Alias         []string            `yaml:"alias,omitempty"`
	Fakten        []string            `yaml:"fakten,omitempty"`
	Orte          map[string]Place    `yaml:"orte,omitempty"`
	Aktivitaeten  map[string]Activity `yaml:"aktivitaeten,omitempty"`
	TerminHinweise []string           `yaml:"termin_hinweise,omitempty"`
	Learned       Learned             `yaml:"_learned,omitempty"`
}

// clone deep-copies a profile. The snapshot hands out shared pointers to
// concurrent readers, so anything that wants to mutate a profile must work
// on a clone and swap the snapshot afterwards.
func (p *Profile) clone() *Profile {
	c := *p
	c.Alias = append([]string(nil), p.Alias...)
	c.Fakten = append([]string(nil), p.Fakten...)
	c.TerminHinweise = append([]string(nil), p.TerminHinweise...)
	if p.Orte != nil {
		c.Orte = make(map[string]Place, len(p.Orte))
		for k, v := range p.Orte {
			c.Orte[k] = v
		}
	}
	if p.Aktivitaeten != nil {
		c.Aktivitaeten = make(map[string]Activity, len(p.Aktivitaeten))
		for k, v := range p.Aktivitaeten {
			v.TerminLogik = append([]string(nil), v.TerminLogik...)
			c.Aktivitaeten[k] = v
		}
	}
	if p.Learned.TimeObservations != nil {
		c.Learned.TimeObservations = make(map[string][]string, len(p.Learned.TimeObservations))
		for k, v := range p.Learned.TimeObservations {
			c.Learned.TimeObservations[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// snapshot is an immutable view of all loaded profiles. Readers always see
// a complete snapshot; Reload swaps in a fresh one rather than mutating.
type snapshot struct {
	byKey    map[string]*Profile // lowercase name and aliases -> profile
	profiles []*Profile          // unique profiles, sorted by name
}

// Directory loads and caches person profiles from a directory of YAML files.
type Directory struct {
	dir    string
	logger *slog.Logger

	current atomic.Pointer[snapshot]
	loadMu  sync.Mutex // serializes Reload, not reads
}

func NewDirectory(dir string, logger *slog.Logger) *Directory {
	return &Directory{dir: dir, logger: logger}
}

// Load parses the directory once and caches the result. Safe to call from
// any goroutine; concurrent callers share one parse.
func (d *Directory) Load() error {
	if d.current.Load() != nil {
		return nil
	}
	return d.Reload()
}

// Reload forces a fresh parse and atomically swaps the snapshot so
// concurrent readers never observe a half-updated profile set.
func (d *Directory) Reload() error {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	snap, err := d.parse()
	if err != nil {
		return err
	}
	d.current.Store(snap)
	d.logger.Info("person profiles loaded", "count", len(snap.profiles))
	return nil
}

func (d *Directory) parse() (*snapshot, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Warn("persons directory not found", "dir", d.dir)
			return &snapshot{byKey: map[string]*Profile{}}, nil
		}
		return nil, fmt.Errorf("read persons dir: %w", err)
	}

	snap := &snapshot{byKey: map[string]*Profile{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(d.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			d.logger.Warn("failed to read person profile", "file", e.Name(), "error", err)
			continue
		}
		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			d.logger.Warn("failed to parse person profile", "file", e.Name(), "error", err)
			continue
		}
		if p.Name == "" {
			continue
		}

		snap.profiles = append(snap.profiles, &p)
		snap.byKey[strings.ToLower(p.Name)] = &p
		for _, alias := range p.Alias {
			snap.byKey[strings.ToLower(alias)] = &p
		}
	}

	sort.Slice(snap.profiles, func(i, j int) bool { return snap.profiles[i].Name < snap.profiles[j].Name })
	return snap, nil
}

func (d *Directory) snap() *snapshot {
	if s := d.current.Load(); s != nil {
		return s
	}
	if err := d.Load(); err != nil {
		d.logger.Warn("person profile load failed", "error", err)
		return &snapshot{byKey: map[string]*Profile{}}
	}
	return d.current.Load()
}

// Lookup resolves a name or alias to its profile.
func (d *Directory) Lookup(name string) (*Profile, bool) {
	p, ok := d.snap().byKey[strings.ToLower(name)]
	return p, ok
}

// All returns the unique loaded profiles.
func (d *Directory) All() []*Profile {
	return d.snap().profiles
}

// path returns the YAML file backing a profile name.
func (d *Directory) path(name string) string {
	return filepath.Join(d.dir, strings.ToLower(name)+".yaml")
}

// save writes a mutated profile back to disk. Callers must Reload after.
func (d *Directory) save(p *Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.WriteFile(d.path(p.Name), data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
