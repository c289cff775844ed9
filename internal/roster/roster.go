// Package roster is the persistent subject registry used by database mode
// (spec.md §4.5): name -> canonical visual description + reference paths.
//
// Grounded on the teacher's subject-registration flow in
// internal/compreface/subjects.go (name uniqueness, sanitized tokens,
// collision handling) generalized to the roster's own add/remove/list/
// validate surface, and persisted as YAML per spec.md §6's "backwards-
// compatible mapping {people: [...]}" schema.
package roster

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/names"
	"github.com/racelens/organizer/internal/vision"
)

// Entry is one registered subject (spec.md §3's RosterEntry).
type Entry struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	ReferencePaths []string `yaml:"reference_paths"`
	Notes          string   `yaml:"notes,omitempty"`
	CreatedAt      string   `yaml:"created_at"`
}

// document is the on-disk shape: {people: [...]}.
type document struct {
	People []Entry `yaml:"people"`
}

// Roster is the persistent name -> Entry mapping.
type Roster struct {
	path   string
	byName map[string]*Entry
	people []*Entry // preserves insertion order for List()
}

// Load reads path into a new Roster. A missing file is an empty roster.
func Load(path string) (*Roster, error) {
	r := &Roster{path: path, byName: make(map[string]*Entry)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryConfig, "roster.load", err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.CategoryConfig, "roster.load", err)
	}

	for i := range doc.People {
		e := &doc.People[i]
		r.byName[e.Name] = e
		r.people = append(r.people, e)
	}
	return r, nil
}

// Describer is the subset of vision.Client the roster needs to describe a
// reference photo when adding a subject.
type Describer interface {
	DescribeOneFace(imageBase64, filename string) (string, error)
}

// Add registers name with a canonical description derived from
// referencePath via describer.DescribeOneFace. Returns a config-category
// error if referencePath does not exist or name is already registered.
func (r *Roster) Add(describer Describer, name, referencePath, notes string, imageBase64 string) error {
	if _, ok := r.byName[name]; ok {
		return apperr.New(apperr.CategoryConfig, "roster.add", fmt.Errorf("subject %q is already registered", name))
	}
	if _, err := os.Stat(referencePath); err != nil {
		return apperr.Wrap(apperr.CategoryConfig, "roster.add", fmt.Errorf("reference path %q: %w", referencePath, err))
	}

	description, err := describer.DescribeOneFace(imageBase64, referencePath)
	if err != nil {
		return err
	}

	e := &Entry{
		Name:           name,
		Description:    description,
		ReferencePaths: []string{referencePath},
		Notes:          notes,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	r.byName[name] = e
	r.people = append(r.people, e)
	return nil
}

// Remove deletes name from the roster. Returns a config-category error if
// name is not registered.
func (r *Roster) Remove(name string) error {
	if _, ok := r.byName[name]; !ok {
		return apperr.New(apperr.CategoryConfig, "roster.remove", fmt.Errorf("subject %q is not registered", name))
	}
	delete(r.byName, name)
	for i, e := range r.people {
		if e.Name == name {
			r.people = append(r.people[:i], r.people[i+1:]...)
			break
		}
	}
	return nil
}

// List returns all entries in insertion order.
func (r *Roster) List() []Entry {
	out := make([]Entry, len(r.people))
	for i, e := range r.people {
		out[i] = *e
	}
	return out
}

// Get returns the entry for name, if registered.
func (r *Roster) Get(name string) (Entry, bool) {
	e, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Validate reports the names of entries whose reference path(s) no longer
// exist on disk (spec.md §4.5).
func (r *Roster) Validate() []string {
	var missing []string
	for _, e := range r.people {
		for _, p := range e.ReferencePaths {
			if _, err := os.Stat(p); err != nil {
				missing = append(missing, e.Name)
				break
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// Save atomically persists the roster to path.
func (r *Roster) Save() error {
	doc := document{People: r.List()}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return apperr.Wrap(apperr.CategoryConfig, "roster.save", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return apperr.Wrap(apperr.CategoryConfig, "roster.save", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return apperr.Wrap(apperr.CategoryConfig, "roster.save", err)
	}
	return nil
}

// SanitizedName applies the same filesystem-safe sanitization used for
// cluster names (spec.md §6: "Name used as an identifier must be a
// filesystem-safe token").
func SanitizedName(raw string) string {
	return names.Sanitize(raw)
}

// Compare is a convenience used by the matcher: score of detection's
// description against entry's canonical description.
func Compare(comparer interface {
	CompareTwoDescriptions(a, b string) (float64, error)
}, detection vision.SubjectDetection, entry Entry) (float64, error) {
	return comparer.CompareTwoDescriptions(detection.OutfitDescription, entry.Description)
}
