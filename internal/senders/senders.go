// Package senders holds the known-sender database: curated YAML records
// describing mailing-list operators, the category of mail they send, and
// where their preference pages live. Records supplement what detection finds
// in message bodies.
package senders

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func isValidURL(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func sanitizeSender(s *Sender) {
	if !isValidURL(s.PreferencesURL) {
		s.PreferencesURL = ""
	}
	if !isValidURL(s.Website) {
		s.Website = ""
	}
	s.Domain = strings.ToLower(strings.TrimSpace(s.Domain))
}

type Sender struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Domain         string   `yaml:"domain"`
	Website        string   `yaml:"website,omitempty"`
	PreferencesURL string   `yaml:"preferences_url,omitempty"`
	Category       string   `yaml:"category,omitempty"` // "newsletter", "promotional", "transactional", etc.
	Notes          string   `yaml:"notes,omitempty"`
	Keep           bool     `yaml:"keep,omitempty"` // never offer this sender for unsubscribe
	Tags           []string `yaml:"tags,omitempty"`
}

type Database struct {
	Senders []Sender `yaml:"senders"`
}

func LoadFromFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sender file: %w", err)
	}

	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse sender file: %w", err)
	}

	for i := range db.Senders {
		sanitizeSender(&db.Senders[i])
	}
	return &db, nil
}

func LoadFromDir(dir string) (*Database, error) {
	db := &Database{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sender directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		partialDB, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}

		db.Senders = append(db.Senders, partialDB.Senders...)
	}

	return db, nil
}

func (db *Database) FindByID(id string) *Sender {
	id = strings.ToLower(id)
	for i := range db.Senders {
		if strings.ToLower(db.Senders[i].ID) == id {
			return &db.Senders[i]
		}
	}
	return nil
}

// FindByDomain matches a sender domain, including subdomains of a known
// domain (mail.example.com matches an example.com record)
func (db *Database) FindByDomain(domain string) *Sender {
	domain = strings.ToLower(domain)
	for i := range db.Senders {
		d := db.Senders[i].Domain
		if d == "" {
			continue
		}
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return &db.Senders[i]
		}
	}
	return nil
}

// Filter returns senders matching the given categories, minus the excluded
// IDs and anything marked keep
func (db *Database) Filter(categories []string, excluded []string) []Sender {
	categorySet, excludedSet := toSet(categories), toSet(excluded)

	var result []Sender
	for _, s := range db.Senders {
		if s.Keep {
			continue
		}
		if excludedSet[strings.ToLower(s.ID)] || excludedSet[s.Domain] {
			continue
		}
		if len(categorySet) > 0 && !categorySet[strings.ToLower(s.Category)] {
			continue
		}
		result = append(result, s)
	}
	return result
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[strings.ToLower(s)] = true
	}
	return m
}

func (db *Database) Add(sender Sender) error {
	if db.FindByID(sender.ID) != nil {
		return fmt.Errorf("sender with ID %q already exists", sender.ID)
	}
	sanitizeSender(&sender)
	db.Senders = append(db.Senders, sender)
	return nil
}

// RemoveByID removes a sender record, returning the removed record or nil
// if not found
func (db *Database) RemoveByID(id string) *Sender {
	id = strings.ToLower(id)
	for i := range db.Senders {
		if strings.ToLower(db.Senders[i].ID) == id {
			removed := db.Senders[i]
			db.Senders = append(db.Senders[:i], db.Senders[i+1:]...)
			return &removed
		}
	}
	return nil
}

func (db *Database) Save(path string) error {
	data, err := yaml.Marshal(db)
	if err != nil {
		return fmt.Errorf("failed to serialize senders: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// SaveWithBackup saves the database, keeping the previous file as .bak
func (db *Database) SaveWithBackup(path string) error {
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file for backup: %w", err)
		}
		backupPath := path + ".bak"
		if err := os.WriteFile(backupPath, data, 0644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	return db.Save(path)
}
