// Package suppress implements the do-not-contact list: contacts,
// domains, and companies that must never receive outreach,
// regardless of mode level or kill-switch state. Opt-outs land here.
package suppress

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Patterns holds the raw pattern strings organized by category.
type Patterns struct {
	// Contacts are exact contact IDs, case-insensitive.
	Contacts []string `yaml:"contacts"`
	// Domains match any contact at the domain ("@example.com").
	Domains []string `yaml:"domains"`
	// Companies are exact company names, case-insensitive.
	Companies []string `yaml:"companies"`
}

// List holds normalized patterns for fast matching.
type List struct {
	mu        sync.RWMutex
	contacts  map[string]bool
	domains   []string
	companies map[string]bool
}

// New creates a List from raw patterns.
func New(p Patterns) *List {
	l := &List{
		contacts:  make(map[string]bool, len(p.Contacts)),
		companies: make(map[string]bool, len(p.Companies)),
	}
	for _, c := range p.Contacts {
		l.contacts[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, d := range p.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if !strings.HasPrefix(d, "@") {
			d = "@" + d
		}
		l.domains = append(l.domains, d)
	}
	for _, c := range p.Companies {
		l.companies[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return l
}

// Load reads a suppression list from a YAML file. A missing file is
// an empty list, not an error: suppression is opt-in.
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(Patterns{}), nil
		}
		return nil, fmt.Errorf("suppress: read list: %w", err)
	}

	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("suppress: parse list: %w", err)
	}
	return New(p), nil
}

// Suppressed checks whether outreach to the contact or company is
// forbidden. Returns (true, reason) on a match.
func (l *List) Suppressed(contactID, company string) (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	contact := strings.ToLower(contactID)
	if l.contacts[contact] {
		return true, "contact on do-not-contact list: " + contactID
	}
	for _, d := range l.domains {
		if strings.HasSuffix(contact, d) {
			return true, "domain on do-not-contact list: " + d
		}
	}
	if company != "" && l.companies[strings.ToLower(company)] {
		return true, "company on do-not-contact list: " + company
	}
	return false, ""
}

// Add adds a contact to the list at runtime.
func (l *List) Add(contactID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contacts[strings.ToLower(strings.TrimSpace(contactID))] = true
}
