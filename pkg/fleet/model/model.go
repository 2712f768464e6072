// Package model holds the data types shared across fleetd: the Model
// Descriptor, Worker Handle metadata, Session, History Item, LLM Event
// payloads, Cancellation Token, and the User & Permission Set.
package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// BackendKind is the closed tagged variant identifying which Backend
// Adapter implementation a Model Descriptor is bound to.
type BackendKind string

const (
	BackendHosted     BackendKind = "hosted"
	BackendLocal      BackendKind = "local"
	BackendGenericHTTP BackendKind = "generic_http"
)

// Descriptor is the Model Descriptor of spec.md §3: the immutable
// identity, metadata, and configuration record for one model the fleet
// knows about.
type Descriptor struct {
	ID           string // short identifier, unique within Organization/FamilyID
	FamilyID     string // e.g. "gpt", "llama"
	Organization string // e.g. "openai"; "" permitted for unaffiliated models

	Name        string
	Homepage    string
	Description string
	License     string

	DownloadedReason string
	DownloadedDate   time.Time

	mu         sync.RWMutex
	lastCalled *time.Time

	// Capabilities maps a capability name to an integer score; 0 means not
	// capable, -1 means not evaluated.
	Capabilities map[string]int
	Tags         []string
	Requirements string

	UUID uuid.UUID
	URL  string

	History []HistoryItem

	Backend  BackendKind
	Config   map[string]any // adapter-specific configuration, validated at Load
	ModelPath string        // local filesystem path, used by the local backend only

	// Parameters is applied to every prompt by default; UserParameters names
	// the subset of keys a caller's own parameters may override.
	Parameters     map[string]any
	UserParameters []string

	// SessionParameters/UserSessionParameters are the session-scoped analogue.
	SessionParameters     map[string]any
	UserSessionParameters []string
}

// LastCalled returns the last time this descriptor was used, if ever.
func (d *Descriptor) LastCalled() (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastCalled == nil {
		return time.Time{}, false
	}
	return *d.lastCalled, true
}

// TouchCalled records now() as the last-called time.
func (d *Descriptor) TouchCalled(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastCalled = &now
}

// Clone returns a deep-enough copy of d suitable for handing to a caller
// without risking concurrent mutation of shared maps/slices.
func (d *Descriptor) Clone() *Descriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()

	clone := &Descriptor{
		ID: d.ID, FamilyID: d.FamilyID, Organization: d.Organization,
		Name: d.Name, Homepage: d.Homepage, Description: d.Description, License: d.License,
		DownloadedReason: d.DownloadedReason, DownloadedDate: d.DownloadedDate,
		Requirements: d.Requirements, UUID: d.UUID, URL: d.URL,
		Backend: d.Backend, ModelPath: d.ModelPath,
	}
	if d.lastCalled != nil {
		t := *d.lastCalled
		clone.lastCalled = &t
	}
	clone.Capabilities = cloneIntMap(d.Capabilities)
	clone.Tags = append([]string(nil), d.Tags...)
	clone.History = append([]HistoryItem(nil), d.History...)
	clone.Config = cloneAnyMap(d.Config)
	clone.Parameters = cloneAnyMap(d.Parameters)
	clone.UserParameters = append([]string(nil), d.UserParameters...)
	clone.SessionParameters = cloneAnyMap(d.SessionParameters)
	clone.UserSessionParameters = append([]string(nil), d.UserSessionParameters...)
	return clone
}

func cloneIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HistoryItem is a single caller/request/response record attached to a
// Descriptor, per spec.md §3.
type HistoryItem struct {
	Caller    string
	Request   string
	Response  string
	Timestamp time.Time
}

// Session is the Session of spec.md §3: a conversation held open against a
// Model Worker, with its own history and reconciled session parameters.
type Session struct {
	ID               uuid.UUID
	Started          time.Time
	LastCalled       time.Time
	UserID           uuid.UUID
	ModelUUID        uuid.UUID
	SessionParameters map[string]any
	Items            []SessionHistoryItem
}

// SessionHistoryItem is one turn of a Session's transcript.
type SessionHistoryItem struct {
	ID              uuid.UUID
	UpdatedTimestamp time.Time
	CallTimestamp    time.Time
	Complete         bool
	Parameters       map[string]any
	Input            string
	Output           string
}
