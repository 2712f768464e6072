package model

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Operation names passed to Permissions.Allows, one per spec.md §3 bit
// (excluding superuser, which Allows short-circuits on instead of
// dispatching through this table).
const (
	OpLoad             = "load"
	OpUnload           = "unload"
	OpDownload         = "download"
	OpSession          = "session" // covers both create_session and prompt_session
	OpView             = "view"
	OpBareModel        = "bare_model"
	OpRequestDownload  = "request_download"
	OpRequestLoad      = "request_load"
	OpRequestUnload    = "request_unload"
)

// Permissions is the Permission Set of spec.md §3: a fixed vector of named
// permission bits (superuser, load, unload, download, session, view,
// bare-model, and three "request-" variants), grounded on the original's
// user.rs Permissions/User structs (perm_superuser, perm_load_llm,
// perm_unload_llm, perm_download_llm, perm_session, perm_view_llms,
// perm_bare_model, perm_request_download, perm_request_load,
// perm_request_unload).
type Permissions struct {
	Superuser bool

	PermLoad     bool
	PermUnload   bool
	PermDownload bool
	PermSession  bool // create_session AND prompt_session, per the original's perm_session
	PermView     bool
	PermBareModel bool

	PermRequestDownload bool
	PermRequestLoad     bool
	PermRequestUnload   bool
}

// Allows reports whether a Permissions value grants op, always true for a
// superuser.
func (p Permissions) Allows(op string) bool {
	if p.Superuser {
		return true
	}
	switch op {
	case OpLoad:
		return p.PermLoad
	case OpUnload:
		return p.PermUnload
	case OpDownload:
		return p.PermDownload
	case OpSession:
		return p.PermSession
	case OpView:
		return p.PermView
	case OpBareModel:
		return p.PermBareModel
	case OpRequestDownload:
		return p.PermRequestDownload
	case OpRequestLoad:
		return p.PermRequestLoad
	case OpRequestUnload:
		return p.PermRequestUnload
	default:
		return false
	}
}

// User is the User of spec.md §3.
type User struct {
	ID          uuid.UUID
	Name        string
	APIKey      string
	Permissions Permissions
}

// GenerateAPIKey returns a fresh random hex-encoded API key, grounded on
// the original's generate_api_key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// LocalSuperuser builds the bootstrap superuser record read from
// FLEETD_SUPERUSER_ID / FLEETD_SUPERUSER_KEY at daemon startup.
func LocalSuperuser(id uuid.UUID, apiKey string) User {
	return User{
		ID:     id,
		Name:   "local-superuser",
		APIKey: apiKey,
		Permissions: Permissions{
			Superuser: true,
		},
	}
}

// LocalUser returns the zero-UUID superuser the original's get_local_user
// stands in for direct (non-networked) callers — the CLI uses it so that,
// per the original's comment, "local calls skip the user auth layer".
func LocalUser() User {
	return User{
		ID:          uuid.Nil,
		Name:        "local",
		Permissions: Permissions{Superuser: true},
	}
}
