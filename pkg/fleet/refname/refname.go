// Package refname validates that a Model Descriptor's identity triad
// (organization, family id, id) forms a well-structured reference, the way
// a container image name is validated before it is trusted as an identity.
package refname

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// Validate checks that org/family:id parses as a distribution-style
// reference. Organization may be empty for unaffiliated models, in which
// case family is used as the repository root.
func Validate(organization, family, id string) error {
	repo := family
	if organization != "" {
		repo = organization + "/" + family
	}
	full := repo
	if id != "" {
		full = repo + ":" + sanitizeTag(id)
	}

	named, err := reference.ParseNormalizedNamed(full)
	if err != nil {
		return fmt.Errorf("refname: %q is not a valid model reference: %w", full, err)
	}
	if reference.Path(named) == "" {
		return fmt.Errorf("refname: %q has no repository path", full)
	}
	return nil
}

// sanitizeTag maps an arbitrary model id into a string the reference
// grammar accepts as a tag: only [A-Za-z0-9_.-], starting with an
// alphanumeric.
func sanitizeTag(id string) string {
	var b strings.Builder
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			if i == 0 {
				b.WriteRune('m')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := b.String()
	if out == "" {
		return "m"
	}
	return out
}

// String renders org/family:id into the canonical reference form, with id
// sanitized the same way Validate sanitizes it.
func String(organization, family, id string) string {
	repo := family
	if organization != "" {
		repo = organization + "/" + family
	}
	if id == "" {
		return repo
	}
	return repo + ":" + sanitizeTag(id)
}
