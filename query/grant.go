package query

import (
	"fmt"
	"strings"

	"github.com/jonwraymond/querycache/document"
)

// GrantMode is the global access policy for query documents.
type GrantMode string

const (
	// GrantPublic runs every query unless its document is denied.
	GrantPublic GrantMode = "public"
	// GrantOnlyAllowed runs only persisted documents granted Allow.
	GrantOnlyAllowed GrantMode = "only_allowed"
	// GrantSomeDenied blocks documents granted Deny.
	GrantSomeDenied GrantMode = "some_denied"
)

// ParseGrantMode parses a grant mode. The empty string is GrantPublic.
func ParseGrantMode(s string) (GrantMode, error) {
	switch m := GrantMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return GrantPublic, nil
	case GrantPublic, GrantOnlyAllowed, GrantSomeDenied:
		return m, nil
	default:
		return GrantPublic, fmt.Errorf("query: invalid grant mode %q", s)
	}
}

// CheckGrant applies mode to a request. doc is nil for ad-hoc query text
// that matches no persisted document.
func CheckGrant(mode GrantMode, doc *document.QueryDocument) error {
	grant := document.GrantUseDefault
	if doc != nil {
		grant = doc.Grant
	}

	switch mode {
	case GrantOnlyAllowed:
		if grant != document.GrantAllow {
			return ErrValidationBlocked
		}
	default:
		if grant == document.GrantDeny {
			return ErrValidationBlocked
		}
	}
	return nil
}
