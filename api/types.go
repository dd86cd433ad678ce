package api

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ruteri/peer-name-service/interfaces"
)

// ErrInvalidName is returned when decoding a name that is not valid UTF-8.
var ErrInvalidName = errors.New("name is not valid UTF-8")

// SignatureHeader carries "<address>:<0x-signature>" on every mutating request.
const SignatureHeader = "X-Registry-Signature"

// Stamp is embedded in every signed request body. Requests whose timestamp lies outside
// the server's clock skew window are rejected, which bounds how long a signature is replayable.
type Stamp struct {
	Timestamp int64 `json:"timestamp"`
}

// IssuedAt returns the request timestamp.
func (s Stamp) IssuedAt() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// NewStamp returns a stamp for t.
func NewStamp(t time.Time) Stamp {
	return Stamp{Timestamp: t.Unix()}
}

// TextName is a registry name carried as a JSON string. The decoder substitutes U+FFFD
// for invalid UTF-8 and unpaired surrogates, so any name containing it is refused rather
// than silently folded onto another name's node.
type TextName string

func (n *TextName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.ContainsRune(s, utf8.RuneError) {
		return ErrInvalidName
	}
	*n = TextName(s)
	return nil
}

// RegisterRequest creates a top-level name. Manager only.
type RegisterRequest struct {
	Stamp
	Name     TextName            `json:"name"`
	Owner    interfaces.Identity `json:"owner"`
	Resolver interfaces.Identity `json:"resolver"`
}

// RegisterSubRequest creates sub under parent, owned by the signer.
type RegisterSubRequest struct {
	Stamp
	Parent   TextName            `json:"parent"`
	Sub      TextName            `json:"sub"`
	Resolver interfaces.Identity `json:"resolver"`
}

// UpdateResolverRequest repoints a name owned by the signer.
type UpdateResolverRequest struct {
	Stamp
	Name     TextName            `json:"name"`
	Resolver interfaces.Identity `json:"resolver"`
}

// UpdateSubResolverRequest repoints sub under a parent owned by the signer.
type UpdateSubResolverRequest struct {
	Stamp
	Parent   TextName            `json:"parent"`
	Sub      TextName            `json:"sub"`
	Resolver interfaces.Identity `json:"resolver"`
}

// TransferRequest hands a name over to NewOwner.
type TransferRequest struct {
	Stamp
	Name     TextName            `json:"name"`
	NewOwner interfaces.Identity `json:"new_owner"`
}

// RenounceRequest deletes the record of Name. Used by both the owner and the manager routes.
type RenounceRequest struct {
	Stamp
	Name     TextName            `json:"name"`
}

// ChangeManagerRequest reassigns the manager role. Admin only.
type ChangeManagerRequest struct {
	Stamp
	NewManager interfaces.Identity `json:"new_manager"`
}

// MutationResponse is returned by every successful mutation.
type MutationResponse struct {
	Op     string              `json:"op"`
	Node   *interfaces.Node    `json:"node,omitempty"`
	Caller interfaces.Identity `json:"caller"`
}

// NameResponse describes the record and resolver of a name or subname.
// Owner is nil when the name has no active record; Resolver may be set regardless.
type NameResponse struct {
	Parent   string               `json:"parent,omitempty"`
	Name     string               `json:"name"`
	Node     interfaces.Node      `json:"node"`
	Exists   bool                 `json:"exists"`
	Owner    *interfaces.Identity `json:"owner,omitempty"`
	Resolver *interfaces.Identity `json:"resolver,omitempty"`
}

// RolesResponse lists the current role holders.
type RolesResponse struct {
	Admin   interfaces.Identity `json:"admin"`
	Manager interfaces.Identity `json:"manager"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
