package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Role determines what an identity is allowed to administer.
type Role string

const (
	// RoleAdmin identities manage rules, approvals, and other identities.
	// They also receive approval-request notifications.
	RoleAdmin Role = "ADMIN"

	// RoleMember identities may only submit commands and read their own
	// credits and history.
	RoleMember Role = "MEMBER"
)

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Identity is an authenticated requester known to the engine.
type Identity struct {
	// ID is the stable identifier referenced by audit entries and
	// approval requests.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Mail is the contact address used for approval notifications.
	Mail string `json:"mail"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty"`

	// Role is ADMIN or MEMBER.
	Role Role `json:"role"`

	// APIKey is the bearer token presented on command submission.
	APIKey string `json:"api_key"`

	// Credit is the spendable balance at creation time. The credit
	// ledger is authoritative after that.
	Credit int64 `json:"credit"`

	// CreatedAt is when the identity was registered.
	CreatedAt time.Time `json:"created_at"`
}

// Admin is the contact projection of an ADMIN identity handed to the
// notifier.
type Admin struct {
	Mail string `json:"mail"`
	Name string `json:"name"`
}

// NewAPIKey derives an API key for a mail address. The key is an
// HMAC-SHA256 of the address and the issue time, so re-issuing for the
// same address yields a fresh key.
func NewAPIKey(secret, mail string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(mail))
	mac.Write([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
