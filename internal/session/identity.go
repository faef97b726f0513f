package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/employee-console/internal/roles"
)

// Claim names carrying the role. ASP.NET style APIs emit the long form.
var roleClaimKeys = []string{
	"role",
	"roles",
	"http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
}

// Identity is derived from the bearer token and never stored on its own.
type Identity struct {
	SubjectID string
	Email     string
	Role      roles.Role
	ExpiresAt time.Time
}

// Capabilities resolves the role predicates for the identity.
func (i *Identity) Capabilities() roles.Capabilities {
	if i == nil {
		return roles.Capabilities{}
	}
	return roles.For(i.Role)
}

// ExpiredAt reports whether the token carried an exp claim that lies
// before now. Tokens without exp never expire client-side.
func (i *Identity) ExpiredAt(now time.Time) bool {
	if i == nil || i.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(i.ExpiresAt)
}

// DecodeIdentity reads the token claims without verifying the signature;
// the API remains the authority. Any decoding problem, or a token lacking
// an email or a recognised role, yields nil.
func DecodeIdentity(token string) *Identity {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	email, _ := claims["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	role, ok := roleFromClaims(claims)
	if !ok {
		return nil
	}

	identity := &Identity{Email: email, Role: role}
	if sub, err := claims.GetSubject(); err == nil {
		identity.SubjectID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity
}

func roleFromClaims(claims jwt.MapClaims) (roles.Role, bool) {
	for _, key := range roleClaimKeys {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		if role, ok := roleFromValue(raw); ok {
			return role, true
		}
	}
	return roles.Unknown, false
}

func roleFromValue(raw any) (roles.Role, bool) {
	switch v := raw.(type) {
	case string:
		role, err := roles.Parse(v)
		return role, err == nil
	case float64:
		if v != float64(int(v)) {
			return roles.Unknown, false
		}
		role, err := roles.FromCode(int(v))
		return role, err == nil
	case []any:
		for _, item := range v {
			if role, ok := roleFromValue(item); ok {
				return role, true
			}
		}
	}
	return roles.Unknown, false
}
