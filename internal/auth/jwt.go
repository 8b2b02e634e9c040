package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const Issuer = "carepath"

type Role string

const (
	RoleParticipant Role = "participant"
	RoleGroupAdmin  Role = "groupAdmin"
	RoleProvider    Role = "provider"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleGroupAdmin, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// Claims is the payload of every token. SessionID must name a live session
// for the token to be accepted; deleting the session revokes the token.
//
// PrimaryPartner is set on a secondary's pre-signup token and carries the
// primary that invited it through to CompleteSignup.
type Claims struct {
	SubjectID      uuid.UUID  `json:"sub_id"`
	GroupID        uuid.UUID  `json:"group_id"`
	Role           Role       `json:"role"`
	Type           string     `json:"type,omitempty"`
	SessionID      uuid.UUID  `json:"session_id"`
	PrimaryPartner *uuid.UUID `json:"primary_partner,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a token is minted for.
type Identity struct {
	SubjectID      uuid.UUID
	GroupID        uuid.UUID
	Role           Role
	Type           string
	SessionID      uuid.UUID
	PrimaryPartner *uuid.UUID
}

// GenerateToken signs an HS256 token for id that expires after ttl.
func GenerateToken(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		SubjectID:      id.SubjectID,
		GroupID:        id.GroupID,
		Role:           id.Role,
		Type:           id.Type,
		SessionID:      id.SessionID,
		PrimaryPartner: id.PrimaryPartner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken verifies signature, expiry, issuer and signing method.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// Reject "none" and asymmetric algorithms before the key is used.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}

	return claims, nil
}
