package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is used when TokenConfig.AccessTokenTTL is zero.
const DefaultAccessTokenTTL = 15 * time.Minute

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenConfig holds access token settings.
type TokenConfig struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
}

// AccessTokenClaims represents the claims in an access token. The token ID
// (jti) identifies the session and scopes the query cache.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	AgencyID     string `json:"agency_id"`
	MembershipID string `json:"membership_id"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Identity is the verified content of an access token.
type Identity struct {
	UserID       uuid.UUID
	AgencyID     uuid.UUID
	MembershipID uuid.UUID
	SessionID    string
	Email        string
	Name         string
}

// Tokens issues and verifies HMAC-signed access tokens.
type Tokens struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokens creates a token issuer/verifier.
func NewTokens(config TokenConfig) *Tokens {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	return &Tokens{config: config, now: time.Now}
}

// Issue signs an access token for a membership. The session id becomes the
// token ID; an empty one gets a fresh UUID.
func (t *Tokens) Issue(id Identity) (string, error) {
	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
	}
	now := t.now()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   id.UserID.String(),
			Issuer:    t.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.config.AccessTokenTTL)),
		},
		AgencyID:     id.AgencyID.String(),
		MembershipID: id.MembershipID.String(),
		Email:        id.Email,
		Name:         id.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates an access token and returns its identity.
func (t *Tokens) Verify(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(t.now)}
	if t.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	id := &Identity{SessionID: claims.ID, Email: claims.Email, Name: claims.Name}
	if id.UserID, err = uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	if id.AgencyID, err = uuid.Parse(claims.AgencyID); err != nil {
		return nil, ErrInvalidToken
	}
	if id.MembershipID, err = uuid.Parse(claims.MembershipID); err != nil {
		return nil, ErrInvalidToken
	}
	if id.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return id, nil
}
