package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller, as carried by the session token.
type Identity struct {
	Email     string
	Name      string
	AvatarURL string
}

// Claims are the JWT claims of a session token.
type Claims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	jwt.RegisteredClaims
}

// Signer issues and verifies session tokens with an HS256 shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Generate issues a signed session token for the identity.
func (s *Signer) Generate(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:     id.Email,
		Name:      id.Name,
		AvatarURL: id.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a session token.
func (s *Signer) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return &Identity{Email: claims.Email, Name: claims.Name, AvatarURL: claims.AvatarURL}, nil
}
