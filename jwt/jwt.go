package jwt

import (
	"crypto/rsa"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"petshop/config"
)

// Claims carried by every access token.
type Claims struct {
	UserID uint   `json:"userID"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies RS256 access tokens. Revocation is not its
// concern: a verified token may still have been logged out.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

func NewSigner(privateKey *rsa.PrivateKey, ttl time.Duration) *Signer {
	return &Signer{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// LoadSigner reads the PEM key pair named in cfg.
func LoadSigner(cfg config.JWTConfig) (*Signer, error) {
	keyBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "read private key")
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	signer := NewSigner(privateKey, cfg.TTL)
	if cfg.PublicKeyPath == "" {
		return signer, nil
	}

	keyBytes, err = os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "read public key")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}
	signer.publicKey = publicKey
	return signer, nil
}

// Issue signs a token for the user and returns it with its expiry.
func (s *Signer) Issue(userID uint, role string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return token, expiresAt, nil
}

// Verify checks signature and expiry and returns the user the token was
// issued to.
func (s *Signer) Verify(tokenString string) (uint, string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, "", err
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, "", jwt.ErrTokenSignatureInvalid
	}
	return claims.UserID, claims.Role, nil
}
