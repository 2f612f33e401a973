package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrMissingSubject is returned for tokens without a "sub" claim
	ErrMissingSubject = errors.New("token has no subject")
	// ErrNoVerificationKey is returned when neither an HMAC secret nor a JWKS URL is configured
	ErrNoVerificationKey = errors.New("no token verification key configured")
)

// Claims represents the JWT claims the API cares about. Subject is the actor ID.
type Claims struct {
	jwt.RegisteredClaims
	Handle string `json:"handle,omitempty"`
}

// JWTHeader represents the parsed JWT header
type JWTHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ,omitempty"`
}

// Config configures token verification
type Config struct {
	Issuer     string
	JWKSURL    string
	HMACSecret []byte
}

// Verifier checks bearer tokens issued by the session service.
// Tokens carrying a key ID are verified against the JWKS; tokens without one
// must be HS256 signed with the shared secret.
type Verifier struct {
	jwks    *jwk.Cache
	issuer  string
	jwksURL string
	secret  []byte
}

// NewVerifier creates a verifier. When cfg.JWKSURL is set the key set is
// fetched once up front and refreshed in the background afterwards.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	if len(cfg.HMACSecret) == 0 && cfg.JWKSURL == "" {
		return nil, ErrNoVerificationKey
	}

	v := &Verifier{
		secret:  cfg.HMACSecret,
		issuer:  cfg.Issuer,
		jwksURL: cfg.JWKSURL,
	}

	if cfg.JWKSURL != "" {
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS: %w", err)
		}
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
		}
		v.jwks = cache
	}

	return v, nil
}

// Verify validates the token signature and standard claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	tokenString = stripBearerPrefix(tokenString)

	header, err := ParseJWTHeader(tokenString)
	if err != nil {
		return nil, err
	}

	var claims *Claims
	if header.Kid != "" {
		claims, err = v.verifyWithJWKS(ctx, tokenString)
	} else {
		claims, err = v.verifyHS256(tokenString)
	}
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (v *Verifier) verifyHS256(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("HS256 verification failed: %w", ErrNoVerificationKey)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("HS256 verification failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("HS256 verification failed: invalid claims")
	}
	return claims, nil
}

func (v *Verifier) verifyWithJWKS(ctx context.Context, tokenString string) (*Claims, error) {
	if v.jwks == nil {
		return nil, fmt.Errorf("asymmetric verification failed: %w", ErrNoVerificationKey)
	}

	set, err := v.jwks.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}

	opts := []jwxjwt.ParseOption{
		jwxjwt.WithKeySet(set),
		jwxjwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwxjwt.WithIssuer(v.issuer))
	}

	token, err := jwxjwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("asymmetric verification failed: %w", err)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: token.Subject(),
			Issuer:  token.Issuer(),
		},
	}
	if exp := token.Expiration(); !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	if handle, ok := token.Get("handle"); ok {
		claims.Handle, _ = handle.(string)
	}
	return claims, nil
}

// stripBearerPrefix removes the "Bearer " prefix from a token string
func stripBearerPrefix(tokenString string) string {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	return strings.TrimSpace(tokenString)
}

// ParseJWTHeader extracts and parses the JWT header from a token string
func ParseJWTHeader(tokenString string) (*JWTHeader, error) {
	tokenString = stripBearerPrefix(tokenString)

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT header: %w", err)
	}

	var header JWTHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse JWT header: %w", err)
	}

	return &header, nil
}

// UnverifiedSubject reads the subject of a token without checking its
// signature. Clients use it to learn their own actor ID; servers must call Verify.
func UnverifiedSubject(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(stripBearerPrefix(tokenString), claims); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
