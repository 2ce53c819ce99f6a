package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"supplydesk/backend/internal/domain"
)

const tokenIssuer = "supplydesk"

// AuthManager signs and verifies staff bearer tokens. Tokens are minted
// offline by the token command; there is no login endpoint.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type staffClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), tokenTTL: tokenTTL, now: time.Now}
}

func (a *AuthManager) Issue(subject string, role string) (domain.TokenResponse, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return domain.TokenResponse{}, errors.New("token subject required")
	}
	if role != domain.RoleStaff && role != domain.RoleAdmin {
		return domain.TokenResponse{}, fmt.Errorf("unknown role %q", role)
	}

	issuedAt := a.now().UTC()
	expiresAt := issuedAt.Add(a.tokenTTL)
	token, err := a.sign(subject, role, issuedAt, expiresAt)
	if err != nil {
		return domain.TokenResponse{}, err
	}
	return domain.TokenResponse{
		AccessToken: token,
		Role:        role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &staffClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Subject: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(subject, role string, issuedAt, expiresAt time.Time) (string, error) {
	claims := staffClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
