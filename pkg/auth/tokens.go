package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the JWT claims issued for a signed-in user.
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 session tokens.
type TokenService struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(secretKey string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateTokenPair issues an access and refresh token for the user. The
// returned expiry is the access token's unix expiration.
func (s *TokenService) GenerateTokenPair(userID, email string) (accessToken, refreshToken string, expiresAt int64, err error) {
	now := time.Now()

	accessExpiry := now.Add(s.accessTTL)
	accessToken, err = s.sign(userID, email, TokenTypeAccess, now, accessExpiry)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.sign(userID, email, TokenTypeRefresh, now, now.Add(s.refreshTTL))
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, accessExpiry.Unix(), nil
}

func (s *TokenService) sign(userID, email, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		Email: email,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses and verifies a token of the given type.
func (s *TokenService) ValidateToken(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.Type != tokenType {
		return nil, fmt.Errorf("invalid token type: expected %s, got %s", tokenType, claims.Type)
	}

	return claims, nil
}

// RefreshAccessToken validates a refresh token and issues a new access token.
func (s *TokenService) RefreshAccessToken(refreshToken string) (string, int64, error) {
	claims, err := s.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", 0, fmt.Errorf("invalid refresh token: %w", err)
	}

	now := time.Now()
	expiry := now.Add(s.accessTTL)
	token, err := s.sign(claims.Subject, claims.Email, TokenTypeAccess, now, expiry)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return token, expiry.Unix(), nil
}
