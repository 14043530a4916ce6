// Package jwttoken issues and validates the bearer tokens approvers present
// when submitting an override.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "efrn/pkg/domain"
	dErrors "efrn/pkg/domain-errors"
)

// ApproverClaims are the claims carried by an approver token.
type ApproverClaims struct {
	Approver string `json:"approver"`
	jwt.RegisteredClaims
}

// JWTService handles approver token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateApproverToken signs a token proving the caller acts as approver.
func (s *JWTService) GenerateApproverToken(approver id.ApproverID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ApproverClaims{
		Approver: approver.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   approver.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*ApproverClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &ApproverClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*ApproverClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateApproverToken satisfies the override route's token validator.
func (s *JWTService) ValidateApproverToken(tokenString string) (id.ApproverID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	approver, err := id.ParseApproverID(claims.Approver)
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token approver claim is invalid")
	}
	return approver, nil
}
