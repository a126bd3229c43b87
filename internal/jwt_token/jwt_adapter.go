package jwttoken

import (
	"neighborly/internal/platform/middleware"
	id "neighborly/pkg/domain"
)

// JWTServiceAdapter lets the auth middleware validate tokens without importing jwt types.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (id.UserID, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return id.UserID{}, err
	}
	return claims.UserID()
}

var _ middleware.TokenValidator = (*JWTServiceAdapter)(nil)
