package jwttoken

import (
	authmw "wrls/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.StaffClaims {
	return &authmw.StaffClaims{
		Email: claims.Email,
		Roles: claims.Roles,
	}
}

// JWTServiceAdapter satisfies authmw.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.StaffClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
