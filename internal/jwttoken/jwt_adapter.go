package jwttoken

import (
	"dataspace/internal/platform/middleware"
)

// ServiceAdapter bridges the JWT service to the middleware validator
// interface without the middleware importing this package.
type ServiceAdapter struct {
	service *Service
}

func NewServiceAdapter(service *Service) *ServiceAdapter {
	return &ServiceAdapter{service: service}
}

func (a *ServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		UserID: claims.UserID,
		OrgID:  claims.OrgID,
	}, nil
}
