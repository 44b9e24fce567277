package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/stockroute/internal/authz"
)

type jwtCustomClaims struct {
	Kind       string `json:"kind"`
	AdminID    string `json:"admin_id"`
	AdminEmail string `json:"admin_email"`
	ManagerID  string `json:"manager_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the provided actor.
func GenerateToken(secret string, actor authz.Actor, ttl time.Duration) (string, error) {
	subject := actor.AdminID.String()
	claims := &jwtCustomClaims{
		Kind:       string(actor.Kind),
		AdminID:    actor.AdminID.String(),
		AdminEmail: actor.AdminEmail,
	}
	if actor.ManagerID != nil {
		claims.ManagerID = actor.ManagerID.String()
		subject = claims.ManagerID
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the embedded actor.
func ParseToken(secret, tokenString string) (authz.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authz.Actor{}, err
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return authz.Actor{}, jwt.ErrTokenInvalidClaims
	}

	adminID, err := uuid.Parse(claims.AdminID)
	if err != nil {
		return authz.Actor{}, jwt.ErrTokenInvalidClaims
	}

	switch authz.ActorKind(claims.Kind) {
	case authz.KindAdmin:
		return authz.Admin(adminID, claims.AdminEmail), nil
	case authz.KindManagerActingAsAdmin:
		managerID, err := uuid.Parse(claims.ManagerID)
		if err != nil {
			return authz.Actor{}, jwt.ErrTokenInvalidClaims
		}
		return authz.ManagerActingAsAdmin(adminID, claims.AdminEmail, managerID), nil
	}
	return authz.Actor{}, errors.New("unknown actor kind")
}
