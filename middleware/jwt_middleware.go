// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const (
	UserTypeAdmin    = "admin"
	UserTypeFinance  = "finance"
	UserTypeSalesRep = "sales_rep"
)

// JwtCustomClaims for JWT token. For sales representatives UserID is the
// representative's id.
type JwtCustomClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	jwt.StandardClaims
}

// Valid implements the Claims interface for Echo's JWT middleware
func (c JwtCustomClaims) Valid() error {
	// Check if token is expired (skip check if ExpiresAt is 0)
	if c.ExpiresAt > 0 && time.Now().Unix() > c.ExpiresAt {
		return errors.New("token is expired")
	}

	// Check if token is used before valid time
	if c.NotBefore > 0 && time.Now().Unix() < c.NotBefore {
		return errors.New("token used before valid")
	}

	return nil
}

// JWTMiddleware returns a configured JWT middleware
func JWTMiddleware(secret string, log *logrus.Logger) echo.MiddlewareFunc {
	if secret == "" {
		log.Warn("JWT secret is empty, rejecting all authenticated requests")
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return echo.NewHTTPError(echo.ErrUnauthorized.Code, "JWT configuration error")
			}
		}
	}

	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey: []byte(secret),
		Claims:     &JwtCustomClaims{},
		Skipper: func(c echo.Context) bool {
			// Browsers cannot set headers on websocket upgrades
			return c.Request().Header.Get("Authorization") == "" && c.QueryParam("token") != "" && c.Path() == "/api/ws"
		},
		SuccessHandler: func(c echo.Context) {
			claims := c.Get("user").(*jwt.Token).Claims.(*JwtCustomClaims)
			c.Set("userId", claims.UserID)
			c.Set("userType", claims.UserType)
			c.Set("email", claims.Email)
		},
		ErrorHandler: func(err error) error {
			log.WithError(err).Debug("JWT validation failed")
			if err.Error() == "token contains an invalid number of segments" {
				return echo.NewHTTPError(echo.ErrUnauthorized.Code, "Invalid token format")
			}
			return echo.NewHTTPError(echo.ErrUnauthorized.Code, "Please provide valid credentials")
		},
	})
}

// ParseToken validates a raw token string, for transports that carry it
// outside the Authorization header.
func ParseToken(secret, raw string) (*JwtCustomClaims, error) {
	claims := &JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateJWT signs an access token valid for ttl; ttl 0 means no expiry.
func GenerateJWT(secret, userID, email, userType string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is required")
	}
	now := time.Now()
	claims := &JwtCustomClaims{
		UserID:   userID,
		Email:    email,
		UserType: userType,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUserFromToken extracts user information from JWT token
func GetUserFromToken(c echo.Context) *JwtCustomClaims {
	user := c.Get("user")
	if user == nil {
		return nil
	}

	token, ok := user.(*jwt.Token)
	if !ok {
		return nil
	}

	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok {
		return nil
	}

	return claims
}

// ExtractUserType safely extracts the user type from the context
func ExtractUserType(c echo.Context) string {
	if userType, ok := c.Get("userType").(string); ok && userType != "" {
		return userType
	}
	if claims := GetUserFromToken(c); claims != nil {
		return claims.UserType
	}
	return ""
}

func GetUserIDFromToken(c echo.Context) string {
	if userID, ok := c.Get("userId").(string); ok && userID != "" {
		return userID
	}
	if claims := GetUserFromToken(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// Actor names the caller for audit fields, e.g. "finance:5f1c...".
func Actor(c echo.Context) string {
	userType := ExtractUserType(c)
	userID := GetUserIDFromToken(c)
	if userType == "" {
		return userID
	}
	return userType + ":" + userID
}
