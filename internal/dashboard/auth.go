package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/dhvanip/nagarseva/internal/repo"
)

const claimsKey = "operator"

// operatorClaims is the JWT payload for a logged-in operator. An empty
// Wards list grants access to every ward.
type operatorClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Wards    []int  `json:"wards,omitempty"`
	jwt.RegisteredClaims
}

// canAccessWard reports whether the operator may act on the given ward.
func (c *operatorClaims) canAccessWard(ward int) bool {
	if c.Role == "admin" || len(c.Wards) == 0 {
		return true
	}
	for _, w := range c.Wards {
		if w == ward {
			return true
		}
	}
	return false
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin verifies operator credentials and issues a signed token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	op, err := s.repo.GetOperator(c.Request.Context(), req.Username)
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	var wards []int
	if op.Wards != "" {
		if err := json.Unmarshal([]byte(op.Wards), &wards); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
	}

	now := time.Now()
	claims := operatorClaims{
		Username: op.Username,
		Role:     op.Role,
		Wards:    wards,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"operator": gin.H{
			"username":    op.Username,
			"displayName": op.DisplayName,
			"role":        op.Role,
			"wards":       wards,
		},
	})
}

// authRequired validates the bearer token and stashes the claims.
func (s *Server) authRequired(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		// Fall back to a query token for browser EventSource/WebSocket use.
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := s.parseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

func (s *Server) parseToken(token string) (*operatorClaims, error) {
	claims := &operatorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// operator pulls the claims the middleware stored.
func operator(c *gin.Context) *operatorClaims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*operatorClaims)
	return claims
}

// HashPassword derives the bcrypt hash stored on operator records.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("dashboard: hash password: %w", err)
	}
	return string(hash), nil
}
