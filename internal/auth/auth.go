package auth

import (
	"errors"
	"time"

	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/barterly/trade-engine/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Ops identity used by provisioning tools against the internal routes
var (
	OpsUserID    = "usr_ops"
	OpsAPISecret = "ops-api-secret"
)

// Credentials represents the login payload for a user session
type Credentials struct {
	UserID    string `json:"user_id"`
	APISecret string `json:"api_secret"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Service resolves user identity: it provisions users with API secrets and
// exchanges valid credentials for signed session tokens. The rest of the
// engine trusts the user id carried in the token and re-derives
// authorization (owner vs. trader vs. neither) itself.
type Service struct {
	db        *Database
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates a new authentication service with the given JWT secret
func NewService(gormDB *gorm.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// RegisterUser creates a user together with a generated API secret.
// The secret is returned exactly once; it is not recoverable afterwards.
func (s *Service) RegisterUser(email, name, username string) (*types.User, string, error) {
	user := &types.User{
		UserID:    types.NewID("usr"),
		Email:     email,
		Name:      name,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	secret := types.NewID("sec")
	if err := s.db.CreateUserWithCredential(user, secret); err != nil {
		return nil, "", err
	}

	log.Info().
		Str("user_id", user.UserID).
		Str("service", "auth").
		Msg("registered user")

	return user, secret, nil
}

// EnsureOpsCredential registers the ops identity used by provisioning tools.
// Safe to call on every startup; existing credentials are left untouched.
func (s *Service) EnsureOpsCredential(userID, secret string) error {
	return s.db.EnsureCredential(userID, secret)
}

// GenerateToken generates a JWT token for valid user credentials
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	valid, err := s.db.ValidateCredential(creds.UserID, creds.APISecret)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID: creds.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler handles POST requests to generate JWT tokens
// Request body should contain user credentials
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// CreateUserRequest is the provisioning payload for internal routes
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Username string `json:"username"`
}

// CreateUserHandler handles POST requests on the internal provisioning route.
// Responds with the created user and its one-time API secret.
func (h *GinHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		user, secret, err := h.service.RegisterUser(req.Email, req.Name, req.Username)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"user":       user,
			"api_secret": secret,
		})
	}
}
