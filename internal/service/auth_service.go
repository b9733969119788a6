package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"go-file-collector/internal/model"
	"go-file-collector/pkg/apierror"
)

const accessTokenType = "access"

type authClaims struct {
	Username  string `json:"username"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// AuthService issues and validates the admin's bearer tokens. There is a
// single admin identity; its credential lives in the settings row and is
// seeded from the environment on first start.
type AuthService struct {
	admin  AdminStore
	secret []byte
	ttl    time.Duration
}

func NewAuthService(admin AdminStore, secret string, ttl time.Duration) *AuthService {
	return &AuthService{admin: admin, secret: []byte(secret), ttl: ttl}
}

// EnsureAdmin seeds the stored credential from the configured username and
// password when none exists yet. A credential already in the database wins
// over the environment, so a password changed through the API survives
// restarts.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}

	seeded, err := s.admin.SeedAdmin(ctx, username, string(hash))
	if err != nil {
		return err
	}
	if seeded {
		slog.Info("admin credential seeded", "username", username)
	}
	return nil
}

// Login checks the credentials and returns a signed token. Username and
// password failures are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	creds, err := s.admin.GetAdmin(ctx)
	if err != nil {
		return model.LoginResponse{}, err
	}

	if req.Username != creds.Username ||
		bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)) != nil {
		return model.LoginResponse{}, apierror.New("UNAUTHORIZED", "invalid username or password", "", http.StatusUnauthorized)
	}

	now := time.Now()
	claims := authClaims{
		Username:  creds.Username,
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   creds.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return model.LoginResponse{}, apierror.New("IO_FAILURE", "failed to sign token", err.Error(), http.StatusInternalServerError)
	}

	slog.Info("admin logged in", "username", creds.Username)
	return model.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.ttl.Seconds()),
		Username:  creds.Username,
	}, nil
}

// ValidateToken parses and verifies a bearer token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*model.AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apierror.New("UNAUTHORIZED", "invalid or expired token", "", http.StatusUnauthorized)
	}

	claims, ok := token.Claims.(*authClaims)
	if !ok || claims.TokenType != accessTokenType {
		return nil, apierror.New("UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized)
	}

	return &model.AuthClaims{Username: claims.Username, TokenType: claims.TokenType}, nil
}
