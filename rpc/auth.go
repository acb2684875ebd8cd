package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"creditledger/native/credit"
)

// JWTConfig describes the HMAC tokens whose subject names the calling
// identity.
type JWTConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type contextKey string

const (
	contextKeyCaller    contextKey = "credit.caller"
	contextKeyRequestID contextKey = "credit.requestId"
)

// Authenticator resolves bearer tokens into ledger identities. Requests
// without a token proceed anonymously; methods that mutate the ledger reject
// them later.
type Authenticator struct {
	cfg    JWTConfig
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(cfg JWTConfig, logger *slog.Logger) (*Authenticator, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{cfg: cfg, secret: []byte(secret), logger: logger}, nil
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r)
			return
		}
		tokenString := extractBearer(header)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, nil, CodeUnauthorized, "malformed authorization header", nil)
			return
		}
		caller, err := a.Verify(tokenString)
		if err != nil {
			a.logger.Debug("auth: token rejected",
				slog.String("requestId", requestIDFrom(r.Context())),
				slog.Any("error", err))
			writeError(w, http.StatusUnauthorized, nil, CodeUnauthorized, "invalid token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify validates a token and returns the identity named by its subject.
func (a *Authenticator) Verify(tokenString string) (credit.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return credit.Identity{}, err
	}
	if !token.Valid {
		return credit.Identity{}, errors.New("token invalid")
	}
	caller, err := credit.ParseIdentity(claims.Subject)
	if err != nil {
		return credit.Identity{}, fmt.Errorf("subject: %w", err)
	}
	return caller, nil
}

// IssueToken signs a token for subject valid for ttl.
func IssueToken(cfg JWTConfig, subject credit.Identity, ttl time.Duration) (string, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return "", errors.New("jwt secret required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject.Hex(),
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func callerFrom(ctx context.Context) (credit.Identity, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(credit.Identity)
	return caller, ok
}

func extractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
