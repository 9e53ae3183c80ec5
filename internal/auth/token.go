package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims is the wire shape shared by both token kinds.
type tokenClaims struct {
	Kind  TokenKind `json:"kind,omitempty"`
	Email string    `json:"email,omitempty"`
	Role  Role      `json:"role,omitempty"`
	Code  string    `json:"codigo,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig holds the signing parameters loaded once at start-up.
type TokenConfig struct {
	Secret string
	Issuer string
}

// Codec signs and verifies HS256 session tokens.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCodec builds a Codec. An empty secret is rejected: the dev fallback is resolved by config.
func NewCodec(cfg TokenConfig, opts ...Option) (*Codec, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	st := applyOptions(opts)
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "asistencia"
	}
	return &Codec{secret: []byte(secret), issuer: issuer, now: st.now}, nil
}

// Issue signs claims with an expiration ttl from now. The returned Claims carry the
// token id and expiry that were embedded.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		return "", nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidInput)
	}
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	jti := uuid.NewString()

	wire := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}

	switch cl := claims.(type) {
	case OwnerClaims:
		if strings.TrimSpace(cl.UserID) == "" {
			return "", nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
		}
		wire.Kind = KindOwner
		wire.Subject = cl.UserID
		wire.Email = cl.Email
		wire.Role = cl.Role
		cl.TokenID, cl.ExpiresAt = jti, exp
		claims = cl
	case EmployeeClaims:
		if strings.TrimSpace(cl.EmployeeID) == "" {
			return "", nil, fmt.Errorf("%w: employee id is required", ErrInvalidInput)
		}
		wire.Kind = KindEmployee
		wire.Subject = cl.EmployeeID
		wire.Code = cl.Code
		cl.TokenID, cl.ExpiresAt = jti, exp
		claims = cl
	default:
		return "", nil, fmt.Errorf("%w: unsupported claims %T", ErrInvalidInput, claims)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, issuer and expiration. Every failure is ErrInvalidToken.
// A token without a kind claim is read as an owner token.
func (c *Codec) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	var wire tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &wire, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(wire.Subject) == "" {
		return nil, ErrInvalidToken
	}

	var exp time.Time
	if wire.ExpiresAt != nil {
		exp = wire.ExpiresAt.Time.UTC()
	}
	switch wire.Kind {
	case KindEmployee:
		return EmployeeClaims{
			EmployeeID: wire.Subject,
			Code:       wire.Code,
			TokenID:    wire.ID,
			ExpiresAt:  exp,
		}, nil
	case KindOwner, "":
		return OwnerClaims{
			UserID:    wire.Subject,
			Email:     wire.Email,
			Role:      wire.Role,
			TokenID:   wire.ID,
			ExpiresAt: exp,
		}, nil
	default:
		return nil, ErrInvalidToken
	}
}
