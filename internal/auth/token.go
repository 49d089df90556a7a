package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("token signing secret is empty")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token malformed or signature invalid")
)

const DefaultTokenExpiration = 24 * time.Hour

type Claims struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens. It only answers "is
// this token well formed and unexpired"; whether the user still exists is
// the Service's concern.
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

func NewTokenIssuer(secret string, expiration time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		expiration: expiration,
		now:        now,
		// Expiry is checked by hand so that a token stays valid up to and
		// including its exp second, with no leeway.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

func (t *TokenIssuer) Issue(userID uint, email string, role Role) (string, error) {
	issuedAt := t.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(t.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify returns the claims of a valid token, ErrTokenExpired once the
// current time is past exp, and ErrTokenInvalid for anything else.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := t.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrTokenInvalid
	}
	// exp has second precision, so compare at the same precision
	if t.now().Truncate(time.Second).After(exp.Time) {
		return nil, ErrTokenExpired
	}

	if claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (t *TokenIssuer) Expiration() time.Duration {
	return t.expiration
}
