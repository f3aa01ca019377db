package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/agromarket/internal/common"
)

// Verifier validates access tokens issued by the hosted auth provider.
type Verifier struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	algorithm jwa.SignatureAlgorithm
	now       func() time.Time
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewVerifier constructs a Verifier for HS256 tokens.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("identity: secret is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	return &Verifier{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(cfg.Issuer),
		audience:  strings.TrimSpace(cfg.Audience),
		clockSkew: skew,
		algorithm: jwa.HS256,
		now:       now,
	}, nil
}

// Verify parses and validates token, returning the caller's principal.
func (v *Verifier) Verify(token string) (common.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Principal{}, unauthorized("missing token", nil)
	}
	msg, err := jws.ParseString(trimmed)
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return common.Principal{}, unauthorized("invalid token", errors.New("token has no signature"))
	}
	if alg := sigs[0].ProtectedHeaders().Algorithm(); alg != v.algorithm {
		return common.Principal{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", alg))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(v.algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if err := jwt.Validate(parsed, v.validateOptions()...); err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if strings.TrimSpace(parsed.Subject()) == "" {
		return common.Principal{}, unauthorized("invalid token", errors.New("token missing subject"))
	}
	return principalFromToken(parsed), nil
}

func (v *Verifier) validateOptions() []jwt.ValidateOption {
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}
	if v.clockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.clockSkew))
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}
	return options
}

func principalFromToken(tok jwt.Token) common.Principal {
	p := common.Principal{UserID: tok.Subject()}
	p.Email = stringClaim(tok, "email")
	p.Role = stringClaim(tok, "role")
	p.Name = stringClaim(tok, "name")
	if p.Name == "" {
		if meta, ok := tok.Get("user_metadata"); ok {
			if m, ok := meta.(map[string]any); ok {
				if name, ok := m["full_name"].(string); ok {
					p.Name = strings.TrimSpace(name)
				}
			}
		}
	}
	return p
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func unauthorized(message string, err error) error {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}
