package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrTokenInvalid is returned when signature, exp, or nbf validation fails.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrAudienceMismatch is returned when neither aud nor azp names the client.
	ErrAudienceMismatch = errors.New("token audience mismatch")
	// ErrKeySetUnavailable is returned when the signing-key set cannot be fetched.
	ErrKeySetUnavailable = errors.New("signing key set unavailable")
)

const (
	defaultKeySetTimeout    = 5 * time.Second
	defaultRefreshRateLimit = time.Minute
	tracerName              = "github.com/MrEthical07/authgate/jwt"
)

var validMethods = []string{
	jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(), jwt.SigningMethodPS384.Alg(), jwt.SigningMethodPS512.Alg(),
	jwt.SigningMethodES256.Alg(), jwt.SigningMethodES384.Alg(), jwt.SigningMethodES512.Alg(),
	jwt.SigningMethodEdDSA.Alg(),
}

// VerifierConfig defines a public type used by authgate APIs.
//
// IssuerURL is the realm endpoint (base URL + "/realms/<realm>"). A config with an
// empty IssuerURL or ClientID disables verification.
type VerifierConfig struct {
	IssuerURL        string
	ClientID         string
	HTTPClient       *http.Client
	Timeout          time.Duration
	RefreshRateLimit time.Duration
	Leeway           time.Duration
	KeySets          *KeySets
}

func (c VerifierConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultKeySetTimeout
	}
	return c.Timeout
}

func (c VerifierConfig) refreshRateLimit() time.Duration {
	if c.RefreshRateLimit <= 0 {
		return defaultRefreshRateLimit
	}
	return c.RefreshRateLimit
}

// IssuerURL joins an identity provider base URL and realm into a realm issuer URL.
func IssuerURL(baseURL, realm string) string {
	if baseURL == "" || realm == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/realms/" + strings.Trim(realm, "/")
}

// CertsURL returns the signing-key set endpoint of a realm issuer.
func CertsURL(issuerURL string) string {
	return strings.TrimRight(issuerURL, "/") + "/protocol/openid-connect/certs"
}

// VerifiedClaims holds claims of a token whose signature, expiry, not-before, and
// audience checks all passed.
type VerifiedClaims struct {
	Subject           string
	Issuer            string
	Audience          []string
	AuthorizedParty   string
	ExpiresAt         time.Time
	PreferredUsername string
	Email             string
	GivenName         string
	FamilyName        string

	raw jwt.MapClaims
}

// Claim returns a raw verified claim.
func (c *VerifiedClaims) Claim(name string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.raw[name]
	return v, ok
}

// Verifier checks bearer tokens against a remote signing-key set.
//
// Verifier is safe for concurrent use.
type Verifier struct {
	config  VerifierConfig
	keySets *KeySets
	parser  *jwt.Parser
}

// NewVerifier returns a Verifier for cfg, or nil when cfg leaves verification
// unconfigured. No network I/O happens until the first Verify call.
func NewVerifier(cfg VerifierConfig) *Verifier {
	cfg.IssuerURL = strings.TrimRight(strings.TrimSpace(cfg.IssuerURL), "/")
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil
	}
	keySets := cfg.KeySets
	if keySets == nil {
		keySets = defaultKeySets
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}

	return &Verifier{
		config:  cfg,
		keySets: keySets,
		parser:  jwt.NewParser(options...),
	}
}

// ClientID returns the client identifier tokens must be issued to.
func (v *Verifier) ClientID() string {
	if v == nil {
		return ""
	}
	return v.config.ClientID
}

// Verify validates token and returns its verified claims.
//
// Verify returns ErrTokenInvalid for signature, exp, and nbf failures,
// ErrAudienceMismatch when neither aud nor azp names the client, and
// ErrKeySetUnavailable when the key set cannot be fetched.
func (v *Verifier) Verify(ctx context.Context, token string) (*VerifiedClaims, error) {
	if v == nil {
		return nil, ErrKeySetUnavailable
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "jwt.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("auth.client_id", v.config.ClientID))

	claims, err := v.verify(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token verification failed")
		return nil, err
	}
	return claims, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*VerifiedClaims, error) {
	entry, err := v.keySets.get(ctx, v.config)
	if err != nil {
		return nil, err
	}

	parsed, err := v.parse(token, entry)
	if err != nil && errors.Is(err, keyfunc.ErrKIDNotFound) {
		// Signing keys rotate; one rate-limited refetch per unknown kid.
		if fresh, ok := v.keySets.refetch(ctx, v.config, entry); ok {
			parsed, err = v.parse(token, fresh)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	aud, _ := mc.GetAudience()
	azp, _ := mc["azp"].(string)
	if !containsString(aud, v.config.ClientID) && azp != v.config.ClientID {
		return nil, ErrAudienceMismatch
	}

	out := &VerifiedClaims{
		Audience:        aud,
		AuthorizedParty: azp,
		raw:             mc,
	}
	out.Subject, _ = mc.GetSubject()
	out.Issuer, _ = mc.GetIssuer()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.PreferredUsername, _ = mc["preferred_username"].(string)
	out.Email, _ = mc["email"].(string)
	out.GivenName, _ = mc["given_name"].(string)
	out.FamilyName, _ = mc["family_name"].(string)

	return out, nil
}

func (v *Verifier) parse(token string, entry *keySetEntry) (*jwt.Token, error) {
	return v.parser.Parse(token, entry.jwks.Keyfunc)
}
