package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Token use values carried in the token_use claim. An access token never
// passes refresh validation and vice versa.
const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Claims is the claim set carried by both token classes: the account id as
// subject plus username and email. Downstream services trust these claims
// after signature verification without re-querying the account store.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
	TokenUse string `json:"token_use"`
}

// TokenIdentity is the verified identity embedded in a token.
type TokenIdentity struct {
	AccountID string
	Username  string
	Email     string
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
// Access tokens are short-lived and verified statelessly; refresh tokens carry
// the same claims with a longer lifetime, and their raw value doubles as the
// secret hashed into a session record.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given account.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(accountID, username, email string) (string, time.Time, error) {
	return p.issue(accountID, username, email, tokenUseAccess, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh JWT carrying the same claim set.
// The caller must store a one-way hash of the returned token on the session;
// the raw token is never persisted.
func (p *TokenProvider) IssueRefresh(accountID, username, email string) (string, time.Time, error) {
	return p.issue(accountID, username, email, tokenUseRefresh, p.refreshTTL)
}

func (p *TokenProvider) issue(accountID, username, email, tokenUse string, ttl time.Duration) (string, time.Time, error) {
	// jti guarantees two tokens minted within the same second never
	// serialize identically.
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
		Email:    email,
		TokenUse: tokenUse,
	}
	token, err := p.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateAccess parses and validates an access token (signature, exp, iss,
// aud, token_use) and returns the embedded identity. Verification is
// stateless: no session store lookup is involved.
func (p *TokenProvider) ValidateAccess(tokenString string) (*TokenIdentity, error) {
	return p.validate(tokenString, tokenUseAccess)
}

// ValidateRefresh parses and validates a refresh token (signature, exp, iss,
// aud, token_use). This is only half of refresh verification: the caller must
// also match the raw token against an unexpired persisted session record.
func (p *TokenProvider) ValidateRefresh(tokenString string) (*TokenIdentity, error) {
	return p.validate(tokenString, tokenUseRefresh)
}

func (p *TokenProvider) validate(tokenString, tokenUse string) (*TokenIdentity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != tokenUse {
		return nil, ErrInvalidToken
	}
	return &TokenIdentity{
		AccountID: claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
	}, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshToken returns the hex-encoded SHA-256 digest of the raw refresh
// token. Only this digest is persisted on the session record; the raw token
// lives solely with the client.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenHashEqual reports whether the raw token hashes to storedHash.
// The comparison is constant-time.
func RefreshTokenHashEqual(token, storedHash string) bool {
	digest := HashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedHash)) == 1
}
