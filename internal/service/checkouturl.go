package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	"github.com/recrutaedu/checkout-sessions/pkg/slug"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

// tokenRandomDigits is the number of base36 digits in the random half of a
// security token.
const tokenRandomDigits = 11

// tokenRandomBound is 36^tokenRandomDigits, the exclusive upper bound for
// the random half.
var tokenRandomBound = func() *big.Int {
	bound := big.NewInt(1)
	for i := 0; i < tokenRandomDigits; i++ {
		bound.Mul(bound, big.NewInt(36))
	}
	return bound
}()

// newSecurityToken builds an opaque single-session token: the issue time in
// base36 milliseconds followed by a base36 random suffix from a CSPRNG.
func (s *SessionService) newSecurityToken() (string, error) {
	n, err := rand.Int(rand.Reader, tokenRandomBound)
	if err != nil {
		return "", fmt.Errorf("generate token randomness: %w", err)
	}

	random := n.Text(36)
	if pad := tokenRandomDigits - len(random); pad > 0 {
		random = strings.Repeat("0", pad) + random
	}

	return strconv.FormatInt(s.now().UnixMilli(), 36) + random, nil
}

// IssuedCheckoutURL is the result of issuing a checkout URL for a session.
type IssuedCheckoutURL struct {
	URL           string
	SecurityToken string
	Session       *domain.CheckoutSession
}

// IssueCheckoutURL mints a security token for a usable session, binds it to
// the session metadata and returns the checkout URL carrying the session id,
// the token, a base36 issue reference and the product slug.
func (s *SessionService) IssueCheckoutURL(ctx context.Context, id string) (*IssuedCheckoutURL, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	token, err := s.newSecurityToken()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if session.Metadata == nil {
		session.Metadata = make(map[string]string, 1)
	}
	session.Metadata[domain.MetadataSecurityToken] = token
	s.put(ctx, session)

	checkoutURL := s.buildCheckoutURL(session, token)

	s.logger.InfoContext(ctx, "checkout URL issued",
		slog.String("session_id", session.ID),
		slog.String("product_type", session.ProductType),
	)

	return &IssuedCheckoutURL{
		URL:           checkoutURL,
		SecurityToken: token,
		Session:       session,
	}, nil
}

// buildCheckoutURL assembles the redirect URL. The query string is built by
// hand because the parameter order sid, token, ref, plan is part of the
// contract and url.Values would sort the keys alphabetically.
func (s *SessionService) buildCheckoutURL(session *domain.CheckoutSession, token string) string {
	ref := strconv.FormatInt(s.now().UnixMilli(), 36)
	plan := slug.Generate(session.ProductName)

	var b strings.Builder
	b.WriteString(s.baseURL)
	b.WriteString(s.checkoutPath)
	b.WriteString("?sid=")
	b.WriteString(url.QueryEscape(session.ID))
	b.WriteString("&token=")
	b.WriteString(url.QueryEscape(token))
	b.WriteString("&ref=")
	b.WriteString(url.QueryEscape(ref))
	b.WriteString("&plan=")
	b.WriteString(url.QueryEscape(plan))
	return b.String()
}

// ValidateToken reports whether the given token matches the one bound to the
// session. A missing session, a session without a token or a mismatch all
// yield false.
func (s *SessionService) ValidateToken(ctx context.Context, id, token string) bool {
	if id == "" || token == "" {
		return false
	}

	session, ok := s.get(ctx, id)
	if !ok {
		return false
	}

	stored := session.SecurityToken()
	if stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

// CreateCheckoutURL creates a session and issues its checkout URL in one
// step, the common path for storefront callers.
func (s *SessionService) CreateCheckoutURL(ctx context.Context, input *CreateSessionInput) (*IssuedCheckoutURL, error) {
	session, err := s.CreateSession(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.IssueCheckoutURL(ctx, session.ID)
}
