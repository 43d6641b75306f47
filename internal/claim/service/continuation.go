package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	"github.com/smallbiznis/homeaccess/internal/claim/domain"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	"go.uber.org/zap"
)

const continuationAudience = "claim-continuation"

type continuationClaims struct {
	Flow           domain.Flow `json:"flow"`
	ResidenceID    string      `json:"rid,omitempty"`
	UnitID         string      `json:"uid,omitempty"`
	InvitationCode string      `json:"inv,omitempty"`
	jwt.RegisteredClaims
}

// continuationSigner issues and verifies the short-lived token that carries a
// visitor's claim intent through sign-in.
type continuationSigner struct {
	secret []byte
	issuer string
	clock  clock.Clock
	policy *config.ClaimPolicyHolder
}

func newContinuationSigner(secret, issuer string, clk clock.Clock, policy *config.ClaimPolicyHolder) *continuationSigner {
	if issuer == "" {
		issuer = "homeaccess"
	}
	return &continuationSigner{
		secret: []byte(secret),
		issuer: issuer,
		clock:  clk,
		policy: policy,
	}
}

func (c *continuationSigner) sign(claims continuationClaims) (string, time.Time, error) {
	if len(c.secret) == 0 {
		return "", time.Time{}, errors.New("continuation secret is not configured")
	}
	now := c.clock.Now()
	expiresAt := now.Add(c.policy.Get().ContinuationTTL)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{continuationAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (c *continuationSigner) parse(token string) (*continuationClaims, error) {
	if len(c.secret) == 0 {
		return nil, domain.ErrInvalidContinuation
	}
	claims := &continuationClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(continuationAudience),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrInvalidContinuation
	}
	return claims, nil
}

func (s *service) IssueContinuation(_ context.Context, req domain.ContinuationRequest) (*domain.Continuation, error) {
	code := accesscodedomain.NormalizeCode(req.InvitationCode)

	var claims continuationClaims
	switch {
	case req.UnitID != nil && *req.UnitID > 0 && req.ResidenceID > 0 && code == "":
		// Unit existence is only checked on resume.
		claims = continuationClaims{
			Flow:        domain.FlowUnit,
			ResidenceID: req.ResidenceID.String(),
			UnitID:      req.UnitID.String(),
		}
	case req.UnitID == nil && code != "":
		claims = continuationClaims{
			Flow:           domain.FlowInvitation,
			InvitationCode: code,
		}
	default:
		return nil, domain.ErrInvalidIntent
	}

	token, expiresAt, err := s.tokens.sign(claims)
	if err != nil {
		return nil, err
	}
	return &domain.Continuation{Token: token, Flow: claims.Flow, ExpiresAt: expiresAt}, nil
}

func (s *service) ResumeContinuation(ctx context.Context, req domain.ResumeRequest) (*domain.Outcome, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	claims, err := s.tokens.parse(strings.TrimSpace(req.Token))
	if err != nil {
		s.log.Debug("continuation token rejected", zap.String("user_id", req.UserID.String()))
		return nil, err
	}

	switch claims.Flow {
	case domain.FlowUnit:
		residenceID, err := snowflake.ParseString(claims.ResidenceID)
		if err != nil {
			return nil, domain.ErrInvalidContinuation
		}
		unitID, err := snowflake.ParseString(claims.UnitID)
		if err != nil {
			return nil, domain.ErrInvalidContinuation
		}
		return s.ClaimUnit(ctx, domain.ClaimUnitRequest{
			UserID:      req.UserID,
			ResidenceID: residenceID,
			UnitID:      unitID,
			Code:        req.Code,
		})
	case domain.FlowInvitation:
		if claims.InvitationCode == "" {
			return nil, domain.ErrInvalidContinuation
		}
		return s.RedeemInvitation(ctx, domain.RedeemInvitationRequest{
			UserID: req.UserID,
			Code:   claims.InvitationCode,
		})
	default:
		return nil, domain.ErrInvalidContinuation
	}
}
