package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	claimdomain "github.com/smallbiznis/homeaccess/internal/claim/domain"
)

const membershipsPath = "/v1/me/memberships"

type claimUnitRequest struct {
	ResidenceID string `json:"residence_id"`
	UnitID      string `json:"unit_id"`
	Code        string `json:"code"`
}

type redeemInvitationRequest struct {
	Code string `json:"code"`
}

type issueContinuationRequest struct {
	ResidenceID    string `json:"residence_id"`
	UnitID         string `json:"unit_id"`
	InvitationCode string `json:"invitation_code"`
}

type resumeContinuationRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

type outcomeResponse struct {
	Status        claimdomain.Status `json:"status"`
	Flow          claimdomain.Flow   `json:"flow"`
	ResidenceID   string             `json:"residence_id,omitempty"`
	UnitID        string             `json:"unit_id,omitempty"`
	Role          string             `json:"role,omitempty"`
	OccupancyKind string             `json:"occupancy_kind,omitempty"`
	Memberships   string             `json:"memberships,omitempty"`
}

type continuationResponse struct {
	Token     string           `json:"token"`
	Flow      claimdomain.Flow `json:"flow"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (s *Server) ClaimUnit(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req claimUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	residenceID, err := parseSnowflakeID(req.ResidenceID)
	if err != nil {
		AbortWithError(c, newValidationError("residence_id", "invalid_residence_id", "invalid residence_id"))
		return
	}
	unitID, err := parseSnowflakeID(req.UnitID)
	if err != nil {
		AbortWithError(c, newValidationError("unit_id", "invalid_unit_id", "invalid unit_id"))
		return
	}

	outcome, err := s.claims.ClaimUnit(c.Request.Context(), claimdomain.ClaimUnitRequest{
		UserID:      userID,
		ResidenceID: residenceID,
		UnitID:      unitID,
		Code:        strings.TrimSpace(req.Code),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

func (s *Server) RedeemInvitation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req redeemInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		AbortWithError(c, newValidationError("code", "required", "code is required"))
		return
	}

	outcome, err := s.claims.RedeemInvitation(c.Request.Context(), claimdomain.RedeemInvitationRequest{
		UserID: userID,
		Code:   req.Code,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// IssueContinuation is public: a visitor records the claim intent before signing in.
func (s *Server) IssueContinuation(c *gin.Context) {
	var req issueContinuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	intent := claimdomain.ContinuationRequest{
		InvitationCode: strings.TrimSpace(req.InvitationCode),
	}
	if strings.TrimSpace(req.UnitID) != "" || strings.TrimSpace(req.ResidenceID) != "" {
		residenceID, err := parseSnowflakeID(req.ResidenceID)
		if err != nil {
			AbortWithError(c, newValidationError("residence_id", "invalid_residence_id", "invalid residence_id"))
			return
		}
		unitID, err := parseOptionalSnowflakeID(req.UnitID)
		if err != nil {
			AbortWithError(c, newValidationError("unit_id", "invalid_unit_id", "invalid unit_id"))
			return
		}
		intent.ResidenceID = residenceID
		intent.UnitID = unitID
	}

	cont, err := s.claims.IssueContinuation(c.Request.Context(), intent)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": continuationResponse{
		Token:     cont.Token,
		Flow:      cont.Flow,
		ExpiresAt: cont.ExpiresAt,
	}})
}

func (s *Server) ResumeContinuation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req resumeContinuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	outcome, err := s.claims.ResumeContinuation(c.Request.Context(), claimdomain.ResumeRequest{
		UserID: userID,
		Token:  req.Token,
		Code:   strings.TrimSpace(req.Code),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeOutcome(c, outcome)
}

func writeOutcome(c *gin.Context, outcome *claimdomain.Outcome) {
	if outcome == nil {
		AbortWithError(c, ErrInternal)
		return
	}
	label := string(outcome.Status)
	if outcome.Reason != claimdomain.ReasonNone {
		label = string(outcome.Reason)
	}
	c.Set("claim_outcome", label)

	if outcome.Status == claimdomain.StatusRejected {
		writeRejection(c, outcome)
		return
	}

	resp := outcomeResponse{
		Status: outcome.Status,
		Flow:   outcome.Flow,
		Role:   outcome.Role,
	}
	if outcome.ResidenceID != 0 {
		resp.ResidenceID = outcome.ResidenceID.String()
	}
	if outcome.UnitID != nil {
		resp.UnitID = outcome.UnitID.String()
	}
	if outcome.Kind != "" {
		resp.OccupancyKind = string(outcome.Kind)
	}

	status := http.StatusOK
	switch outcome.Status {
	case claimdomain.StatusGranted:
		status = http.StatusCreated
	case claimdomain.StatusAlreadyMember:
		resp.Memberships = membershipsPath
	}
	c.JSON(status, gin.H{"data": resp})
}
