package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
)

type createInvitationRequest struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expires_at"`
	MaxUses   *int   `json:"max_uses"`
}

type invitationResponse struct {
	ID          string     `json:"id"`
	ResidenceID string     `json:"residence_id"`
	Code        string     `json:"code"`
	Active      bool       `json:"active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	Uses        int        `json:"uses"`
	Remaining   *int       `json:"remaining,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newInvitationResponse(inv accesscodedomain.Invitation) invitationResponse {
	return invitationResponse{
		ID:          inv.ID.String(),
		ResidenceID: inv.ResidenceID.String(),
		Code:        inv.Code,
		Active:      inv.Active,
		ExpiresAt:   inv.ExpiresAt,
		MaxUses:     inv.MaxUses,
		Uses:        inv.Uses,
		Remaining:   inv.Remaining(),
		CreatedAt:   inv.CreatedAt,
	}
}

func (s *Server) CreateInvitation(c *gin.Context) {
	residence, ok := residenceFromContext(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("expires_at", "invalid_expires_at", "invalid expires_at"))
		return
	}

	inv, err := s.codes.CreateInvitation(c.Request.Context(), userID, residence.ID, accesscodedomain.CreateInvitationRequest{
		Code:      strings.TrimSpace(req.Code),
		ExpiresAt: expiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newInvitationResponse(*inv)})
}

func (s *Server) ListInvitations(c *gin.Context) {
	residence, ok := residenceFromContext(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	invitations, err := s.codes.ListInvitations(c.Request.Context(), residence.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		resp = append(resp, newInvitationResponse(inv))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateInvitation(c *gin.Context) {
	invitation, ok := invitationFromContext(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	inv, err := s.codes.DeactivateInvitation(c.Request.Context(), invitation.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvitationResponse(*inv)})
}
