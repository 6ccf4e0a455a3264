package api

import (
	"net/http"

	"github.com/portfolio-ledger/internal/types"
)

// InitializeRequest is the body of POST /api/protocol/initialize
type InitializeRequest struct {
	NewOwner string `json:"newOwner"`
}

// ProtocolInfoResponse is the public view of the protocol state
type ProtocolInfoResponse struct {
	ProtocolOwner    string            `json:"protocolOwner"`
	ProtocolFeeBps   types.BasisPoints `json:"protocolFeeBps"`
	PortfolioCounter types.PortfolioID `json:"portfolioCounter"`
}

// handleInitialize handles POST /api/protocol/initialize
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req InitializeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	newOwner, err := types.ParseAddress(req.NewOwner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := s.protocolService.Initialize(r.Context(), actor, newOwner); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetProtocolInfo handles GET /api/protocol
func (s *Server) handleGetProtocolInfo(w http.ResponseWriter, r *http.Request) {
	state, err := s.protocolService.GetProtocolInfo(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ProtocolInfoResponse{
		ProtocolOwner:    state.ProtocolOwner.Hex(),
		ProtocolFeeBps:   state.ProtocolFeeBps,
		PortfolioCounter: state.PortfolioCounter,
	})
}
