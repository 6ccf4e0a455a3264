package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/portfolio-ledger/internal/types"
)

// CreatePortfolioRequest is the body of POST /api/portfolios
type CreatePortfolioRequest struct {
	Tokens      []string `json:"tokens"`
	Percentages []uint64 `json:"percentages"`
}

// CreatePortfolioResponse is returned on successful creation
type CreatePortfolioResponse struct {
	ID types.PortfolioID `json:"id"`
}

// UpdateAllocationRequest is the body of PUT /api/portfolios/{id}/assets/{slot}
type UpdateAllocationRequest struct {
	Percentage *uint64 `json:"percentage"`
}

// OwnerPortfoliosResponse lists an owner's portfolio IDs
type OwnerPortfoliosResponse struct {
	Owner        string              `json:"owner"`
	PortfolioIDs []types.PortfolioID `json:"portfolioIds"`
}

// handleCreatePortfolio handles POST /api/portfolios
func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req CreatePortfolioRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	tokens := make([]types.Address, len(req.Tokens))
	for i, raw := range req.Tokens {
		token, err := types.ParseAddress(raw)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		tokens[i] = token
	}

	percentages := make([]types.BasisPoints, len(req.Percentages))
	for i, p := range req.Percentages {
		percentages[i] = types.BasisPoints(p)
	}

	id, err := s.portfolioService.CreatePortfolio(r.Context(), actor, tokens, percentages)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreatePortfolioResponse{ID: id})
}

// handleGetPortfolio handles GET /api/portfolios/{id}
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioIDVar(w, r)
	if !ok {
		return
	}

	portfolio, found, err := s.queryService.GetPortfolio(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Portfolio not found", map[string]interface{}{"portfolioId": id})
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleGetPortfolioDetail handles GET /api/portfolios/{id}/detail
func (s *Server) handleGetPortfolioDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioIDVar(w, r)
	if !ok {
		return
	}

	detail, found, err := s.queryService.GetPortfolioDetail(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Portfolio not found", map[string]interface{}{"portfolioId": id})
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleGetPortfolioAsset handles GET /api/portfolios/{id}/assets/{slot}
func (s *Server) handleGetPortfolioAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioIDVar(w, r)
	if !ok {
		return
	}
	slot, ok := uintVar(w, r, "slot")
	if !ok {
		return
	}

	asset, found, err := s.queryService.GetPortfolioAsset(r.Context(), id, types.Slot(slot))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Asset not found", map[string]interface{}{
			"portfolioId": id,
			"slot":        slot,
		})
		return
	}

	respondJSON(w, http.StatusOK, asset)
}

// handleUpdateAllocation handles PUT /api/portfolios/{id}/assets/{slot}
func (s *Server) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := portfolioIDVar(w, r)
	if !ok {
		return
	}
	slot, ok := uintVar(w, r, "slot")
	if !ok {
		return
	}

	var req UpdateAllocationRequest
	if err := parseJSONBody(r, &req); err != nil || req.Percentage == nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	err := s.portfolioService.UpdatePortfolioAllocation(r.Context(), actor, id, types.Slot(slot), types.BasisPoints(*req.Percentage))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRebalance handles POST /api/portfolios/{id}/rebalance
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := portfolioIDVar(w, r)
	if !ok {
		return
	}

	if err := s.portfolioService.RebalancePortfolio(r.Context(), actor, id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRebalanceEligibility handles GET /api/portfolios/{id}/rebalance
func (s *Server) handleRebalanceEligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioIDVar(w, r)
	if !ok {
		return
	}

	status, err := s.portfolioService.CalculateRebalanceEligibility(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// handleGetOwnerPortfolios handles GET /api/owners/{address}/portfolios
func (s *Server) handleGetOwnerPortfolios(w http.ResponseWriter, r *http.Request) {
	owner, err := types.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ids, err := s.queryService.GetUserPortfolios(r.Context(), owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OwnerPortfoliosResponse{Owner: owner.Hex(), PortfolioIDs: ids})
}
