package api

import (
	"net/http"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
)

func (s *Server) handleCastVotes(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	boardID, ok := s.decodeBoardRequest(w, r, &req)
	if !ok {
		return
	}
	votes, err := s.services.Ledger.CastVotes(r.Context(), userFrom(r.Context()).ID, boardID, req.MenuIDs)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	created(w, toVoteResponses(votes), s.logger)
}

func (s *Server) handleReplaceVotes(w http.ResponseWriter, r *http.Request) {
	var req ReplaceVotesRequest
	boardID, ok := s.decodeBoardRequest(w, r, &req)
	if !ok {
		return
	}
	votes, err := s.services.Ledger.ReplaceVotes(r.Context(), userFrom(r.Context()).ID, boardID, req.MenuIDs)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, toVoteResponses(votes), s.logger)
}

func (s *Server) decodeBoardRequest(w http.ResponseWriter, r *http.Request, dst any) (int64, bool) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return 0, false
	}
	if err := s.validator.decode(r, dst); err != nil {
		handleError(w, err, s.logger)
		return 0, false
	}
	return boardID, true
}

// handleDeleteVote lets users withdraw only their own votes.
func (s *Server) handleDeleteVote(w http.ResponseWriter, r *http.Request) {
	voteID, err := pathID(r, "voteID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	v, err := s.services.Ledger.GetVote(r.Context(), voteID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	if v.UserID != userFrom(r.Context()).ID {
		handleError(w, domain.ErrUnauthorized, s.logger)
		return
	}
	if err := s.services.Ledger.DeleteVote(r.Context(), voteID); err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, map[string]int64{"voteId": voteID}, s.logger)
}

func (s *Server) handleVoteResults(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	res, err := s.services.Tally.Results(r.Context(), boardID, userFrom(r.Context()).ID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, res, s.logger)
}

func (s *Server) handleQuorum(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	q, err := s.services.Tally.Quorum(r.Context(), boardID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, q, s.logger)
}
