package api

import "net/http"

func (s *Server) handleGuestRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	groups, err := s.services.Recommend.RecommendTransient(r.Context(), req.options())
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, groups, s.logger)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	var req RecommendRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	groups, err := s.services.Recommend.Recommend(r.Context(), userFrom(r.Context()).ID, boardID, req.options())
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, groups, s.logger)
}

func (s *Server) handleBoardMenus(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	menus, err := s.services.Recommend.ListByBoard(r.Context(), boardID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, menus, s.logger)
}

func (s *Server) handleBoardCategories(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	groups, err := s.services.Recommend.ListByBoardGrouped(r.Context(), boardID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, groups, s.logger)
}

func (s *Server) handleMenuDetails(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	menuID, err := pathID(r, "menuID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	menu, err := s.services.Recommend.MenuDetails(r.Context(), boardID, menuID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, menu, s.logger)
}
