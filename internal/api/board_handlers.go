package api

import "net/http"

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	boards, err := s.services.Boards.List(r.Context(), u.ID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	out := make([]BoardResponse, 0, len(boards))
	for _, b := range boards {
		out = append(out, toBoardResponse(b, u.ID))
	}
	success(w, out, s.logger)
}

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	u := userFrom(r.Context())
	b, err := s.services.Boards.CreatePersonal(r.Context(), u.ID, req.Name)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	created(w, toBoardResponse(*b, u.ID), s.logger)
}

func (s *Server) handleCreateTeamBoard(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamBoardRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	u := userFrom(r.Context())
	b, err := s.services.Boards.CreateTeam(r.Context(), u.ID, req.TeamName, req.TeamMembersNum, req.TeamBoardName)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	created(w, toBoardResponse(*b, u.ID), s.logger)
}

func (s *Server) handleJoinTeamBoard(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	u := userFrom(r.Context())
	b, err := s.services.Boards.Join(r.Context(), u.ID, req.InviteCode)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, toBoardResponse(*b, u.ID), s.logger)
}

func (s *Server) handleRenameBoard(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	var req CreateBoardRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	u := userFrom(r.Context())
	b, err := s.services.Boards.Rename(r.Context(), u.ID, boardID, req.Name)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, toBoardResponse(*b, u.ID), s.logger)
}

func (s *Server) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	if err := s.services.Boards.Delete(r.Context(), userFrom(r.Context()).ID, boardID); err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, map[string]int64{"boardId": boardID}, s.logger)
}

func (s *Server) handleAddBoardMenus(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	var req AddMenusRequest
	if err := s.validator.decode(r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	slots, err := s.services.Boards.AddMenus(r.Context(), userFrom(r.Context()).ID, boardID, req.MenuIDs)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	type slotResponse struct {
		SlotID int64 `json:"teamBoardMenuId"`
		MenuID int64 `json:"menuId"`
	}
	out := make([]slotResponse, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotResponse{SlotID: sl.ID, MenuID: sl.MenuID})
	}
	created(w, out, s.logger)
}
