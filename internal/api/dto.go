package api

import (
	"time"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
)

// RecommendRequest uses "ALL" in a list to leave that dimension open. An
// empty list matches nothing.
type RecommendRequest struct {
	TasteOptions    []string `json:"tasteOptions" validate:"required,dive,required"`
	CarbOptions     []string `json:"carbOptions" validate:"required,dive,required"`
	WeatherOptions  []string `json:"weatherOptions" validate:"required,dive,required"`
	CategoryOptions []string `json:"categoryOptions" validate:"required,dive,required"`
}

func (r RecommendRequest) options() recommend.Options {
	return recommend.ParseOptions(r.TasteOptions, r.CarbOptions, r.WeatherOptions, r.CategoryOptions)
}

type VoteRequest struct {
	MenuIDs []int64 `json:"menuIds" validate:"required,min=1,dive,gt=0"`
}

// ReplaceVotesRequest accepts an empty list, which withdraws every vote.
type ReplaceVotesRequest struct {
	MenuIDs []int64 `json:"menuIds" validate:"required,dive,gt=0"`
}

type CreateBoardRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type CreateTeamBoardRequest struct {
	TeamName       string `json:"teamName" validate:"required,max=100"`
	TeamMembersNum int    `json:"teamMembersNum" validate:"required,gte=1,max=1000"`
	TeamBoardName  string `json:"teamBoardName" validate:"required,max=100"`
}

type JoinRequest struct {
	InviteCode string `json:"inviteCode" validate:"required"`
}

type AddMenusRequest struct {
	MenuIDs []int64 `json:"menuIds" validate:"required,min=1,dive,gt=0"`
}

type BoardResponse struct {
	BoardID        int64     `json:"boardId"`
	Kind           string    `json:"kind"`
	Name           string    `json:"name"`
	TeamName       string    `json:"teamName,omitempty"`
	TeamMembersNum int       `json:"teamMembersNum,omitempty"`
	InviteCode     string    `json:"inviteCode,omitempty"`
	IsOwner        bool      `json:"isOwner"`
	CreatedDate    time.Time `json:"createdDate"`
}

func toBoardResponse(b domain.Board, userID int64) BoardResponse {
	resp := BoardResponse{
		BoardID:        b.ID,
		Kind:           string(b.Kind),
		Name:           b.Name,
		TeamName:       b.TeamName,
		TeamMembersNum: b.MembersNum,
		IsOwner:        b.OwnerUserID == userID,
		CreatedDate:    b.CreatedAt,
	}
	if resp.IsOwner {
		resp.InviteCode = b.InviteCode
	}
	return resp
}

type VoteResponse struct {
	VoteID      int64     `json:"voteId"`
	BoardID     int64     `json:"teamBoardId"`
	MenuID      int64     `json:"menuId"`
	MenuName    string    `json:"menuName"`
	UserID      int64     `json:"userId"`
	SlotID      int64     `json:"teamBoardMenuId"`
	CreatedDate time.Time `json:"createdDate"`
}

func toVoteResponses(votes []domain.Vote) []VoteResponse {
	out := make([]VoteResponse, 0, len(votes))
	for _, v := range votes {
		out = append(out, VoteResponse{
			VoteID:      v.ID,
			BoardID:     v.BoardID,
			MenuID:      v.MenuID,
			MenuName:    v.MenuName,
			UserID:      v.UserID,
			SlotID:      v.SlotID,
			CreatedDate: v.CreatedAt,
		})
	}
	return out
}
