package domain

import "time"

// Category is the single cuisine label of a menu item.
type Category string

const (
	CategoryKorean      Category = "한식"
	CategoryChinese     Category = "중식"
	CategoryJapanese    Category = "일식"
	CategoryWestern     Category = "양식"
	CategoryAsian       Category = "인도/베트남/태국"
	CategoryMexican     Category = "멕시코"
	CategoryMeatSeafood Category = "육류/해산물"
)

// CategoryOrder is the fixed order in which grouped menus are emitted.
var CategoryOrder = []Category{
	CategoryKorean,
	CategoryChinese,
	CategoryJapanese,
	CategoryWestern,
	CategoryAsian,
	CategoryMexican,
	CategoryMeatSeafood,
}

type MenuItem struct {
	ID       int64
	Name     string
	ImageURL string
	Taste    []string
	Carb     []string
	Weather  []string
	Category Category
	Tags     []string
}

type BoardKind string

const (
	BoardPersonal BoardKind = "personal"
	BoardTeam     BoardKind = "team"
)

type User struct {
	ID         int64
	ProviderID string
	Name       string
	CreatedAt  time.Time
}

type Board struct {
	ID          int64
	Kind        BoardKind
	OwnerUserID int64
	Name        string
	TeamName    string
	MembersNum  int
	InviteCode  string
	CreatedAt   time.Time
}

// BoardMenuSlot is one occurrence of a menu on a board.
type BoardMenuSlot struct {
	ID      int64
	BoardID int64
	MenuID  int64
	UserID  int64
}

type Vote struct {
	ID        int64
	BoardID   int64
	UserID    int64
	MenuID    int64
	SlotID    int64
	MenuName  string
	CreatedAt time.Time
}

// RecommendedMenu is the flat view of a menu on a board.
type RecommendedMenu struct {
	MenuID   int64    `json:"menuId"`
	ImageURL string   `json:"imageUrl"`
	MenuName string   `json:"menuName"`
	Category Category `json:"categoryOptions"`
	Tags     []string `json:"tags"`
}

type MenuSummary struct {
	MenuID   int64    `json:"menuId"`
	ImageURL string   `json:"imageUrl"`
	MenuName string   `json:"menuName"`
	Tags     []string `json:"tags"`
}

type CategoryGroup struct {
	Category Category      `json:"category"`
	Items    []MenuSummary `json:"items"`
}

type MenuCount struct {
	MenuID   int64  `json:"menuId"`
	MenuName string `json:"menuName"`
	Count    int64  `json:"voteValue"`
}

type VoteResult struct {
	TeamName string      `json:"teamName"`
	Votes    []MenuCount `json:"votes"`
	VoteDate string      `json:"voteDate"`
	HasVoted bool        `json:"isVote"`
}

type Quorum struct {
	VotedUserCount int64 `json:"votedUserCount"`
	TeamMembersNum int   `json:"teamMembersNum"`
}
