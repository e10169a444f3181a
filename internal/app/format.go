package app

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
)

func splitPipeArgs(s string, n int) []string {
	raw := strings.SplitN(s, "|", n)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// truncate keeps text under the Telegram message limit without splitting runes.
func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxMessageLen {
		return text
	}
	return string(r[:maxMessageLen]) + "\n\n(너무 길어서 잘렸어요)"
}

// parseIDs reads "1, 2 3" style id lists.
func parseIDs(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseOptions reads "taste | carb | weather | category". Parts are
// positional, so a blank or missing part leaves that dimension unconstrained.
func parseOptions(s string) recommend.Options {
	opts := recommend.AllOptions()
	if strings.TrimSpace(s) == "" {
		return opts
	}
	dims := []*recommend.LabelFilter{&opts.Taste, &opts.Carb, &opts.Weather, &opts.Category}
	for i, part := range strings.SplitN(s, "|", len(dims)) {
		labels := strings.Split(part, ",")
		f := recommend.ParseFilter(labels)
		if f.IsUnconstrained() || len(f.Wire()) == 0 {
			continue
		}
		*dims[i] = f
	}
	return opts
}

func formatGroups(groups []domain.CategoryGroup) string {
	if len(groups) == 0 {
		return "조건에 맞는 메뉴가 없어요. 조건을 바꿔 보세요."
	}
	var b strings.Builder
	b.WriteString("🍽 추천 메뉴\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n[%s]\n", g.Category)
		for _, it := range g.Items {
			fmt.Fprintf(&b, "%d. %s", it.MenuID, it.MenuName)
			if len(it.Tags) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(it.Tags, ", "))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatBoards(boards []domain.Board, userID, activeID int64) string {
	if len(boards) == 0 {
		return "아직 메뉴판이 없어요. /new_board 또는 /new_team 으로 만들어 보세요."
	}
	var b strings.Builder
	b.WriteString("📋 내 메뉴판\n\n")
	for _, bd := range boards {
		mark := "  "
		if bd.ID == activeID {
			mark = "👉"
		}
		if bd.Kind == domain.BoardTeam {
			fmt.Fprintf(&b, "%s %d. %s (팀: %s, %d명)", mark, bd.ID, bd.Name, bd.TeamName, bd.MembersNum)
			if bd.OwnerUserID == userID && bd.InviteCode != "" {
				fmt.Fprintf(&b, " 초대코드: %s", bd.InviteCode)
			}
		} else {
			fmt.Fprintf(&b, "%s %d. %s", mark, bd.ID, bd.Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatVotes(votes []domain.Vote) string {
	if len(votes) == 0 {
		return "투표한 메뉴가 없어요."
	}
	var b strings.Builder
	for _, v := range votes {
		fmt.Fprintf(&b, "• %s (투표ID %d)\n", v.MenuName, v.ID)
	}
	return b.String()
}

func formatResults(res *domain.VoteResult) string {
	var b strings.Builder
	title := res.TeamName
	if title == "" {
		title = "투표"
	}
	fmt.Fprintf(&b, "📊 %s 결과 (%s)\n\n", title, res.VoteDate)
	for i, c := range res.Votes {
		fmt.Fprintf(&b, "%d위. %s – %d표\n", i+1, c.MenuName, c.Count)
	}
	if res.HasVoted {
		b.WriteString("\n나도 투표했어요 ✅")
	} else {
		b.WriteString("\n아직 투표하지 않았어요. /vote 로 참여하세요.")
	}
	return b.String()
}

// voteKeyboard puts one vote button per menu, two per row.
func voteKeyboard(boardID int64, groups []domain.CategoryGroup) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, g := range groups {
		for _, it := range g.Items {
			data := fmt.Sprintf("vote:%d:%d", boardID, it.MenuID)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗳 "+it.MenuName, data))
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
