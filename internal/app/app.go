package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/shallweeat-bot/internal/board"
	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
	"github.com/maaaruch/shallweeat-bot/internal/session"
	"github.com/maaaruch/shallweeat-bot/internal/vote"
)

const maxMessageLen = 4000

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Services struct {
	Boards    *board.Service
	Recommend *recommend.Engine
	Ledger    *vote.Ledger
	Tally     *vote.Tally
}

type App struct {
	bot      *tgbotapi.BotAPI
	out      Sender
	svc      Services
	sessions *session.Manager
	logger   *slog.Logger
}

func New(bot *tgbotapi.BotAPI, svc Services, logger *slog.Logger) *App {
	return &App{
		bot:      bot,
		out:      bot,
		svc:      svc,
		sessions: session.NewManager(),
		logger:   logger,
	}
}

func (a *App) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				a.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				a.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func providerID(userID int64) string {
	return "telegram:" + strconv.FormatInt(userID, 10)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

func (a *App) send(chatID int64, text string) {
	if _, err := a.out.Send(tgbotapi.NewMessage(chatID, truncate(text))); err != nil {
		a.logger.Warn("send message", "chat_id", chatID, "error", err)
	}
}

// reply explains a domain failure to the user; anything else is logged.
func (a *App) reply(chatID int64, op string, err error) {
	if msg, ok := kindMessage(err); ok {
		a.send(chatID, msg)
		return
	}
	a.logger.Error(op, "chat_id", chatID, "error", err)
	a.send(chatID, "뭔가 잘못됐어요. 잠시 후 다시 시도해 주세요.")
}

func kindMessage(err error) (string, bool) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return "", false
	}
	switch derr.Kind {
	case domain.KindBoardNotFound:
		return "메뉴판을 찾을 수 없어요.", true
	case domain.KindMenuNotFound:
		return "메뉴를 찾을 수 없어요.", true
	case domain.KindSlotNotFound:
		return "해당 메뉴가 메뉴판에 없어요.", true
	case domain.KindVoteNotFound:
		return "투표를 찾을 수 없어요.", true
	case domain.KindUserNotFound:
		return "사용자를 찾을 수 없어요.", true
	case domain.KindUnauthorized:
		return "이 메뉴판에 대한 권한이 없어요.", true
	case domain.KindVoteLimitExceeded:
		return fmt.Sprintf("한 사람당 최대 %d개의 메뉴에만 투표할 수 있어요.", vote.MaxVotesPerUser), true
	case domain.KindDuplicateVote:
		return "이미 이 메뉴에 투표했어요.", true
	case domain.KindNoVotesYet:
		return "아직 아무도 투표하지 않았어요.", true
	case domain.KindValidation:
		return "입력값을 확인해 주세요.", true
	}
	return derr.Message, true
}

// ---------- Updates ----------

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.IsCommand() {
		return
	}
	user, err := a.svc.Boards.EnsureUser(ctx, providerID(msg.From.ID), displayName(msg.From))
	if err != nil {
		a.reply(msg.Chat.ID, "ensure user", err)
		return
	}
	sess := a.sessions.Get(msg.From.ID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		a.send(msg.Chat.ID, helpText)
	case "boards":
		a.handleBoards(ctx, msg.Chat.ID, user, sess)
	case "new_board":
		a.handleNewBoard(ctx, msg.Chat.ID, user, sess, args)
	case "new_team":
		a.handleNewTeam(ctx, msg.Chat.ID, user, sess, args)
	case "join":
		a.handleJoin(ctx, msg.Chat.ID, user, sess, args)
	case "board":
		a.handleSelectBoard(ctx, msg.Chat.ID, user, sess, args)
	case "delete_board":
		a.handleDeleteBoard(ctx, msg.Chat.ID, user, sess, args)
	case "recommend":
		a.handleRecommend(ctx, msg.Chat.ID, user, sess, args)
	case "guest":
		a.handleGuest(ctx, msg.Chat.ID, args)
	case "menu":
		a.handleMenu(ctx, msg.Chat.ID, sess)
	case "add":
		a.handleAdd(ctx, msg.Chat.ID, user, sess, args)
	case "vote":
		a.handleVote(ctx, msg.Chat.ID, user, sess, args, false)
	case "revote":
		a.handleVote(ctx, msg.Chat.ID, user, sess, args, true)
	case "unvote":
		a.handleUnvote(ctx, msg.Chat.ID, user, args)
	case "results":
		a.handleResults(ctx, msg.Chat.ID, user, sess)
	case "quorum":
		a.handleQuorum(ctx, msg.Chat.ID, sess)
	default:
		a.send(msg.Chat.ID, "모르는 명령어예요. /help 를 확인해 주세요.")
	}
}

func (a *App) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	// stop the button spinner
	_, _ = a.out.Request(tgbotapi.NewCallback(cq.ID, ""))

	chatID := cq.Message.Chat.ID
	data := cq.Data
	if !strings.HasPrefix(data, "vote:") {
		return
	}
	boardStr, menuStr, ok := strings.Cut(strings.TrimPrefix(data, "vote:"), ":")
	if !ok {
		return
	}
	boardID, err1 := strconv.ParseInt(boardStr, 10, 64)
	menuID, err2 := strconv.ParseInt(menuStr, 10, 64)
	if err1 != nil || err2 != nil {
		return
	}

	user, err := a.svc.Boards.EnsureUser(ctx, providerID(cq.From.ID), displayName(cq.From))
	if err != nil {
		a.reply(chatID, "ensure user", err)
		return
	}
	votes, err := a.svc.Ledger.CastVotes(ctx, user.ID, boardID, []int64{menuID})
	if err != nil {
		a.reply(chatID, "cast vote", err)
		return
	}
	a.send(chatID, "투표 완료!\n"+formatVotes(votes))
}

const helpText = "오늘 뭐 먹지? 메뉴를 추천받고 팀과 투표해요.\n\n" +
	"/boards – 내 메뉴판 목록\n" +
	"/new_board 이름 – 개인 메뉴판 만들기\n" +
	"/new_team 팀이름 | 인원 | 메뉴판이름 – 팀 메뉴판 만들기\n" +
	"/join 초대코드 – 팀 메뉴판 참여\n" +
	"/board ID – 사용할 메뉴판 선택\n" +
	"/delete_board ID – 메뉴판 삭제\n" +
	"/recommend 맛 | 탄수화물 | 날씨 | 카테고리 – 메뉴 추천받아 메뉴판에 저장 (쉼표로 여러 개, 비우면 ALL)\n" +
	"/guest 맛 | 탄수화물 | 날씨 | 카테고리 – 저장 없이 추천만\n" +
	"/menu – 메뉴판의 메뉴 보기\n" +
	"/add 메뉴ID,메뉴ID – 팀 메뉴판에 메뉴 추가\n" +
	"/vote 메뉴ID,메뉴ID – 투표 (최대 3개)\n" +
	"/revote 메뉴ID,메뉴ID – 내 투표 다시 하기\n" +
	"/unvote 투표ID – 투표 취소\n" +
	"/results – 투표 결과\n" +
	"/quorum – 투표 참여 인원"

// ---------- Boards ----------

func (a *App) handleBoards(ctx context.Context, chatID int64, user *domain.User, sess *session.Session) {
	boards, err := a.svc.Boards.List(ctx, user.ID)
	if err != nil {
		a.reply(chatID, "list boards", err)
		return
	}
	a.send(chatID, formatBoards(boards, user.ID, sess.ActiveBoardID))
}

func (a *App) handleNewBoard(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	if args == "" {
		a.send(chatID, "형식: /new_board 이름\n\n예시:\n/new_board 점심 메뉴")
		return
	}
	b, err := a.svc.Boards.CreatePersonal(ctx, user.ID, args)
	if err != nil {
		a.reply(chatID, "create board", err)
		return
	}
	sess.ActiveBoardID = b.ID
	a.send(chatID, fmt.Sprintf("메뉴판을 만들었어요! 🎉\nID: %d\n이름: %s\n\n이제 /recommend 로 메뉴를 추천받아 보세요.", b.ID, b.Name))
}

func (a *App) handleNewTeam(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	parts := splitPipeArgs(args, 3)
	if len(parts) < 3 {
		a.send(chatID, "형식: /new_team 팀이름 | 인원 | 메뉴판이름\n\n예시:\n/new_team 개발팀 | 5 | 금요일 점심")
		return
	}
	members, err := strconv.Atoi(parts[1])
	if err != nil {
		a.send(chatID, "인원은 숫자로 적어 주세요.")
		return
	}
	b, err := a.svc.Boards.CreateTeam(ctx, user.ID, parts[0], members, parts[2])
	if err != nil {
		a.reply(chatID, "create team board", err)
		return
	}
	sess.ActiveBoardID = b.ID
	a.send(chatID, fmt.Sprintf(
		"팀 메뉴판을 만들었어요! 🎉\nID: %d\n팀: %s (%d명)\n메뉴판: %s\n초대코드: %s\n\n"+
			"팀원에게 보내 주세요: /join %s",
		b.ID, b.TeamName, b.MembersNum, b.Name, b.InviteCode, b.InviteCode))
}

func (a *App) handleJoin(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	if args == "" {
		a.send(chatID, "형식: /join 초대코드")
		return
	}
	b, err := a.svc.Boards.Join(ctx, user.ID, args)
	if err != nil {
		a.reply(chatID, "join board", err)
		return
	}
	sess.ActiveBoardID = b.ID
	a.send(chatID, fmt.Sprintf("'%s' 팀의 '%s' 메뉴판에 참여했어요. /menu 로 메뉴를 확인하세요.", b.TeamName, b.Name))
}

func (a *App) handleSelectBoard(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	boardID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		a.send(chatID, "형식: /board ID")
		return
	}
	boards, err := a.svc.Boards.List(ctx, user.ID)
	if err != nil {
		a.reply(chatID, "list boards", err)
		return
	}
	for _, b := range boards {
		if b.ID == boardID {
			sess.ActiveBoardID = b.ID
			a.send(chatID, fmt.Sprintf("'%s' 메뉴판을 선택했어요.", b.Name))
			return
		}
	}
	a.send(chatID, "내 메뉴판 중에 해당 ID가 없어요. /boards 로 확인해 주세요.")
}

func (a *App) handleDeleteBoard(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	boardID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		a.send(chatID, "형식: /delete_board ID")
		return
	}
	if err := a.svc.Boards.Delete(ctx, user.ID, boardID); err != nil {
		a.reply(chatID, "delete board", err)
		return
	}
	a.sessions.ForgetBoard(boardID)
	a.send(chatID, fmt.Sprintf("메뉴판(ID %d)을 삭제했어요.", boardID))
}

// activeBoard answers the user and returns false when no board is selected.
func (a *App) activeBoard(chatID int64, sess *session.Session) (int64, bool) {
	if sess.ActiveBoardID == 0 {
		a.send(chatID, "먼저 메뉴판을 선택해 주세요: /board ID (목록은 /boards)")
		return 0, false
	}
	return sess.ActiveBoardID, true
}

// ---------- Recommendations ----------

func (a *App) handleRecommend(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	boardID, ok := a.activeBoard(chatID, sess)
	if !ok {
		return
	}
	groups, err := a.svc.Recommend.Recommend(ctx, user.ID, boardID, parseOptions(args))
	if err != nil {
		a.reply(chatID, "recommend", err)
		return
	}
	a.sendGroups(chatID, boardID, groups)
}

func (a *App) handleGuest(ctx context.Context, chatID int64, args string) {
	groups, err := a.svc.Recommend.RecommendTransient(ctx, parseOptions(args))
	if err != nil {
		a.reply(chatID, "guest recommend", err)
		return
	}
	a.send(chatID, formatGroups(groups))
}

func (a *App) handleMenu(ctx context.Context, chatID int64, sess *session.Session) {
	boardID, ok := a.activeBoard(chatID, sess)
	if !ok {
		return
	}
	groups, err := a.svc.Recommend.ListByBoardGrouped(ctx, boardID)
	if err != nil {
		a.reply(chatID, "list board menus", err)
		return
	}
	a.sendGroups(chatID, boardID, groups)
}

// sendGroups lists the menus with one vote button per menu.
func (a *App) sendGroups(chatID, boardID int64, groups []domain.CategoryGroup) {
	m := tgbotapi.NewMessage(chatID, truncate(formatGroups(groups)))
	if kb, ok := voteKeyboard(boardID, groups); ok {
		m.ReplyMarkup = kb
	}
	if _, err := a.out.Send(m); err != nil {
		a.logger.Warn("send menu list", "chat_id", chatID, "error", err)
	}
}

func (a *App) handleAdd(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string) {
	boardID, ok := a.activeBoard(chatID, sess)
	if !ok {
		return
	}
	menuIDs, err := parseIDs(args)
	if err != nil || len(menuIDs) == 0 {
		a.send(chatID, "형식: /add 메뉴ID,메뉴ID")
		return
	}
	slots, err := a.svc.Boards.AddMenus(ctx, user.ID, boardID, menuIDs)
	if err != nil {
		a.reply(chatID, "add menus", err)
		return
	}
	a.send(chatID, fmt.Sprintf("메뉴 %d개를 메뉴판에 추가했어요.", len(slots)))
}

// ---------- Votes ----------

func (a *App) handleVote(ctx context.Context, chatID int64, user *domain.User, sess *session.Session, args string, replace bool) {
	boardID, ok := a.activeBoard(chatID, sess)
	if !ok {
		return
	}
	menuIDs, err := parseIDs(args)
	if err != nil || (!replace && len(menuIDs) == 0) {
		a.send(chatID, "형식: /vote 메뉴ID,메뉴ID (메뉴ID는 /menu 에서 확인)")
		return
	}

	var votes []domain.Vote
	if replace {
		votes, err = a.svc.Ledger.ReplaceVotes(ctx, user.ID, boardID, menuIDs)
	} else {
		votes, err = a.svc.Ledger.CastVotes(ctx, user.ID, boardID, menuIDs)
	}
	if err != nil {
		a.reply(chatID, "vote", err)
		return
	}
	a.send(chatID, "투표 완료!\n"+formatVotes(votes))
}

func (a *App) handleUnvote(ctx context.Context, chatID int64, user *domain.User, args string) {
	voteID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		a.send(chatID, "형식: /unvote 투표ID")
		return
	}
	v, err := a.svc.Ledger.GetVote(ctx, voteID)
	if err != nil {
		a.reply(chatID, "get vote", err)
		return
	}
	if v.UserID != user.ID {
		a.send(chatID, "내 투표만 취소할 수 있어요.")
		return
	}
	if err := a.svc.Ledger.DeleteVote(ctx, voteID); err != nil {
		a.reply(chatID, "delete vote", err)
		return
	}
	a.send(chatID, fmt.Sprintf("'%s' 투표를 취소했어요.", v.MenuName))
}

func (a *App) handleResults(ctx context.Context, chatID int64, user *domain.User, sess *session.Session) {
	boardID, ok := a.activeBoard(chatID, sess)
	if !ok {
		return
	}
	res, err := a.svc.Tally.Results(ctx, boardID, user.ID)
	if err != nil {
		a.reply(chatID, "vote results", err)
		return
	}
	a.send(chatID, formatResults(res))
}

func (a *App) handleQuorum(ctx context.Context, chatID int64, sess *session.Session) {
	boardID, ok := a.activeBoard(chatID, sess)
	if !ok {
		return
	}
	q, err := a.svc.Tally.Quorum(ctx, boardID)
	if err != nil {
		a.reply(chatID, "quorum", err)
		return
	}
	a.send(chatID, fmt.Sprintf("투표 참여: %d / %d명", q.VotedUserCount, q.TeamMembersNum))
}
