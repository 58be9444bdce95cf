package api

import (
	"context"
	"errors"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/jaam8/polls/internal/models"
	"github.com/jaam8/polls/internal/service"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
	"strings"
)

const (
	COMMAND     = "/poll"
	HelpMessage = "i know only this command:\n- `/poll list`\n- `/poll show question_id`\n- `/poll vote question_id choice_id`\n- `/poll result question_id`\n- `/poll help`"

	somethingWentWrong = "something went wrong"
)

// Poster is the part of the Mattermost client the bot writes with.
// *model.Client4 satisfies it.
type Poster interface {
	CreatePost(post *model.Post) (*model.Post, *model.Response, error)
	CreatePostEphemeral(post *model.PostEphemeral) (*model.Post, *model.Response, error)
}

// PollHandler answers /poll commands posted in Mattermost.
type PollHandler struct {
	s         *service.PollService
	l         *zap.Logger
	client    Poster
	channelID string
}

func NewPollHandler(s *service.PollService, l *zap.Logger, client Poster, channelID string) *PollHandler {
	return &PollHandler{
		s:         s,
		l:         l,
		client:    client,
		channelID: channelID,
	}
}

// Serve handles posted events until ctx is done or events is closed.
func (h *PollHandler) Serve(ctx context.Context, events <-chan *model.WebSocketEvent, botID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.EventType() == model.WebsocketEventPosted {
				h.l.Debug("new message", zap.String("event", event.EventType()))
				h.HandleEvent(ctx, event, botID)
			}
		}
	}
}

func (h *PollHandler) HandleEvent(ctx context.Context, event *model.WebSocketEvent, botID string) {
	raw, ok := event.GetData()["post"].(string)
	if !ok {
		h.l.Error("event has no post")
		return
	}
	post := &model.Post{}
	if err := json.Unmarshal([]byte(raw), post); err != nil {
		h.l.Error("error unmarshalling post", zap.Error(err))
		return
	}
	if post.UserId == botID {
		return
	}
	h.HandlePost(ctx, post)
}

func (h *PollHandler) HandlePost(ctx context.Context, post *model.Post) {
	args := strings.Fields(post.Message)
	if len(args) == 0 || args[0] != COMMAND {
		return
	}
	if len(args) < 2 {
		h.sendMsg(HelpMessage)
		return
	}
	h.l.Info("new request for the bot",
		zap.String("command", args[0]),
		zap.String("subcommand", args[1]),
		zap.String("user_id", post.UserId),
		zap.String("channel_id", post.ChannelId),
		zap.String("message", post.Message))

	switch {
	case args[1] == "list":
		h.list(ctx, post)
	case args[1] == "show" && len(args) == 3:
		h.show(ctx, post, args[2])
	case args[1] == "vote" && len(args) == 4:
		h.vote(ctx, post, args[2], args[3])
	case args[1] == "result" && len(args) == 3:
		h.result(ctx, post, args[2])
	default:
		h.sendMsg(HelpMessage)
	}
}

func (h *PollHandler) list(ctx context.Context, post *model.Post) {
	questions, err := h.s.LatestQuestions(ctx)
	if err != nil {
		h.l.Error("failed to list questions", zap.Error(err))
		h.reply(post, somethingWentWrong)
		return
	}
	if len(questions) == 0 {
		h.sendMsg("No polls are available.")
		return
	}
	message := "**Polls**:\n"
	for _, q := range questions {
		message += fmt.Sprintf("  [%d] %s\n", q.ID, q.Text)
	}
	h.sendMsg(message)
}

func (h *PollHandler) show(ctx context.Context, post *model.Post, rawID string) {
	q, ok := h.publishedQuestion(ctx, post, rawID)
	if !ok {
		return
	}
	message := fmt.Sprintf("**Question ID**: %d\n**Question**: %s\n**Choices**:\n", q.ID, q.Text)
	for _, c := range q.Choices {
		message += fmt.Sprintf("  [%d] *%s*\n", c.ID, c.Text)
	}
	h.sendMsg(message)
}

func (h *PollHandler) vote(ctx context.Context, post *model.Post, rawQuestionID, rawChoiceID string) {
	questionID, ok := parseID(rawQuestionID)
	if !ok {
		h.reply(post, fmt.Sprintf("not found poll with id: %s", rawQuestionID))
		return
	}
	choiceID, ok := parseID(rawChoiceID)
	if !ok {
		h.reply(post, fmt.Sprintf("not found choice with id: %s", rawChoiceID))
		return
	}

	_, err := h.s.RecordVote(ctx, questionID, choiceID)
	switch {
	case err == nil:
		h.l.Info("voted successfully",
			zap.Uint64("question_id", questionID),
			zap.String("user_id", post.UserId),
			zap.Uint64("choice_id", choiceID))
		h.reply(post, "your vote successfully written")
	case errors.Is(err, models.ErrQuestionNotFound):
		h.reply(post, fmt.Sprintf("not found poll with id: %s", rawQuestionID))
	case errors.Is(err, models.ErrInvalidSelection):
		h.reply(post, fmt.Sprintf("not found choice with id: %s", rawChoiceID))
	default:
		h.l.Error("failed to vote", zap.Error(err))
		h.reply(post, somethingWentWrong)
	}
}

func (h *PollHandler) result(ctx context.Context, post *model.Post, rawID string) {
	q, ok := h.publishedQuestion(ctx, post, rawID)
	if !ok {
		return
	}
	message := fmt.Sprintf("**Question**: %s\n", q.Text)
	for _, c := range q.Choices {
		message += fmt.Sprintf("  [%d] votes: **%d** (*%s*)\n", c.ID, c.VoteCount, c.Text)
	}
	h.sendMsg(message)
}

func (h *PollHandler) publishedQuestion(ctx context.Context, post *model.Post, rawID string) (*models.Question, bool) {
	id, ok := parseID(rawID)
	if !ok {
		h.reply(post, fmt.Sprintf("not found poll with id: %s", rawID))
		return nil, false
	}
	q, err := h.s.PublishedQuestion(ctx, id)
	if errors.Is(err, models.ErrQuestionNotFound) {
		h.reply(post, fmt.Sprintf("not found poll with id: %s", rawID))
		return nil, false
	}
	if err != nil {
		h.l.Error("failed to get question", zap.Uint64("question_id", id), zap.Error(err))
		h.reply(post, somethingWentWrong)
		return nil, false
	}
	return q, true
}

// reply sends an ephemeral post visible only to the author of post.
func (h *PollHandler) reply(post *model.Post, message string) {
	ephemeral := &model.PostEphemeral{
		UserID: post.UserId,
		Post:   &model.Post{ChannelId: post.ChannelId, Message: message},
	}
	if _, _, err := h.client.CreatePostEphemeral(ephemeral); err != nil {
		h.l.Error("failed sending ephemeral message", zap.Error(err))
	}
}

func (h *PollHandler) sendMsg(message string) {
	post := &model.Post{
		ChannelId: h.channelID,
		Message:   message,
	}
	if _, _, err := h.client.CreatePost(post); err != nil {
		h.l.Error("failed sending message", zap.String("channel_id", h.channelID), zap.Error(err))
		return
	}
	h.l.Debug("send new message",
		zap.String("channel_id", h.channelID),
		zap.String("message", message))
}
