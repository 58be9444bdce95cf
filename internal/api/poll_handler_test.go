package api

import (
	"context"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"sync"
	"testing"
)

const (
	testChannelID = "channel"
	testUserID    = "user"
	testBotID     = "bot"
)

type fakePoster struct {
	mu         sync.Mutex
	posts      []*model.Post
	ephemerals []*model.PostEphemeral
}

func (f *fakePoster) CreatePost(post *model.Post) (*model.Post, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post)
	return post, &model.Response{}, nil
}

func (f *fakePoster) CreatePostEphemeral(post *model.PostEphemeral) (*model.Post, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, post)
	return post.Post, &model.Response{}, nil
}

func (f *fakePoster) lastPost(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posts)
	return f.posts[len(f.posts)-1].Message
}

func (f *fakePoster) lastEphemeral(t *testing.T) *model.PostEphemeral {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.ephemerals)
	return f.ephemerals[len(f.ephemerals)-1]
}

func newTestPollHandler(t *testing.T) (*PollHandler, *fakePoster) {
	t.Helper()
	poster := &fakePoster{}
	return NewPollHandler(newTestService(t), zaptest.NewLogger(t), poster, testChannelID), poster
}

func userPost(message string) *model.Post {
	return &model.Post{UserId: testUserID, ChannelId: testChannelID, Message: message}
}

func TestPollHandlerIgnoresOtherMessages(t *testing.T) {
	h, poster := newTestPollHandler(t)

	h.HandlePost(context.Background(), userPost("hello there"))
	h.HandlePost(context.Background(), userPost(""))

	assert.Empty(t, poster.posts)
	assert.Empty(t, poster.ephemerals)
}

func TestPollHandlerHelp(t *testing.T) {
	h, poster := newTestPollHandler(t)

	for _, msg := range []string{"/poll", "/poll help", "/poll show", "/poll unknown 1"} {
		h.HandlePost(context.Background(), userPost(msg))
		assert.Equal(t, HelpMessage, poster.lastPost(t), msg)
	}
}

func TestPollHandlerList(t *testing.T) {
	h, poster := newTestPollHandler(t)

	h.HandlePost(context.Background(), userPost("/poll list"))
	assert.Equal(t, "No polls are available.", poster.lastPost(t))

	q := createQuestion(t, h.s, "Favorite color?", -1, "Red")
	createQuestion(t, h.s, "Hidden", 3, "Soon")

	h.HandlePost(context.Background(), userPost("/poll list"))
	msg := poster.lastPost(t)
	assert.Contains(t, msg, fmt.Sprintf("[%d] Favorite color?", q.ID))
	assert.NotContains(t, msg, "Hidden")
}

func TestPollHandlerShowAndResult(t *testing.T) {
	h, poster := newTestPollHandler(t)
	q := createQuestion(t, h.s, "Favorite color?", -1, "Red", "Blue")
	future := createQuestion(t, h.s, "Hidden", 3, "Soon")

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll show %d", q.ID)))
	msg := poster.lastPost(t)
	assert.Contains(t, msg, "Favorite color?")
	assert.Contains(t, msg, fmt.Sprintf("[%d] *Red*", q.Choices[0].ID))

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll result %d", q.ID)))
	assert.Contains(t, poster.lastPost(t), fmt.Sprintf("[%d] votes: **0** (*Blue*)", q.Choices[1].ID))

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll show %d", future.ID)))
	eph := poster.lastEphemeral(t)
	assert.Equal(t, testUserID, eph.UserID)
	assert.Equal(t, fmt.Sprintf("not found poll with id: %d", future.ID), eph.Post.Message)

	h.HandlePost(context.Background(), userPost("/poll result abc"))
	assert.Equal(t, "not found poll with id: abc", poster.lastEphemeral(t).Post.Message)
}

func TestPollHandlerVote(t *testing.T) {
	h, poster := newTestPollHandler(t)
	q := createQuestion(t, h.s, "Favorite color?", -1, "Red", "Blue")
	other := createQuestion(t, h.s, "Other", -1, "Green")

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll vote %d %d", q.ID, q.Choices[1].ID)))
	assert.Equal(t, "your vote successfully written", poster.lastEphemeral(t).Post.Message)

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll vote %d %d", q.ID, other.Choices[0].ID)))
	assert.Equal(t, fmt.Sprintf("not found choice with id: %d", other.Choices[0].ID), poster.lastEphemeral(t).Post.Message)

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll vote 999 %d", q.Choices[0].ID)))
	assert.Equal(t, "not found poll with id: 999", poster.lastEphemeral(t).Post.Message)

	h.HandlePost(context.Background(), userPost(fmt.Sprintf("/poll vote %d x", q.ID)))
	assert.Equal(t, "not found choice with id: x", poster.lastEphemeral(t).Post.Message)

	got, err := h.s.Question(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Choices[0].VoteCount)
	assert.EqualValues(t, 1, got.Choices[1].VoteCount)
}

func TestPollHandlerServe(t *testing.T) {
	h, poster := newTestPollHandler(t)

	raw, err := json.Marshal(userPost("/poll help"))
	require.NoError(t, err)
	own, err := json.Marshal(&model.Post{UserId: testBotID, ChannelId: testChannelID, Message: "/poll help"})
	require.NoError(t, err)

	events := make(chan *model.WebSocketEvent, 3)
	fromBot := model.NewWebSocketEvent(model.WebsocketEventPosted, "", testChannelID, "", nil)
	fromBot.Add("post", string(own))
	fromUser := model.NewWebSocketEvent(model.WebsocketEventPosted, "", testChannelID, "", nil)
	fromUser.Add("post", string(raw))
	typing := model.NewWebSocketEvent(model.WebsocketEventTyping, "", testChannelID, "", nil)
	events <- fromBot
	events <- typing
	events <- fromUser
	close(events)

	h.Serve(context.Background(), events, testBotID)

	require.Len(t, poster.posts, 1)
	assert.Equal(t, HelpMessage, poster.posts[0].Message)
}
