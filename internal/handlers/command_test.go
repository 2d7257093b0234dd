package handlers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntaxa/coffeechest/internal/auth"
	"github.com/syntaxa/coffeechest/internal/database"
	"github.com/syntaxa/coffeechest/internal/database/models"
	"github.com/syntaxa/coffeechest/internal/locales"
)

func TestMain(m *testing.M) {
	locales.Init()
	os.Exit(m.Run())
}

// --- Mocks ---

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) EditMessageReplyMarkup(ctx context.Context, params *telego.EditMessageReplyMarkupParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeUserRepo is an in-memory UserRepository applying the same field-map
// update semantics as the Mongo implementation.
type fakeUserRepo struct {
	users map[int64]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*models.User)}
	for _, u := range users {
		r.users[u.ChatID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByChatID(_ context.Context, chatID int64) (*models.User, error) {
	u, ok := r.users[chatID]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) All(_ context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	return users, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now()
	}
	if user.NotificationTime == "" {
		user.NotificationTime = models.DefaultNotificationTime
	}
	if user.TimeZone == "" {
		user.TimeZone = models.DefaultTimeZone
	}
	if user.Cookie.Probability == 0 {
		user.Cookie.Probability = models.DefaultCookieProbability
	}
	r.users[user.ChatID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, chatID int64, fields map[string]interface{}) error {
	u, ok := r.users[chatID]
	if !ok {
		return database.ErrUserNotFound
	}
	for k, v := range fields {
		switch k {
		case "awaiting":
			if v == nil {
				u.Awaiting = models.AwaitingNothing
			} else {
				u.Awaiting = v.(models.AwaitingState)
			}
		case "selected_hour":
			if v == nil {
				u.SelectedHour = nil
			} else {
				hour := v.(int)
				u.SelectedHour = &hour
			}
		case "notification_time":
			u.NotificationTime = v.(string)
		case "time_zone":
			u.TimeZone = v.(string)
		case "haiku":
			if v == nil {
				u.Haiku = models.HaikuUnset
			} else {
				u.Haiku = v.(models.HaikuPref)
			}
		case "cookie.enabled":
			u.Cookie.Enabled = v.(bool)
		case "cookie.probability":
			u.Cookie.Probability = v.(int)
		default:
			panic(fmt.Sprintf("fakeUserRepo: unexpected update field %q", k))
		}
	}
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, chatID int64) error {
	if _, ok := r.users[chatID]; !ok {
		return database.ErrUserNotFound
	}
	delete(r.users, chatID)
	return nil
}

// fakeGateway records outbound messages instead of delivering them.
type sentMessage struct {
	ChatID int64
	Text   string
	Params telego.SendMessageParams
}

type fakeGateway struct {
	sent           []sentMessage
	sendErr        error
	broadcastText  string
	broadcastCount int
	broadcastErr   error
}

func (g *fakeGateway) Send(_ context.Context, chatID int64, text string, opts ...func(*telego.SendMessageParams)) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	var params telego.SendMessageParams
	for _, opt := range opts {
		opt(&params)
	}
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text, Params: params})
	return nil
}

func (g *fakeGateway) Broadcast(_ context.Context, text string) (int, error) {
	g.broadcastText = text
	return g.broadcastCount, g.broadcastErr
}

func (g *fakeGateway) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, g.sent, "no message was sent")
	return g.sent[len(g.sent)-1]
}

// --- Test Suite Setup ---

const (
	testChatID  = int64(54321)
	testAdminID = int64(777)
)

type testHandlerSuite struct {
	repo    *fakeUserRepo
	gateway *fakeGateway
	handler *MessageHandler
}

func setupTestHandlerSuite(t *testing.T, users ...*models.User) *testHandlerSuite {
	t.Helper()

	repo := newFakeUserRepo(users...)
	gateway := &fakeGateway{}
	handler := NewMessageHandler(repo, gateway, auth.NewAdminChecker(testAdminID))

	return &testHandlerSuite{repo: repo, gateway: gateway, handler: handler}
}

func registeredUser() *models.User {
	return &models.User{
		ChatID:           testChatID,
		Username:         "testuser",
		RegisteredAt:     time.Now(),
		NotificationTime: models.DefaultNotificationTime,
		TimeZone:         models.DefaultTimeZone,
		Cookie:           models.CookieSettings{Probability: models.DefaultCookieProbability},
	}
}

func commandMessage(text string) telego.Message {
	return telego.Message{
		MessageID: 100,
		From:      &telego.User{ID: testChatID, Username: "testuser"},
		Chat:      telego.Chat{ID: testChatID},
		Text:      text,
	}
}

func expectedText(t *testing.T, msgID string, data map[string]interface{}) string {
	t.Helper()
	return locales.GetMessage(locales.NewLocalizer(locales.DefaultLanguage), msgID, data)
}

// --- Tests ---

func TestHandleStart(t *testing.T) {
	ctx := context.Background()

	t.Run("NewUser", func(t *testing.T) {
		s := setupTestHandlerSuite(t)

		err := s.handler.HandleStart(ctx, nil, commandMessage("/start"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgStart", nil), s.gateway.last(t).Text)

		user, err := s.repo.FindByChatID(ctx, testChatID)
		require.NoError(t, err)
		assert.Equal(t, "testuser", user.Username)
		assert.Equal(t, models.DefaultNotificationTime, user.NotificationTime)
		assert.Equal(t, models.DefaultTimeZone, user.TimeZone)
		assert.Equal(t, models.DefaultCookieProbability, user.Cookie.Probability)
		assert.False(t, user.Cookie.Enabled)
		assert.False(t, user.RegisteredAt.IsZero())
	})

	t.Run("AlreadyRegistered", func(t *testing.T) {
		existing := registeredUser()
		existing.NotificationTime = "08:00"
		s := setupTestHandlerSuite(t, existing)

		err := s.handler.HandleStart(ctx, nil, commandMessage("/start"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgAlreadyRegistered", nil), s.gateway.last(t).Text)

		// The existing record is untouched.
		user, err := s.repo.FindByChatID(ctx, testChatID)
		require.NoError(t, err)
		assert.Equal(t, "08:00", user.NotificationTime)
	})
}

func TestHandleUnregister(t *testing.T) {
	ctx := context.Background()

	t.Run("Registered", func(t *testing.T) {
		s := setupTestHandlerSuite(t, registeredUser())

		err := s.handler.HandleUnregister(ctx, nil, commandMessage("/unregister"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgUnregistered", nil), s.gateway.last(t).Text)
		_, err = s.repo.FindByChatID(ctx, testChatID)
		assert.ErrorIs(t, err, database.ErrUserNotFound)
	})

	t.Run("NotRegistered", func(t *testing.T) {
		s := setupTestHandlerSuite(t)

		err := s.handler.HandleUnregister(ctx, nil, commandMessage("/unregister"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgUnregisterNotRegistered", nil), s.gateway.last(t).Text)
	})
}

func TestHandleSetTimezone(t *testing.T) {
	ctx := context.Background()

	hour := 9
	user := registeredUser()
	user.Awaiting = models.AwaitingMinute
	user.SelectedHour = &hour
	s := setupTestHandlerSuite(t, user)

	err := s.handler.HandleSetTimezone(ctx, nil, commandMessage("/settimezone"))

	require.NoError(t, err)
	sent := s.gateway.last(t)
	assert.Equal(t, expectedText(t, "MsgChooseTimezone", nil), sent.Text)
	require.NotNil(t, sent.Params.ReplyMarkup)
	kb := sent.Params.ReplyMarkup.(*telego.InlineKeyboardMarkup)
	assert.Len(t, kb.InlineKeyboard, 3)

	// Starting the flow resets any pending picker state.
	updated, err := s.repo.FindByChatID(ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, models.AwaitingNothing, updated.Awaiting)
	assert.Nil(t, updated.SelectedHour)
}

func TestHandleSetTime(t *testing.T) {
	ctx := context.Background()

	t.Run("WithValidArgument", func(t *testing.T) {
		s := setupTestHandlerSuite(t, registeredUser())

		err := s.handler.HandleSetTime(ctx, nil, commandMessage("/settime 08:15"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgTimeSet", map[string]interface{}{"Time": "08:15"}), s.gateway.last(t).Text)

		user, err := s.repo.FindByChatID(ctx, testChatID)
		require.NoError(t, err)
		assert.Equal(t, "08:15", user.NotificationTime)
		assert.Equal(t, models.AwaitingNothing, user.Awaiting)
	})

	t.Run("WithInvalidArgument", func(t *testing.T) {
		s := setupTestHandlerSuite(t, registeredUser())

		err := s.handler.HandleSetTime(ctx, nil, commandMessage("/settime 25:99"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgTimeInvalid", nil), s.gateway.last(t).Text)

		// The stored time is unchanged.
		user, err := s.repo.FindByChatID(ctx, testChatID)
		require.NoError(t, err)
		assert.Equal(t, models.DefaultNotificationTime, user.NotificationTime)
	})

	t.Run("WithoutArgumentStartsPicker", func(t *testing.T) {
		s := setupTestHandlerSuite(t, registeredUser())

		err := s.handler.HandleSetTime(ctx, nil, commandMessage("/settime"))

		require.NoError(t, err)
		sent := s.gateway.last(t)
		assert.Equal(t, expectedText(t, "MsgChooseHour", nil), sent.Text)
		require.NotNil(t, sent.Params.ReplyMarkup)
		kb := sent.Params.ReplyMarkup.(*telego.InlineKeyboardMarkup)
		require.Len(t, kb.InlineKeyboard, 4)
		assert.Len(t, kb.InlineKeyboard[0], 6)

		user, err := s.repo.FindByChatID(ctx, testChatID)
		require.NoError(t, err)
		assert.Equal(t, models.AwaitingHour, user.Awaiting)
		assert.Nil(t, user.SelectedHour)
	})
}

func TestHandleSendHaiku(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultEnabled", func(t *testing.T) {
		s := setupTestHandlerSuite(t, registeredUser())

		err := s.handler.HandleSendHaiku(ctx, nil, commandMessage("/sendhaiku"))

		require.NoError(t, err)
		sent := s.gateway.last(t)
		assert.Equal(t, expectedText(t, "MsgHaikuStatusOn", nil), sent.Text)
		require.NotNil(t, sent.Params.ReplyMarkup)
	})

	t.Run("OptedOut", func(t *testing.T) {
		user := registeredUser()
		user.Haiku = models.HaikuOff
		s := setupTestHandlerSuite(t, user)

		err := s.handler.HandleSendHaiku(ctx, nil, commandMessage("/sendhaiku"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgHaikuStatusOff", nil), s.gateway.last(t).Text)
	})
}

func TestHandleSetCookie(t *testing.T) {
	ctx := context.Background()
	s := setupTestHandlerSuite(t, registeredUser())

	err := s.handler.HandleSetCookie(ctx, nil, commandMessage("/setcookie"))

	require.NoError(t, err)
	sent := s.gateway.last(t)
	assert.Equal(t, expectedText(t, "MsgCookieSettings", nil), sent.Text)
	require.NotNil(t, sent.Params.ReplyMarkup)
	kb := sent.Params.ReplyMarkup.(*telego.InlineKeyboardMarkup)
	// Toggle row, probability row, close row.
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[1], 4)
}

func TestHandleBroadcast(t *testing.T) {
	ctx := context.Background()

	adminMessage := func(text string) telego.Message {
		return telego.Message{
			MessageID: 100,
			From:      &telego.User{ID: testAdminID, Username: "admin"},
			Chat:      telego.Chat{ID: testAdminID},
			Text:      text,
		}
	}

	t.Run("DeniedForNonAdmin", func(t *testing.T) {
		s := setupTestHandlerSuite(t, registeredUser())

		err := s.handler.HandleBroadcast(ctx, nil, commandMessage("/broadcast hello"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgErrorRequiresAdmin", nil), s.gateway.last(t).Text)
		assert.Empty(t, s.gateway.broadcastText)
	})

	t.Run("UsageWithoutText", func(t *testing.T) {
		s := setupTestHandlerSuite(t)

		err := s.handler.HandleBroadcast(ctx, nil, adminMessage("/broadcast"))

		require.NoError(t, err)
		assert.Equal(t, expectedText(t, "MsgBroadcastUsage", nil), s.gateway.last(t).Text)
	})

	t.Run("Success", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.gateway.broadcastCount = 3

		err := s.handler.HandleBroadcast(ctx, nil, adminMessage("/broadcast coffee is back"))

		require.NoError(t, err)
		assert.Equal(t, "coffee is back", s.gateway.broadcastText)
		assert.Equal(t, expectedText(t, "MsgBroadcastDone", map[string]interface{}{"Count": 3}), s.gateway.last(t).Text)
	})
}

func TestSetupCommands(t *testing.T) {
	ctx := context.Background()
	s := setupTestHandlerSuite(t)
	mockBot := new(MockBot)

	var captured *telego.SetMyCommandsParams
	mockBot.On("SetMyCommands", ctx, mock.AnythingOfType("*telego.SetMyCommandsParams")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*telego.SetMyCommandsParams)
		}).
		Return(nil).Once()

	err := s.handler.SetupCommands(ctx, mockBot)

	require.NoError(t, err)
	mockBot.AssertExpectations(t)
	require.NotNil(t, captured)
	// /broadcast has no description and stays out of the menu.
	assert.Len(t, captured.Commands, 6)
	for _, cmd := range captured.Commands {
		assert.NotEqual(t, "broadcast", cmd.Command)
		assert.NotEmpty(t, cmd.Description)
	}
}
