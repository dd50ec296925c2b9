package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mailgrove/mailgrove/internal/attachment"
	"github.com/mailgrove/mailgrove/internal/autoreply"
	"github.com/mailgrove/mailgrove/internal/delivery"
	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/mailbox"
	"github.com/mailgrove/mailgrove/internal/models"
	"github.com/mailgrove/mailgrove/internal/spam"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

// --- In-memory stores for the HTTP round-trip tests ---

type memUserStore struct {
	users  map[string]*models.User
	nextID int64
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*models.User{}, nextID: 1}
}

func (m *memUserStore) CreateUser(_ context.Context, email string, verified bool) (*models.User, error) {
	u := &models.User{ID: m.nextID, PublicID: uuid.New(), Email: strings.ToLower(email), Verified: verified}
	m.nextID++
	m.users[u.Email] = u
	return u, nil
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *memUserStore) GetUsersByEmails(_ context.Context, emails []string) ([]models.User, error) {
	var out []models.User
	for _, e := range emails {
		if u, ok := m.users[strings.ToLower(e)]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memMessageStore struct {
	messages map[int64]*models.Message
	nextID   int64
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{messages: map[int64]*models.Message{}, nextID: 1}
}

func (m *memMessageStore) CreateMessage(_ context.Context, params models.MessageCreateParams) (*models.Message, error) {
	msg := &models.Message{
		ID:           m.nextID,
		PublicID:     uuid.New(),
		OwnerID:      params.OwnerID,
		Owner:        params.Owner,
		Sender:       params.Sender,
		Recipients:   params.Recipients,
		CC:           params.CC,
		BCC:          params.BCC,
		Subject:      params.Subject,
		Body:         params.Body,
		Attachments:  params.Attachments,
		Folder:       params.Folder,
		IsSpam:       params.IsSpam,
		SentAt:       time.Now(),
		DraftSavedAt: params.DraftSavedAt,
	}
	m.nextID++
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *memMessageStore) GetMessageByPublicID(_ context.Context, publicID uuid.UUID) (*models.Message, error) {
	for _, msg := range m.messages {
		if msg.PublicID == publicID {
			return msg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memMessageStore) GetMessagesByOwnerFolder(_ context.Context, ownerID int64, folder models.Folder, _, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.OwnerID == ownerID && msg.Folder == folder {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memMessageStore) GetStarredMessagesByOwner(_ context.Context, ownerID int64, _, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.OwnerID == ownerID && msg.IsStarred {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memMessageStore) MarkMessageRead(_ context.Context, id int64) error {
	if msg, ok := m.messages[id]; ok {
		msg.IsRead = true
		return nil
	}
	return sql.ErrNoRows
}

func (m *memMessageStore) SetMessageStarred(_ context.Context, id int64, starred bool) error {
	if msg, ok := m.messages[id]; ok {
		msg.IsStarred = starred
		return nil
	}
	return sql.ErrNoRows
}

func (m *memMessageStore) MoveMessageToFolder(_ context.Context, id int64, folder models.Folder) error {
	if msg, ok := m.messages[id]; ok {
		msg.Folder = folder
		return nil
	}
	return sql.ErrNoRows
}

func (m *memMessageStore) DeleteMessage(_ context.Context, id int64) error {
	delete(m.messages, id)
	return nil
}

func (m *memMessageStore) CountUnreadByOwnerFolder(_ context.Context, ownerID int64, folder models.Folder) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.OwnerID == ownerID && msg.Folder == folder && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

type noopLabeler struct{}

func (noopLabeler) AttachSpamLabel(context.Context, int64, int64) error { return nil }

type noReplies struct{}

func (noReplies) Get(context.Context, int64) (*models.AutoReply, error) {
	return nil, autoreply.ErrNotConfigured
}

type memUploader struct{}

func (memUploader) StoreAll(_ context.Context, ups []attachment.Upload) ([]models.Attachment, error) {
	atts := make([]models.Attachment, 0, len(ups))
	for i, up := range ups {
		atts = append(atts, models.Attachment{
			Reference: fmt.Sprintf("attachments/%d/%s", i, up.FileName),
			FileName:  up.FileName,
			SizeBytes: int64(len(up.Content)),
		})
	}
	return atts, nil
}

// --- Harness ---

type harness struct {
	router   chi.Router
	users    *memUserStore
	messages *memMessageStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	users := newMemUserStore()
	messages := newMemMessageStore()
	dirSvc := directory.NewService(users)
	deliverySvc := delivery.NewService(
		messages,
		dirSvc,
		spam.NewClassifier(dirSvc),
		noopLabeler{},
		noReplies{},
		memUploader{},
		&delivery.NoopNotifier{},
	)
	mailboxSvc := mailbox.NewService(messages)

	msgHandler := NewMessageHandler(deliverySvc)
	mbHandler := NewMailboxHandler(mailboxSvc)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity(dirSvc))
		r.Post("/api/v1/messages/send", msgHandler.HandleSend)
		r.Post("/api/v1/messages/reply", msgHandler.HandleReply)
		r.Post("/api/v1/messages/forward", msgHandler.HandleForward)
		r.Get("/api/v1/mailbox/{folder}", mbHandler.HandleListFolder)
		r.Get("/api/v1/messages/{messageID}", mbHandler.HandleGetMessage)
		r.Post("/api/v1/messages/{messageID}/read", mbHandler.HandleMarkRead)
	})

	return &harness{router: r, users: users, messages: messages}
}

func (h *harness) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := h.users.CreateUser(context.Background(), email, true)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (h *harness) do(t *testing.T, method, path, asUser string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if asUser != "" {
		req.Header.Set(middleware.IdentityHeader, asUser)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestSendEndpoint(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "s@x.com")
	h.seedUser(t, "a@x.com")

	rec := h.do(t, http.MethodPost, "/api/v1/messages/send", "s@x.com", map[string]any{
		"recipients": []string{"a@x.com"},
		"subject":    "Hello",
		"body":       "plain",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var view map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if view["folder"] != "sent" {
		t.Errorf("response should be the sent copy, got folder %v", view["folder"])
	}

	list := h.do(t, http.MethodGet, "/api/v1/mailbox/inbox", "a@x.com", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var listing struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Messages) != 1 {
		t.Errorf("recipient inbox should hold 1 message, got %d", len(listing.Messages))
	}
}

func TestSendEndpoint_ValidationError(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "s@x.com")

	rec := h.do(t, http.MethodPost, "/api/v1/messages/send", "s@x.com", map[string]any{
		"recipients": []string{"ghost@x.com"},
		"subject":    "Hello",
		"body":       "plain",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "recipients") {
		t.Errorf("error should name the failing list, got %s", rec.Body)
	}
}

func TestSendEndpoint_RequiresIdentity(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "a@x.com")

	rec := h.do(t, http.MethodPost, "/api/v1/messages/send", "", map[string]any{
		"recipients": []string{"a@x.com"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing identity header: expected 401, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/messages/send", "stranger@x.com", map[string]any{
		"recipients": []string{"a@x.com"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown identity: expected 401, got %d", rec.Code)
	}
}

func TestReplyEndpoint_BadMessageID(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "s@x.com")

	rec := h.do(t, http.MethodPost, "/api/v1/messages/reply", "s@x.com", map[string]any{
		"messageId": "not-a-uuid",
		"body":      "hi",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/messages/reply", "s@x.com", map[string]any{
		"messageId": uuid.New().String(),
		"body":      "hi",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown original: expected 404, got %d", rec.Code)
	}
}

func TestGetMessage_ForeignCopyIs404(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "s@x.com")
	h.seedUser(t, "a@x.com")
	h.seedUser(t, "b@x.com")

	send := h.do(t, http.MethodPost, "/api/v1/messages/send", "s@x.com", map[string]any{
		"recipients": []string{"a@x.com"},
		"subject":    "private",
		"body":       "x",
	})
	if send.Code != http.StatusCreated {
		t.Fatalf("send: %d", send.Code)
	}

	var sentView struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(send.Body.Bytes(), &sentView); err != nil {
		t.Fatal(err)
	}

	// The sender reads their own copy.
	rec := h.do(t, http.MethodGet, "/api/v1/messages/"+sentView.ID, "s@x.com", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner read: expected 200, got %d", rec.Code)
	}

	// A third party gets 404, not 403: the copy's existence is hidden.
	rec = h.do(t, http.MethodGet, "/api/v1/messages/"+sentView.ID, "b@x.com", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign read: expected 404, got %d", rec.Code)
	}
}

func TestListFolder_Unknown(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "s@x.com")

	rec := h.do(t, http.MethodGet, "/api/v1/mailbox/archive", "s@x.com", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSpamLandsInSpamFolder(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "s@x.com")
	h.seedUser(t, "a@x.com")

	rec := h.do(t, http.MethodPost, "/api/v1/messages/send", "s@x.com", map[string]any{
		"recipients": []string{"a@x.com"},
		"subject":    "win a prize",
		"body":       "x",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: %d: %s", rec.Code, rec.Body)
	}

	inbox := h.do(t, http.MethodGet, "/api/v1/mailbox/inbox", "a@x.com", nil)
	spamFolder := h.do(t, http.MethodGet, "/api/v1/mailbox/spam", "a@x.com", nil)

	var inboxList, spamList struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(inbox.Body.Bytes(), &inboxList); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(spamFolder.Body.Bytes(), &spamList); err != nil {
		t.Fatal(err)
	}
	if len(inboxList.Messages) != 0 {
		t.Errorf("spam must not land in the inbox, got %d", len(inboxList.Messages))
	}
	if len(spamList.Messages) != 1 {
		t.Errorf("expected 1 spam message, got %d", len(spamList.Messages))
	}
}
