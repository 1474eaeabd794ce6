package handler_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/handler"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/service"
	"github.com/set-night/batchtxt/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const auditChat int64 = -100

type sentMessage struct {
	ChatID int64
	Text   string
	Markup models.ReplyMarkup
}

type sentDocument struct {
	ChatID  int64
	Name    string
	Caption string
	Data    []byte
}

// fakeAPI records what the handlers send instead of talking to Telegram.
type fakeAPI struct {
	mu        sync.Mutex
	messages  []sentMessage
	documents []sentDocument
	edits     []string
	deleted   []int
	answers   []string
	fileURL   string
	nextID    atomic.Int64
}

var _ telegram.API = (*fakeAPI)(nil)

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{ChatID: p.ChatID.(int64), Text: p.Text, Markup: p.ReplyMarkup})
	return &models.Message{ID: int(f.nextID.Add(1))}, nil
}

func (f *fakeAPI) SendDocument(_ context.Context, p *bot.SendDocumentParams) (*models.Message, error) {
	upload, ok := p.Document.(*models.InputFileUpload)
	if !ok {
		return nil, fmt.Errorf("unexpected document type %T", p.Document)
	}
	data, err := io.ReadAll(upload.Data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, sentDocument{
		ChatID:  p.ChatID.(int64),
		Name:    upload.Filename,
		Caption: p.Caption,
		Data:    data,
	})
	return &models.Message{ID: int(f.nextID.Add(1))}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p.Text)
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p.Text)
	return true, nil
}

func (f *fakeAPI) SendChatAction(context.Context, *bot.SendChatActionParams) (bool, error) {
	return true, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, p *bot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, p.MessageID)
	return true, nil
}

func (f *fakeAPI) GetFile(_ context.Context, p *bot.GetFileParams) (*models.File, error) {
	return &models.File{FileID: p.FileID, FilePath: "documents/" + p.FileID + ".txt", FileSize: 64}, nil
}

func (f *fakeAPI) FileDownloadLink(file *models.File) string {
	return f.fileURL + "/" + file.FilePath
}

func (f *fakeAPI) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastTo(chatID int64) sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ChatID == chatID {
			return f.messages[i]
		}
	}
	return sentMessage{}
}

func (f *fakeAPI) docs() []sentDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentDocument(nil), f.documents...)
}

type fixture struct {
	h        *handler.Handler
	api      *fakeAPI
	sessions *service.SessionStore
	cfg      *config.Config
}

func newFixture(t *testing.T, overrides map[string]config.PlatformOverride, hc *http.Client) *fixture {
	t.Helper()
	return newFixtureWith(t, overrides, hc, nil)
}

// newFixtureWith lets a test wrap the real extractor.
func newFixtureWith(t *testing.T, overrides map[string]config.PlatformOverride, hc *http.Client, wrap func(*service.ExtractorService) handler.Extractor) *fixture {
	t.Helper()
	cfg := &config.Config{
		ReportDir:         t.TempDir(),
		AuditChatID:       auditChat,
		PlayerURLTemplate: "https://player.example/{id}/master.m3u8?token={token}",
	}
	api := &fakeAPI{}
	sessions := service.NewSessionStore(10 * time.Minute)
	metrics := service.NewMetrics()
	reg := platform.NewRegistry(cfg, overrides)

	var extractor handler.Extractor = service.NewExtractorService(reg, hc, metrics)
	if wrap != nil {
		extractor = wrap(service.NewExtractorService(reg, hc, metrics))
	}

	h := handler.New(handler.Deps{
		Cfg:        cfg,
		Sessions:   sessions,
		Extractor:  extractor,
		Metrics:    metrics,
		Audit:      telegram.NewAuditLogger(api, cfg),
		HTTPClient: hc,
	})
	return &fixture{h: h, api: api, sessions: sessions, cfg: cfg}
}

var msgSeq atomic.Int64

func textUpdate(chatID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   int(msgSeq.Add(1)),
		Chat: models.Chat{ID: chatID, Type: "private"},
		From: &models.User{ID: chatID, FirstName: "Ann", Username: "ann"},
		Text: text,
	}}
}

func callbackUpdate(chatID int64, data string) *models.Update {
	return callbackFrom(chatID, chatID, data)
}

func callbackFrom(chatID, userID int64, data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cq",
		From: models.User{ID: userID, Username: "ann"},
		Data: data,
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{
			ID:   500,
			Chat: models.Chat{ID: chatID, Type: "private"},
			Text: "menu",
		}},
	}}
}

func (f *fixture) send(u *models.Update) {
	f.h.HandleUpdate(context.Background(), f.api, u)
}

const pwToken = "tok-SECRET-123"

func pwUpstream(t *testing.T, batches string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authorization") != "Bearer "+pwToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page := r.URL.Query().Get("page")
		switch r.URL.Path {
		case "/v3/batches/my-batches":
			if page == "1" {
				fmt.Fprint(w, batches)
				return
			}
			fmt.Fprint(w, `{"data":[]}`)
		case "/v3/batches/B1/details":
			fmt.Fprint(w, `{"data":{"subjects":[{"_id":"S1","subject":"Algebra"}]}}`)
		case "/v2/batches/B1/subject/S1/contents":
			if page == "1" && r.URL.Query().Get("contentType") == "notes" {
				fmt.Fprint(w, `{"data":[{"homeworkIds":[{"topic":"Algebra","attachmentIds":[{"baseUrl":"https://cdn.x/","key":"doc1.pdf"}]}]}]}`)
				return
			}
			fmt.Fprint(w, `{"data":[]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

const oneBatch = `{"data":[{"_id":"B1","name":"Math101"}]}`

func TestPW_NotesScenario(t *testing.T) {
	srv := pwUpstream(t, oneBatch)
	f := newFixture(t, map[string]config.PlatformOverride{"pw": {BaseURL: srv.URL}}, srv.Client())
	const chat = 42

	f.send(textUpdate(chat, "/pw"))
	assert.Equal(t, "Send your PW authentication token:", f.api.lastTo(chat).Text)

	f.send(textUpdate(chat, pwToken))
	listing := f.api.lastTo(chat)
	assert.Contains(t, listing.Text, "B1 - Math101 - Free")
	require.NotNil(t, listing.Markup)

	f.send(textUpdate(chat, "B1"))
	assert.Equal(t, "Choose the type of content to extract:", f.api.lastTo(chat).Text)

	f.send(callbackUpdate(chat, telegram.CallbackContentType+"notes"))
	f.h.Wait()

	docs := f.api.docs()
	require.Len(t, docs, 1)
	assert.Equal(t, int64(chat), docs[0].ChatID)
	assert.Equal(t, "PW_B1_notes.txt", docs[0].Name)
	assert.Equal(t, "=== Subject: Algebra ===\n\nAlgebra: https://cdn.x/doc1.pdf\n", string(docs[0].Data))
	assert.Contains(t, docs[0].Caption, "Math101")
	assert.Contains(t, docs[0].Caption, "Content Type: notes")
	assert.Contains(t, docs[0].Caption, " seconds")

	assert.Equal(t, 0, f.sessions.Len())

	entries, err := os.ReadDir(f.cfg.ReportDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp report directory must be removed")

	audit := f.api.textsTo(auditChat)
	require.NotEmpty(t, audit)
	for _, m := range audit {
		assert.NotContains(t, m, pwToken)
	}
	assert.True(t, strings.Contains(strings.Join(audit, "\n"), "content extracted and sent to user"))
}

func TestPW_InvalidToken(t *testing.T) {
	srv := pwUpstream(t, oneBatch)
	f := newFixture(t, map[string]config.PlatformOverride{"pw": {BaseURL: srv.URL}}, srv.Client())
	const chat = 7

	f.send(textUpdate(chat, "/pw"))
	f.send(textUpdate(chat, "expired"))

	assert.Equal(t, "Invalid or Expired Token. Please Provide A Valid Token.", f.api.lastTo(chat).Text)
	assert.Equal(t, 0, f.sessions.Len())
	assert.Empty(t, f.api.docs())
}

func TestPW_NoBatches(t *testing.T) {
	srv := pwUpstream(t, `{"data":[]}`)
	f := newFixture(t, map[string]config.PlatformOverride{"pw": {BaseURL: srv.URL}}, srv.Client())
	const chat = 8

	f.send(textUpdate(chat, "/pw"))
	f.send(textUpdate(chat, pwToken))

	assert.Equal(t, "No batches found or failed to fetch. Please check your token.", f.api.lastTo(chat).Text)
	assert.Equal(t, 0, f.sessions.Len())
	assert.Empty(t, f.api.docs())
}

func TestPW_UnknownBatchReprompts(t *testing.T) {
	srv := pwUpstream(t, oneBatch)
	f := newFixture(t, map[string]config.PlatformOverride{"pw": {BaseURL: srv.URL}}, srv.Client())
	const chat = 9

	f.send(textUpdate(chat, "/pw"))
	f.send(textUpdate(chat, pwToken))
	f.send(textUpdate(chat, "B9"))

	assert.Equal(t, "Invalid Batch ID! Please try again.", f.api.lastTo(chat).Text)
	sess, ok := f.sessions.Get(chat)
	require.True(t, ok)
	assert.Equal(t, domain.StateBatch, sess.State)

	// The button path reaches the same step.
	f.send(callbackUpdate(chat, telegram.CallbackBatch+"B1"))
	assert.Equal(t, "Choose the type of content to extract:", f.api.lastTo(chat).Text)
}

func TestStart_ReplacesAndCancels(t *testing.T) {
	f := newFixture(t, nil, http.DefaultClient)
	const chat = 10

	f.send(textUpdate(chat, "/start"))
	welcome := f.api.lastTo(chat).Text
	for _, cmd := range []string{"/pw", "/ak", "/cw", "/kgs", "/html", "/cancel"} {
		assert.Contains(t, welcome, cmd)
	}

	f.send(textUpdate(chat, "/ak"))
	f.send(textUpdate(chat, "/cw"))
	assert.Contains(t, f.api.textsTo(chat), "Ending previous conversation...")

	sess, ok := f.sessions.Get(chat)
	require.True(t, ok)
	assert.Equal(t, "cw", sess.Platform)

	f.send(textUpdate(chat, "/cancel"))
	assert.Equal(t, "🔄 Conversation cancelled.", f.api.lastTo(chat).Text)
	assert.Equal(t, 0, f.sessions.Len())

	f.send(textUpdate(chat, "hello"))
	assert.Equal(t, "Send /start to see the available commands.", f.api.lastTo(chat).Text)
}

func TestPlatformDisabled(t *testing.T) {
	f := newFixture(t, map[string]config.PlatformOverride{"ak": {Disabled: true}}, http.DefaultClient)
	const chat = 11

	f.send(textUpdate(chat, "/ak"))
	assert.Equal(t, "This platform is currently disabled.", f.api.lastTo(chat).Text)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestKGS_LoginChoiceFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login-with-password" {
			assert.NoError(t, r.ParseForm())
			if r.PostForm.Get("phone") == "9876543210" && r.PostForm.Get("password") == "hunter2" {
				fmt.Fprint(w, `{"token":"kgs-token"}`)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("authorization") != "Bearer kgs-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/user/v2/courses":
			fmt.Fprint(w, `[{"id":42,"title":"UPSC Foundation"}]`)
		case "/api/user/courses/42/v2-lessons":
			fmt.Fprint(w, `[{"id":1}]`)
		case "/api/lessons/1":
			fmt.Fprint(w, `{"videos":[{"name":"History 1: Harappa","video_url":"https://v.example/h1.m3u8"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := newFixture(t, map[string]config.PlatformOverride{"kgs": {BaseURL: srv.URL}}, srv.Client())
	const chat = 12

	f.send(textUpdate(chat, "/kgs"))
	f.send(textUpdate(chat, "3"))
	assert.Equal(t, "Invalid choice! Please enter 1 or 2.", f.api.lastTo(chat).Text)

	f.send(callbackUpdate(chat, telegram.CallbackLoginChoice+"1"))
	assert.Equal(t, "Please enter your User ID:", f.api.lastTo(chat).Text)

	f.send(textUpdate(chat, "9876543210"))
	assert.Equal(t, "Please enter your Password:", f.api.lastTo(chat).Text)

	secret := textUpdate(chat, "hunter2")
	f.send(secret)
	assert.Contains(t, f.api.deleted, secret.Message.ID)
	assert.Contains(t, f.api.lastTo(chat).Text, "42 - UPSC Foundation - Free")

	f.send(textUpdate(chat, "42"))
	f.h.Wait()

	docs := f.api.docs()
	require.Len(t, docs, 1)
	assert.Equal(t, "KGS_42.txt", docs[0].Name)
	assert.Equal(t, "=== Subject: UPSC Foundation ===\n\nHistory 1 Harappa: https://v.example/h1.m3u8\n", string(docs[0].Data))
	assert.Contains(t, docs[0].Caption, "Content Type: all")

	for _, m := range f.api.textsTo(auditChat) {
		assert.NotContains(t, m, "hunter2")
		assert.NotContains(t, m, "kgs-token")
		assert.NotContains(t, m, "9876543210")
	}
}

func TestHTML_Conversion(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/file-1.txt", r.URL.Path)
		fmt.Fprint(w, "=== Subject: Physics ===\n\n"+
			"Physics 1: https://cdn.x/p1.pdf\n"+
			"Physics 2: https://d1.example/vid9/master.mpd\n")
	}))
	defer files.Close()

	f := newFixture(t, nil, files.Client())
	f.api.fileURL = files.URL
	const chat = 13

	f.send(textUpdate(chat, "/html"))
	assert.Equal(t, "Please send your text file to convert to HTML.", f.api.lastTo(chat).Text)

	upload := textUpdate(chat, "")
	upload.Message.Document = &models.Document{FileID: "file-1", FileName: "physics.txt", FileSize: 64}
	f.send(upload)

	docs := f.api.docs()
	require.Len(t, docs, 1)
	assert.True(t, strings.HasPrefix(docs[0].Name, "converted_"))
	assert.True(t, strings.HasSuffix(docs[0].Name, ".html"))
	html := string(docs[0].Data)
	assert.Contains(t, html, "<title>physics</title>")
	assert.Contains(t, html, "player.example/vid9/master.m3u8")
	assert.Equal(t, 0, f.sessions.Len())
}

func TestHTML_RejectsNonText(t *testing.T) {
	f := newFixture(t, nil, http.DefaultClient)
	const chat = 14

	f.send(textUpdate(chat, "/html"))
	upload := textUpdate(chat, "")
	upload.Message.Document = &models.Document{FileID: "x", FileName: "photo.png", MimeType: "image/png"}
	f.send(upload)

	assert.Equal(t, "Please send a .txt file.", f.api.lastTo(chat).Text)
	assert.Empty(t, f.api.docs())
	_, ok := f.sessions.Get(chat)
	assert.True(t, ok)
}

func TestSweepExpired(t *testing.T) {
	cfg := &config.Config{}
	api := &fakeAPI{}
	sessions := service.NewSessionStore(time.Millisecond)
	h := handler.New(handler.Deps{
		Cfg:       cfg,
		Sessions:  sessions,
		Extractor: service.NewExtractorService(platform.NewRegistry(cfg, nil), http.DefaultClient, nil),
		Audit:     telegram.NewAuditLogger(api, cfg),
	})

	h.HandleUpdate(context.Background(), api, textUpdate(15, "/pw"))
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, h.SweepExpired(context.Background(), api))
	assert.Equal(t, "Conversation timed out. Please start again.", api.lastTo(15).Text)
	assert.Equal(t, 0, sessions.Len())
}

func TestRecoverPanic(t *testing.T) {
	f := newFixture(t, nil, http.DefaultClient)
	const chat = 16

	f.send(textUpdate(chat, "/pw"))
	require.Equal(t, 1, f.sessions.Len())

	f.h.RecoverPanic(f.api)(context.Background(), textUpdate(chat, "boom"), "nil map")
	assert.Equal(t, "An error occurred. Please try again later.", f.api.lastTo(chat).Text)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestStats_AdminOnly(t *testing.T) {
	f := newFixture(t, nil, http.DefaultClient)
	f.cfg.AdminIDs = []int64{21}

	f.send(textUpdate(20, "/cw"))
	f.send(textUpdate(20, "/stats"))
	assert.Equal(t, "Welcome to CareerWill Extractor!", strings.SplitN(f.api.lastTo(20).Text, "\n", 2)[0])

	f.send(textUpdate(21, "/stats"))
	stats := f.api.lastTo(21).Text
	assert.Contains(t, stats, "📊 Sessions: 1 (extracting: 0)")
	assert.Contains(t, stats, "cw: 1")
	assert.Contains(t, stats, "Extractions: 0 ok, 0 empty, 0 auth, 0 error")
}

type panickingExtractor struct {
	*service.ExtractorService
}

func (panickingExtractor) Extract(context.Context, string, string, platform.ExtractRequest) (*service.Extraction, error) {
	panic("walk exploded")
}

func TestExtraction_PanicEndsSession(t *testing.T) {
	srv := pwUpstream(t, oneBatch)
	f := newFixtureWith(t, map[string]config.PlatformOverride{"pw": {BaseURL: srv.URL}}, srv.Client(),
		func(s *service.ExtractorService) handler.Extractor { return panickingExtractor{s} })
	const chat = 17

	f.send(textUpdate(chat, "/pw"))
	f.send(textUpdate(chat, pwToken))
	f.send(textUpdate(chat, "B1"))
	f.send(callbackUpdate(chat, telegram.CallbackContentType+"notes"))
	f.h.Wait()

	assert.Equal(t, "An error occurred. Please try again later.", f.api.lastTo(chat).Text)
	assert.Equal(t, 0, f.sessions.Len())
	assert.Empty(t, f.api.docs())
	assert.Contains(t, strings.Join(f.api.textsTo(auditChat), "\n"), "walk exploded")

	// The chat can start over.
	f.send(textUpdate(chat, "/pw"))
	assert.Equal(t, "Send your PW authentication token:", f.api.lastTo(chat).Text)
}

func TestCallbacks_OnlyStarterMayPress(t *testing.T) {
	srv := pwUpstream(t, oneBatch)
	f := newFixture(t, map[string]config.PlatformOverride{"pw": {BaseURL: srv.URL}}, srv.Client())
	const chat, stranger = 18, 99

	f.send(textUpdate(chat, "/pw"))
	f.send(textUpdate(chat, pwToken))
	listing := f.api.lastTo(chat).Text

	f.send(callbackFrom(chat, stranger, telegram.CallbackBatch+"B1"))
	f.send(callbackFrom(chat, stranger, telegram.CallbackBatchPage+"1"))

	f.api.mu.Lock()
	answers := append([]string(nil), f.api.answers...)
	edits := len(f.api.edits)
	f.api.mu.Unlock()
	assert.Equal(t, []string{
		"These buttons belong to someone else's conversation.",
		"These buttons belong to someone else's conversation.",
	}, answers)
	assert.Zero(t, edits)
	assert.Equal(t, listing, f.api.lastTo(chat).Text)

	sess, ok := f.sessions.Get(chat)
	require.True(t, ok)
	assert.Equal(t, domain.StateBatch, sess.State)

	f.send(textUpdate(chat, "B1"))
	f.send(callbackFrom(chat, stranger, telegram.CallbackContentType+"notes"))
	f.h.Wait()
	assert.Empty(t, f.api.docs())
	sess, ok = f.sessions.Get(chat)
	require.True(t, ok)
	assert.Equal(t, domain.StateContentType, sess.State)
}
