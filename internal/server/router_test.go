package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"crm-pipeline/internal/config"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/handlers"
	"crm-pipeline/internal/models"
	"crm-pipeline/internal/server"
	"crm-pipeline/internal/services/activity"
	"crm-pipeline/internal/services/assignment"
	"crm-pipeline/internal/services/column"
	"crm-pipeline/internal/services/interaction"
	"crm-pipeline/internal/services/lead"
	"crm-pipeline/internal/services/timeline"
	"crm-pipeline/internal/testutil"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testPassword = "Secret123!"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ============================================================================
// TEST HELPERS
// ============================================================================

type env struct {
	db     *gorm.DB
	hub    *events.Hub
	router *gin.Engine
	fx     *testutil.Fixture
	viewer *models.User
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	hub := events.NewHub(16)
	fx := testutil.NewFixture(t, db, "acme")
	viewer := testutil.CreateUser(t, db, fx.Tenant.ID, "acme-viewer", models.RoleViewer)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if err := db.Model(&models.User{}).Where("1 = 1").Update("password_hash", string(hash)).Error; err != nil {
		t.Fatalf("Failed to set passwords: %v", err)
	}

	columns := column.NewService(db, hub, column.DefaultCatalog())
	if err := columns.ProvisionDefaults(context.Background(), fx.Tenant.ID); err != nil {
		t.Fatalf("Failed to provision columns: %v", err)
	}

	h := handlers.New(handlers.Deps{
		DB:           db,
		Columns:      columns,
		Leads:        lead.NewService(db, hub, 20),
		Activities:   activity.NewService(db, hub, 20),
		Assignments:  assignment.NewService(db, hub),
		Interactions: interaction.NewService(db, hub, 20),
		Timeline:     timeline.NewService(db),
		Hub:          hub,
	})
	cfg := &config.Config{SessionSecret: "test-secret"}

	return &env{
		db:     db,
		hub:    hub,
		router: server.NewRouter(cfg, db, h),
		fx:     fx,
		viewer: viewer,
	}
}

// login returns the session cookie for username.
func (e *env) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	rec := e.do(t, nil, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "crm_session" {
			return c
		}
	}
	t.Fatal("Login did not set a session cookie")
	return nil
}

func (e *env) do(t *testing.T, cookie *http.Cookie, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if body := decode[errorBody](t, rec); body.Error != code {
		t.Errorf("Expected error %q, got %q", code, body.Error)
	}
}

func (e *env) systemLane(t *testing.T, name string) *models.Column {
	t.Helper()
	var c models.Column
	if err := e.db.Where("tenant_id = ? AND name = ?", e.fx.Tenant.ID, name).First(&c).Error; err != nil {
		t.Fatalf("Lane %q not found: %v", name, err)
	}
	return &c
}

func (e *env) createLead(t *testing.T, cookie *http.Cookie) *models.Lead {
	t.Helper()
	rec := e.do(t, cookie, http.MethodPost, "/leads", map[string]any{
		"contactId": e.fx.Contact.ID,
		"title":     "Fleet renewal",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create lead failed: %d %s", rec.Code, rec.Body.String())
	}
	return decode[*models.Lead](t, rec)
}

// ============================================================================
// AUTH TESTS
// ============================================================================

func TestHealth(t *testing.T) {
	t.Parallel()
	e := setup(t)

	rec := e.do(t, nil, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("Expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestLogin_BadPassword(t *testing.T) {
	t.Parallel()
	e := setup(t)

	rec := e.do(t, nil, http.MethodPost, "/login", map[string]string{
		"username": e.fx.Admin.Username,
		"password": "wrong",
	})
	expectError(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	e := setup(t)

	for _, path := range []string{"/me", "/leads", "/lead-columns", "/interactions"} {
		rec := e.do(t, nil, http.MethodGet, path, nil)
		expectError(t, rec, http.StatusUnauthorized, "unauthorized")
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)

	rec := e.do(t, cookie, http.MethodGet, "/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		User models.User `json:"user"`
	}](t, rec)
	if body.User.ID != e.fx.UserA.ID {
		t.Errorf("Expected user %d, got %d", e.fx.UserA.ID, body.User.ID)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("Expected password hash to stay out of the response")
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)

	rec := e.do(t, cookie, http.MethodPost, "/logout", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "crm_session" {
			cleared = c
		}
	}
	if cleared == nil {
		t.Fatal("Expected logout to rewrite the session cookie")
	}
	rec = e.do(t, cleared, http.MethodGet, "/me", nil)
	expectError(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	e := setup(t)
	viewer := e.login(t, e.viewer.Username)
	sales := e.login(t, e.fx.UserA.Username)

	rec := e.do(t, viewer, http.MethodPost, "/leads", map[string]any{"contactId": e.fx.Contact.ID})
	expectError(t, rec, http.StatusForbidden, "forbidden")

	rec = e.do(t, sales, http.MethodPost, "/lead-columns", map[string]any{"name": "Custom"})
	expectError(t, rec, http.StatusForbidden, "forbidden")

	// reads stay open to every role
	rec = e.do(t, viewer, http.MethodGet, "/leads", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected viewer to list leads, got %d", rec.Code)
	}
}

// ============================================================================
// LEAD TESTS
// ============================================================================

func TestLeads_CreateMoveAndHistory(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)

	created := e.createLead(t, cookie)
	if created.Status != models.StatusNew || created.Temperature != models.TemperatureWarm {
		t.Errorf("Expected new/warm defaults, got %s/%s", created.Status, created.Temperature)
	}

	contacted := e.systemLane(t, "Contacted")
	rec := e.do(t, cookie, http.MethodPut, fmt.Sprintf("/leads/%d/move", created.ID), map[string]any{
		"columnId": contacted.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Move failed: %d %s", rec.Code, rec.Body.String())
	}
	moved := decode[*models.Lead](t, rec)
	if moved.Status != models.StatusContacted {
		t.Errorf("Expected status contacted, got %s", moved.Status)
	}

	rec = e.do(t, cookie, http.MethodGet, fmt.Sprintf("/lead-status-history?leadId=%d&activityType=status", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("History failed: %d %s", rec.Code, rec.Body.String())
	}
	page := decode[struct {
		Items      []models.Activity `json:"items"`
		TotalCount int64             `json:"totalCount"`
		HasMore    bool              `json:"hasMore"`
	}](t, rec)
	if page.TotalCount != 1 || len(page.Items) != 1 {
		t.Fatalf("Expected one status activity, got %d", page.TotalCount)
	}
	if page.Items[0].PreviousStatus != models.StatusNew {
		t.Errorf("Expected previous status new, got %v", page.Items[0].PreviousStatus)
	}
}

func TestLeads_ListShape(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)
	e.createLead(t, cookie)
	e.createLead(t, cookie)

	rec := e.do(t, cookie, http.MethodGet, "/leads?searchParam=maria", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		Leads   []models.Lead `json:"leads"`
		Count   int64         `json:"count"`
		HasMore bool          `json:"hasMore"`
	}](t, rec)
	if body.Count != 2 || len(body.Leads) != 2 || body.HasMore {
		t.Errorf("Expected 2 leads without more, got count=%d len=%d hasMore=%v", body.Count, len(body.Leads), body.HasMore)
	}
}

func TestLeads_ErrorMapping(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)
	created := e.createLead(t, cookie)

	other := testutil.NewFixture(t, e.db, "globex")
	foreign := testutil.CreateLead(t, e.db, other.Tenant.ID, other.Contact.ID, other.Admin.ID, nil)

	t.Run("other tenant is not found", func(t *testing.T) {
		rec := e.do(t, cookie, http.MethodGet, fmt.Sprintf("/leads/%d", foreign.ID), nil)
		expectError(t, rec, http.StatusNotFound, "not_found")
	})

	t.Run("bad id", func(t *testing.T) {
		rec := e.do(t, cookie, http.MethodGet, "/leads/abc", nil)
		expectError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("invalid probability", func(t *testing.T) {
		rec := e.do(t, cookie, http.MethodPost, "/leads", map[string]any{
			"contactId":   e.fx.Contact.ID,
			"probability": 150,
		})
		expectError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("move without column", func(t *testing.T) {
		rec := e.do(t, cookie, http.MethodPut, fmt.Sprintf("/leads/%d/move", created.ID), map[string]any{})
		expectError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("unknown activity kind", func(t *testing.T) {
		rec := e.do(t, cookie, http.MethodPost, fmt.Sprintf("/lead-status-history/%d", created.ID), map[string]any{
			"activityType": "fax",
		})
		expectError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("status outside the enum", func(t *testing.T) {
		rec := e.do(t, cookie, http.MethodPost, fmt.Sprintf("/lead-status-history/%d", created.ID), map[string]any{
			"activityType": "status",
			"status":       "bogus",
		})
		expectError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("reassign to current owner", func(t *testing.T) {
		path := fmt.Sprintf("/leads/%d/assign", created.ID)
		rec := e.do(t, cookie, http.MethodPost, path, map[string]any{"assignedToId": e.fx.UserB.ID})
		if rec.Code != http.StatusOK {
			t.Fatalf("First assign failed: %d %s", rec.Code, rec.Body.String())
		}
		rec = e.do(t, cookie, http.MethodPost, path, map[string]any{"assignedToId": e.fx.UserB.ID})
		expectError(t, rec, http.StatusConflict, "conflict")
	})
}

func TestLeads_Delete(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)
	created := e.createLead(t, cookie)

	rec := e.do(t, cookie, http.MethodDelete, fmt.Sprintf("/leads/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	rec = e.do(t, cookie, http.MethodGet, fmt.Sprintf("/leads/%d", created.ID), nil)
	expectError(t, rec, http.StatusNotFound, "not_found")
}

// ============================================================================
// COLUMN TESTS
// ============================================================================

func TestColumns_ErrorMapping(t *testing.T) {
	t.Parallel()
	e := setup(t)
	admin := e.login(t, e.fx.Admin.Username)

	rec := e.do(t, admin, http.MethodPost, "/lead-columns", map[string]any{"name": "new"})
	expectError(t, rec, http.StatusConflict, "conflict")

	system := e.systemLane(t, "Lost")
	rec = e.do(t, admin, http.MethodPut, fmt.Sprintf("/lead-columns/%d", system.ID), map[string]any{"name": "Gone"})
	expectError(t, rec, http.StatusUnprocessableEntity, "integrity_error")

	rec = e.do(t, admin, http.MethodDelete, fmt.Sprintf("/lead-columns/%d", system.ID), nil)
	expectError(t, rec, http.StatusUnprocessableEntity, "integrity_error")

	rec = e.do(t, admin, http.MethodPost, "/lead-columns/from-template", map[string]any{"code": "nope"})
	expectError(t, rec, http.StatusBadRequest, "validation_error")
}

func TestColumns_CreateAndReorder(t *testing.T) {
	t.Parallel()
	e := setup(t)
	admin := e.login(t, e.fx.Admin.Username)

	rec := e.do(t, admin, http.MethodPost, "/lead-columns", map[string]any{"name": "Demo", "pipeline": "sales", "status": "proposal"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d %s", rec.Code, rec.Body.String())
	}
	demo := decode[*models.Column](t, rec)

	rec = e.do(t, admin, http.MethodPost, "/lead-columns", map[string]any{"name": "Trial", "pipeline": "sales", "status": "negotiation"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d %s", rec.Code, rec.Body.String())
	}
	trial := decode[*models.Column](t, rec)

	rec = e.do(t, admin, http.MethodPut, "/lead-columns/reorder", map[string]any{
		"columns": []map[string]any{
			{"id": demo.ID, "order": trial.Order},
			{"id": trial.ID, "order": demo.Order},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Reorder failed: %d %s", rec.Code, rec.Body.String())
	}

	var reloaded models.Column
	if err := e.db.First(&reloaded, demo.ID).Error; err != nil {
		t.Fatalf("Failed to reload column: %v", err)
	}
	if reloaded.Order != trial.Order {
		t.Errorf("Expected order %d, got %d", trial.Order, reloaded.Order)
	}

	rec = e.do(t, admin, http.MethodGet, "/lead-columns/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Templates failed: %d", rec.Code)
	}
	if templates := decode[[]column.Template](t, rec); len(templates) == 0 {
		t.Error("Expected the template catalog to be listed")
	}
}

// ============================================================================
// INTERACTION & TIMELINE TESTS
// ============================================================================

func TestInteractions_RecordAndTimeline(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserA.Username)
	created := e.createLead(t, cookie)

	rec := e.do(t, cookie, http.MethodPost, fmt.Sprintf("/leads/%d/interactions", created.ID), map[string]any{
		"type":     "message",
		"category": "whatsapp",
		"notes":    "Hi, still interested",
		"messageData": map[string]any{
			"platform":  "whatsapp",
			"direction": "in",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Record interaction failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, cookie, http.MethodPost, fmt.Sprintf("/lead-status-history/%d", created.ID), map[string]any{
		"activityType": "note",
		"notes":        "Called back",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Record note failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, cookie, http.MethodGet, fmt.Sprintf("/interactions?leadId=%d&type=message", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("List interactions failed: %d", rec.Code)
	}
	page := decode[struct {
		TotalCount int64 `json:"totalCount"`
	}](t, rec)
	if page.TotalCount != 1 {
		t.Errorf("Expected 1 interaction, got %d", page.TotalCount)
	}

	rec = e.do(t, cookie, http.MethodGet, fmt.Sprintf("/lead-status-history/timeline/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Timeline failed: %d", rec.Code)
	}
	items := decode[[]timeline.Item](t, rec)
	if len(items) != 2 {
		t.Fatalf("Expected 2 timeline items, got %d", len(items))
	}

	rec = e.do(t, cookie, http.MethodPost, fmt.Sprintf("/leads/%d/interactions", created.ID), map[string]any{
		"type": "message",
	})
	expectError(t, rec, http.StatusBadRequest, "validation_error")
}

func TestFollowers(t *testing.T) {
	t.Parallel()
	e := setup(t)
	cookie := e.login(t, e.fx.UserB.Username)
	created := e.createLead(t, cookie)
	path := fmt.Sprintf("/leads/%d/follow", created.ID)

	if rec := e.do(t, cookie, http.MethodPost, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("Follow failed: %d %s", rec.Code, rec.Body.String())
	}

	rec := e.do(t, cookie, http.MethodGet, "/followed-leads", nil)
	if leads := decode[[]models.Lead](t, rec); len(leads) != 1 || leads[0].ID != created.ID {
		t.Errorf("Expected the followed lead, got %+v", leads)
	}

	if rec := e.do(t, cookie, http.MethodDelete, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("Unfollow failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, cookie, http.MethodDelete, path, nil)
	expectError(t, rec, http.StatusNotFound, "not_found")
}

// ============================================================================
// LIVE CHANNEL TESTS
// ============================================================================

func TestLive_StreamsTenantEvents(t *testing.T) {
	t.Parallel()
	e := setup(t)
	admin := e.login(t, e.fx.Admin.Username)

	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Add("Cookie", admin.String())
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live", &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.CloseNow()

	// the server subscribes right after the upgrade
	deadline := time.Now().Add(2 * time.Second)
	for e.hub.SubscriberCount(e.fx.Tenant.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Live handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := e.do(t, admin, http.MethodPost, "/lead-columns", map[string]any{"name": "Demo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d %s", rec.Code, rec.Body.String())
	}

	var msg struct {
		Topic  string          `json:"topic"`
		Action string          `json:"action"`
		Entity json.RawMessage `json:"entity"`
	}
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	if msg.Topic != string(events.TopicColumn) || msg.Action != string(events.ActionCreate) {
		t.Errorf("Expected lead-column/create, got %s/%s", msg.Topic, msg.Action)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestLive_RequiresLogin(t *testing.T) {
	t.Parallel()
	e := setup(t)

	rec := e.do(t, nil, http.MethodGet, "/live", nil)
	expectError(t, rec, http.StatusUnauthorized, "unauthorized")
}
