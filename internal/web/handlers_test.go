package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/db"
	"github.com/hpungsan/murmur/internal/logging"
	"github.com/hpungsan/murmur/internal/notes"
)

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	store := notes.New(db.NewKV(database), notes.WithLocale(cfg.Locale), notes.WithMaxChars(cfg.NoteMaxChars))
	store.Load(context.Background())

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		store:    store,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, "test", logging.Discard()),
		log:      logging.Discard(),
	}
}

// seedNote stores a note and returns its ID.
func seedNote(t *testing.T, h *Handlers, content string) string {
	t.Helper()
	n, err := h.store.Create(context.Background(), content)
	if err != nil {
		t.Fatalf("seed note %q: %v", content, err)
	}
	return n.ID
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "Comprar pão")
	seedNote(t, h, "Ligar para o dentista")

	req := httptest.NewRequest("GET", "/notes", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	first := strings.Index(body, "Ligar para o dentista")
	second := strings.Index(body, "Comprar pão")
	if first < 0 || second < 0 {
		t.Fatal("expected both notes in response")
	}
	if first > second {
		t.Error("expected newest note first")
	}
	if !strings.Contains(body, "<html") {
		t.Error("expected full page layout")
	}
}

func TestHandleList_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/notes", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No notes yet") {
		t.Error("expected onboarding prompt for empty collection")
	}
}

func TestHandleList_FilterPersists(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "Comprar LEITE")
	seedNote(t, h, "Reunião às 10h")

	req := httptest.NewRequest("GET", "/notes?q=leite", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Comprar LEITE") {
		t.Error("expected matching note in filtered results")
	}
	if strings.Contains(body, "Reunião") {
		t.Error("did not expect non-matching note in filtered results")
	}

	// No q parameter keeps the active filter
	rec = httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest("GET", "/notes", nil))
	if strings.Contains(rec.Body.String(), "Reunião") {
		t.Error("filter should persist across requests")
	}
	if !strings.Contains(rec.Body.String(), `value="leite"`) {
		t.Error("expected search box to show the active filter")
	}

	// Empty q clears it
	rec = httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest("GET", "/notes?q=", nil))
	if !strings.Contains(rec.Body.String(), "Reunião") {
		t.Error("empty q should clear the filter")
	}
}

func TestHandleList_NoMatches(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "alpha")

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest("GET", "/notes?q=zzz", nil))

	if !strings.Contains(rec.Body.String(), "No notes match") {
		t.Error("expected no-match message")
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "htmx note")

	req := httptest.NewRequest("GET", "/notes", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("HTMX request should not include layout")
	}
	if !strings.Contains(body, "htmx note") {
		t.Error("expected note in content block")
	}
}

func TestHandleList_JSON(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "one")
	seedNote(t, h, "two")
	seedNote(t, h, "three")

	req := httptest.NewRequest("GET", "/notes?limit=2", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var resp struct {
		Items []struct {
			Preview string `json:"preview"`
		} `json:"items"`
		Pagination struct {
			HasMore bool `json:"has_more"`
			Total   int  `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Preview != "three" {
		t.Errorf("items = %+v", resp.Items)
	}
	if !resp.Pagination.HasMore || resp.Pagination.Total != 3 {
		t.Errorf("pagination = %+v", resp.Pagination)
	}
}

// --- HandleCreate ---

func TestHandleCreate_DefaultRedirect(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleCreate(rec, postForm("/notes", url.Values{"content": {"nova nota"}}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/notes" {
		t.Errorf("Location = %q, want /notes", loc)
	}
	if h.store.Len() != 1 {
		t.Errorf("store has %d notes, want 1", h.store.Len())
	}
}

func TestHandleCreate_JSON(t *testing.T) {
	h := setupTest(t)

	req := postForm("/notes", url.Values{"content": {"json note"}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if _, ok := h.store.Get(resp["id"].(string)); !ok {
		t.Error("created note not in store")
	}
}

func TestHandleCreate_HtmxRequest(t *testing.T) {
	h := setupTest(t)

	req := postForm("/notes", url.Values{"content": {"htmx"}})
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)

	if got := rec.Header().Get("HX-Redirect"); got != "/notes" {
		t.Errorf("HX-Redirect = %q, want /notes", got)
	}
}

func TestHandleCreate_Blank(t *testing.T) {
	h := setupTest(t)

	req := postForm("/notes", url.Values{"content": {"  \n "}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if h.store.Len() != 0 {
		t.Error("blank note should not be stored")
	}
}

func TestHandleCreate_TooLarge(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleCreate(rec, postForm("/notes", url.Values{"content": {strings.Repeat("x", h.cfg.NoteMaxChars+1)}}))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t)
	id := seedNote(t, h, "**importante**\n\n<script>alert(1)</script>")

	req := httptest.NewRequest("GET", "/notes/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>importante</strong>") {
		t.Error("expected rendered markdown")
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("raw HTML in notes must not be rendered")
	}
	if !strings.Contains(body, id) {
		t.Error("expected note id in page")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/notes/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "note not found") {
		t.Error("expected error page message")
	}
}

// --- HandleDelete ---

func TestHandleDelete_HtmxRequest(t *testing.T) {
	h := setupTest(t)
	id := seedNote(t, h, "del-htmx")

	req := httptest.NewRequest("DELETE", "/notes/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/notes" {
		t.Errorf("HX-Redirect = %q, want /notes", got)
	}
	if h.store.Len() != 0 {
		t.Error("note should be deleted")
	}
}

func TestHandleDelete_JSONRequest(t *testing.T) {
	h := setupTest(t)
	keep := seedNote(t, h, "keep")
	id := seedNote(t, h, "del-json")

	req := httptest.NewRequest("DELETE", "/notes/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("Accept", "text/html, application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted"] != true {
		t.Errorf("deleted = %v, want true", resp["deleted"])
	}
	if resp["id"] != id {
		t.Errorf("id = %v, want %s", resp["id"], id)
	}
	if _, ok := h.store.Get(keep); !ok {
		t.Error("other notes must be kept")
	}
}

func TestHandleDelete_UnknownIDIsNoop(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "survivor")

	req := httptest.NewRequest("DELETE", "/notes/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted"] != false {
		t.Errorf("deleted = %v, want false", resp["deleted"])
	}
	if h.store.Len() != 1 {
		t.Error("unknown id must not change the collection")
	}
}

func TestHandleDelete_EmptyID(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("DELETE", "/notes/", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Routing ---

// serverHandler returns the middleware chain NewServer installs.
func serverHandler(t *testing.T, h *Handlers) http.Handler {
	t.Helper()
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}
	return securityHeaders(h.sameOrigin(h.routes(static)))
}

func TestRoutes_FormDeleteAndRedirect(t *testing.T) {
	h := setupTest(t)
	id := seedNote(t, h, "via form")
	handler := serverHandler(t, h)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm("/notes/"+id+"/delete", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if h.store.Len() != 0 {
		t.Error("form delete should remove the note")
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/notes" {
		t.Errorf("root: status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/static/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("static: status = %d, want 200", rec.Code)
	}
}

func TestRoutes_CrossSiteWritesRejected(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		json   bool
	}{
		{"cross-site fetch metadata", "Sec-Fetch-Site", "cross-site", false},
		{"same-site fetch metadata", "Sec-Fetch-Site", "same-site", false},
		{"foreign origin", "Origin", "https://attacker.example", false},
		{"foreign origin json", "Origin", "http://localhost:9999", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			id := seedNote(t, h, "keep me")
			handler := serverHandler(t, h)

			del := postForm("/notes/"+id+"/delete", nil)
			del.Header.Set(tt.header, tt.value)
			if tt.json {
				del.Header.Set("Accept", "application/json")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, del)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("delete: status = %d, want 403", rec.Code)
			}
			if tt.json && !strings.Contains(rec.Body.String(), `"FORBIDDEN"`) {
				t.Errorf("delete: body = %s, want FORBIDDEN code", rec.Body.String())
			}

			create := postForm("/notes", url.Values{"content": {"planted"}})
			create.Header.Set(tt.header, tt.value)
			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, create)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("create: status = %d, want 403", rec.Code)
			}

			if h.store.Len() != 1 {
				t.Errorf("store has %d notes, want 1", h.store.Len())
			}
		})
	}
}

func TestRoutes_SameOriginWritesAllowed(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
	}{
		{"same-origin fetch metadata", "Sec-Fetch-Site", "same-origin"},
		{"user-initiated", "Sec-Fetch-Site", "none"},
		{"matching origin", "Origin", "http://example.com"},
		{"no headers", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			id := seedNote(t, h, "delete me")
			handler := serverHandler(t, h)

			// httptest requests target example.com
			req := postForm("/notes/"+id+"/delete", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want 303", rec.Code)
			}
			if h.store.Len() != 0 {
				t.Error("note should be deleted")
			}
		})
	}
}

func TestRoutes_CrossSiteReadsAllowed(t *testing.T) {
	h := setupTest(t)
	seedNote(t, h, "visible")

	req := httptest.NewRequest("GET", "/notes", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	serverHandler(t, h).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestNewServer(t *testing.T) {
	h := setupTest(t)

	srv, err := NewServer(h.store, h.cfg, "test", "127.0.0.1", 8765, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if srv.Addr != "127.0.0.1:8765" {
		t.Errorf("Addr = %q", srv.Addr)
	}
}

// --- Error rendering ---

func TestErrorRendering_HtmxFragment(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/notes/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	body := rec.Body.String()
	if !strings.HasPrefix(body, `<div class="error-message">`) {
		t.Errorf("expected error fragment, got %q", body)
	}
}

func TestErrorRendering_JSONError(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/notes/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	var resp map[string]map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["error"]["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", resp["error"]["code"])
	}
	if resp["error"]["status"] != float64(404) {
		t.Errorf("status = %v, want 404", resp["error"]["status"])
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=abc", 20},
		{"limit=-1", -1},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/notes?"+tt.query, nil)
		if got := parseIntParam(req, "limit", 20); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestFormatChars(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := formatChars(tt.n); got != tt.want {
			t.Errorf("formatChars(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
