package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/notes"
	"github.com/hpungsan/murmur/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
//
// The web UI is the widget view: its search box drives the store's
// active filter, so the filter survives page reloads.
type Handlers struct {
	store    *notes.Store
	cfg      *config.Config
	renderer *Renderer
	log      *slog.Logger
}

// HandleList handles GET /notes. A q parameter replaces the active filter;
// an empty q clears it.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	if q, ok := r.URL.Query()["q"]; ok {
		h.store.SetFilter(q[0])
	}
	query := h.store.Filter()

	if wantsJSON(r) {
		result, err := ops.List(h.store, ops.ListInput{
			Query:  query,
			Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
			Offset: parseIntParam(r, "offset", 0),
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, result)
		return
	}

	visible := h.store.Visible()
	items := make([]note.Summary, 0, len(visible))
	for _, n := range visible {
		items = append(items, n.ToSummary())
	}

	total := h.store.Len()
	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.renderer.page("Notes"),
		Query:      query,
		Items:      items,
		Total:      total,
		MaxChars:   h.cfg.NoteMaxChars,
		Onboarding: total == 0,
	})
}

// HandleCreate handles POST /notes from the new-note form.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := ops.Create(r.Context(), h.store, ops.CreateInput{Content: r.FormValue("content")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Debug("note created", slog.String("id", result.ID))

	// HTMX request: redirect via HX-Redirect header
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/notes")
		w.WriteHeader(http.StatusCreated)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, result)
		return
	}

	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

// HandleDetail handles GET /notes/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(h.store, ops.FetchInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:     h.renderer.page(note.Preview(result.Content, 40)),
		Note:         result.Note,
		Chars:        result.Chars,
		RenderedHTML: renderMarkdown(result.Content),
	})
}

// HandleDelete handles DELETE /notes/{id} and POST /notes/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.store, ops.DeleteInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/notes")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
