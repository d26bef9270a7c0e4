// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/table"
)

const maxPageSize = 100

type Handler struct {
	service   *Service
	table     *table.Table[User]
	validator *validator.Validate
}

func NewHandler(service *Service, tbl *table.Table[User]) *Handler {
	return &Handler{
		service:   service,
		table:     tbl,
		validator: NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/bulk-delete", h.BulkDelete)
		r.Get("/{userID}", h.Get)
		r.Put("/{userID}", h.Update)
		r.Delete("/{userID}", h.Delete)
	})

	r.Route("/undo", func(r chi.Router) {
		r.Get("/{ticketID}", h.GetTicket)
		r.Post("/{ticketID}/cancel", h.CancelTicket)
	})
}

// List returns one page of the cached user list after search, filters and
// sort are applied.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	state, err := h.parseState(r)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	users, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err, "users")
		return
	}

	view := h.table.Compute(users, state)

	selected := make([]string, 0, len(view.Selected))
	for _, u := range view.Selected {
		selected = append(selected, u.ID)
	}

	core.OK(w, ListResponse{
		Items:                view.Rows,
		Page:                 view.PageIndex + 1,
		PageSize:             view.PageSize,
		Total:                view.Total,
		Filtered:             len(view.Filtered),
		TotalPages:           view.PageCount,
		Selected:             selected,
		Roles:                Roles(users),
		AllPageRowsSelected:  view.AllPageRowsSelected,
		SomePageRowsSelected: view.SomePageRowsSelected,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Detail(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err, "user")
		return
	}

	core.OK(w, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form := DefaultForm()
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	u, err := h.service.Create(r.Context(), form)
	if err != nil {
		writeError(w, err, "user")
		return
	}

	core.Created(w, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	u, err := h.service.Update(r.Context(), chi.URLParam(r, "userID"), patch)
	if err != nil {
		writeError(w, err, "user")
		return
	}

	core.OK(w, u)
}

// Delete opens an undo window for the user. With immediate=true the user is
// deleted right away instead.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	if immediate, _ := strconv.ParseBool(r.URL.Query().Get("immediate")); immediate {
		if err := h.service.Delete(r.Context(), id); err != nil {
			writeError(w, err, "user")
			return
		}
		core.NoContent(w)
		return
	}

	h.requestDelete(w, r, []string{id})
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	h.requestDelete(w, r, req.IDs)
}

func (h *Handler) requestDelete(w http.ResponseWriter, r *http.Request, ids []string) {
	ticket, err := h.service.RequestDelete(r.Context(), ids...)
	if err != nil {
		writeError(w, err, "user")
		return
	}

	core.Accepted(w, ticket.Info())
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.Ticket(chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, err, "undo ticket")
		return
	}

	core.OK(w, ticket.Info())
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.CancelDelete(chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, err, "undo ticket")
		return
	}

	core.OK(w, ticket.Info())
}

func (h *Handler) parseState(r *http.Request) (table.State, error) {
	q := r.URL.Query()
	state := table.NewState().SetSearch(q.Get("search"))

	if raw := q.Get("role"); raw != "" {
		var roles []Role
		for _, v := range splitList(raw) {
			role := Role(v)
			if !role.Valid() {
				return state, errors.New("role must be one of: Admin User Guest")
			}
			roles = append(roles, role)
		}
		state = state.SetFilter(ColumnRole, roles)
	}

	if raw := q.Get("active"); raw != "" {
		var flags []bool
		for _, v := range splitList(raw) {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return state, errors.New("active must be true or false")
			}
			flags = append(flags, b)
		}
		state = state.SetFilter(ColumnActive, flags)
	}

	if raw := q.Get("created"); raw != "" {
		if _, err := time.Parse(table.DayLayout, raw); err != nil {
			return state, errors.New("created must be a date in YYYY-MM-DD form")
		}
		state = state.SetFilter(ColumnCreatedAt, raw)
	}

	if col := q.Get("sort"); col != "" {
		if !h.table.Sortable(col) {
			return state, fmt.Errorf("cannot sort by %q", col)
		}
		dir := table.Direction(q.Get("dir"))
		if dir == table.Unsorted {
			dir = table.Ascending
		}
		if !dir.Valid() {
			return state, errors.New("dir must be asc or desc")
		}
		state = state.SetSort(col, dir)
	}

	pageSize := min(parseIntQuery(r, "page_size", table.DefaultPageSize), maxPageSize)
	state = state.SetPageSize(pageSize)
	state = state.SetPage(parseIntQuery(r, "page", 1) - 1)

	for _, id := range splitList(q.Get("selected")) {
		state = state.SelectRow(id, true)
	}

	return state, nil
}

func writeError(w http.ResponseWriter, err error, resource string) {
	core.JSONError(w, core.FromError(err, resource))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
