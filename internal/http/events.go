package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/catalog"
	"github.com/robertarktes/eventhub/internal/domain"
)

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, err := queryPage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	p, err := h.catalog.ListPublic(r.Context(), catalog.ListQuery{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeEventPage(w, p)
}

// OrganizerEvents lists the caller's own events, drafts included.
func (h *Handlers) OrganizerEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, err := queryPage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.catalog.ListOwn(r.Context(), identity(r), page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeEventPage(w, p)
}

func writeEventPage(w http.ResponseWriter, p domain.EventPage) {
	views := make([]*eventView, 0, len(p.Events))
	for i := range p.Events {
		views = append(views, toEventView(&p.Events[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events":     views,
		"pagination": newPagination(p.Page, p.Limit, p.Total),
	})
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var viewer *auth.Identity
	if who, ok := auth.FromContext(r.Context()); ok {
		viewer = &who
	}
	e, err := h.catalog.Get(r.Context(), viewer, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"event": toEventView(e)})
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in := catalog.EventInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
	}
	for _, tt := range req.TicketTypes {
		in.TicketTypes = append(in.TicketTypes, catalog.TicketTypeInput{Name: tt.Name, Price: tt.Price, Quantity: tt.Quantity})
	}
	e, err := h.catalog.CreateEvent(r.Context(), identity(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"event": toEventView(e)})
}

func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.catalog.Publish(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"event": toEventView(e)})
}

func (h *Handlers) SetEventApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req approvalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.catalog.SetApproval(r.Context(), identity(r), id, domain.ApprovalStatus(req.Approval))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"event": toEventView(e)})
}

func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.catalog.CreateCoupon(r.Context(), identity(r), catalog.CouponInput{
		Code:          req.Code,
		DiscountType:  domain.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		ExpiresAt:     req.ExpiresAt,
		MaxUses:       req.MaxUses,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"coupon": toCouponView(c)})
}

func (h *Handlers) LookupCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.LookupCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"coupon": toCouponView(c)})
}
