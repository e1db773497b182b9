package http

import (
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/lifecycle"
)

const proofField = "paymentProof"

func (h *Handlers) respondTransaction(w http.ResponseWriter, r *http.Request, status int, t *domain.Transaction) {
	events, err := h.txs.EventsFor(r.Context(), []domain.Transaction{*t})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"transaction": toTransactionView(t, events[t.EventID], h.now()),
	})
}

func (h *Handlers) respondPage(w http.ResponseWriter, r *http.Request, p lifecycle.Page) {
	events, err := h.txs.EventsFor(r.Context(), p.Transactions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	views := make([]transactionView, 0, len(p.Transactions))
	for i := range p.Transactions {
		t := &p.Transactions[i]
		views = append(views, toTransactionView(t, events[t.EventID], now))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
		"pagination":   newPagination(p.Page, p.Limit, p.Total),
	})
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in := lifecycle.CreateRequest{
		EventID:        req.EventID,
		CouponID:       req.CouponID,
		OriginalAmount: req.OriginalAmount,
		TotalAmount:    req.TotalAmount,
	}
	for _, sel := range req.Tickets {
		in.Tickets = append(in.Tickets, domain.TicketSelection{TicketTypeID: sel.TicketTypeID, Quantity: sel.Quantity})
	}

	t, err := h.txs.Create(r.Context(), identity(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondTransaction(w, r, http.StatusCreated, t)
}

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status, err := queryStatus(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, limit, err := queryPage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.txs.ListOwn(r.Context(), identity(r), status, page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondPage(w, r, p)
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.txs.Get(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondTransaction(w, r, http.StatusOK, t)
}

// UpdateTransaction is the buyer's status change; only CANCELLED is accepted.
func (h *Handlers) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.txs.UpdateBuyerStatus(r.Context(), identity(r), id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondTransaction(w, r, http.StatusOK, t)
}

func (h *Handlers) UploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxProofBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxProofBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, domain.Validationf("payment proof must be at most %d bytes", h.maxProofBytes))
			return
		}
		h.fail(w, r, domain.Validationf("expected a multipart form with a %s file", proofField))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(proofField)
	if err != nil {
		h.fail(w, r, domain.Validationf("%s file is required", proofField))
		return
	}
	defer file.Close()

	t, err := h.txs.SubmitProof(r.Context(), identity(r), id, lifecycle.ProofUpload{Filename: header.Filename, Body: file})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondTransaction(w, r, http.StatusOK, t)
}

func (h *Handlers) DownloadPaymentProof(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, contentType, err := h.txs.OpenProof(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WithError(err).WithField("transaction_id", id).Warn("proof download interrupted")
	}
}

func (h *Handlers) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	status, err := queryStatus(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, limit, err := queryPage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.txs.ListAll(r.Context(), identity(r), status, page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondPage(w, r, p)
}

func (h *Handlers) ReviewTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.txs.Review(r.Context(), identity(r), id, lifecycle.ReviewDecision{
		Status:          req.Status,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondTransaction(w, r, http.StatusOK, t)
}

func (h *Handlers) OrganizerTransactions(w http.ResponseWriter, r *http.Request) {
	status, err := queryStatus(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, limit, err := queryPage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.txs.OrganizerTransactions(r.Context(), identity(r), status, page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondPage(w, r, p)
}

func (h *Handlers) OrganizerStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.txs.OrganizerStats(r.Context(), identity(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": statsView{
		EventsCount:         s.EventsCount,
		TotalRevenue:        s.TotalRevenue,
		TicketsSold:         s.TicketsSold,
		ConfirmedCount:      s.ConfirmedCount,
		PendingTransactions: s.PendingTransactions,
	}})
}

func (h *Handlers) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.txs.History(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]auditView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditView{Action: e.Action, ActorID: e.ActorID, Data: e.Data, At: e.At})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": views})
}
