package lifecycle

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

var allowedProofTypes = []string{"image/jpeg", "image/png"}

type ProofUpload struct {
	Filename string
	Body     io.Reader
}

// SubmitProof stores the file and moves WAITING_PAYMENT -> PENDING. The
// confirmation email is sent by the notifier from the outbox record.
func (s *Service) SubmitProof(ctx context.Context, id auth.Identity, txID uuid.UUID, up ProofUpload) (*domain.Transaction, error) {
	data, contentType, err := s.readProof(up)
	if err != nil {
		return nil, err
	}

	t, err := s.ownedTransaction(ctx, id, txID)
	if err != nil {
		return nil, err
	}
	if err := t.Status.CheckTransition(domain.StatusPending); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if s.opts.EnforceDeadline && now.After(t.PaymentDeadline) {
		return nil, domain.InvalidStatef("payment deadline passed at %s", t.PaymentDeadline.Format("2006-01-02 15:04:05 MST"))
	}

	ref, err := s.proofs.Save(ctx, Proof{
		TransactionID: t.ID,
		Filename:      up.Filename,
		ContentType:   contentType,
		Data:          data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "store payment proof")
	}

	reviewDeadline := now.Add(s.opts.ReviewWindow)
	queued := domain.NotificationQueued
	updated, err := s.transition(ctx, StatusUpdate{
		ID:                 t.ID,
		From:               domain.StatusWaitingPayment,
		To:                 domain.StatusPending,
		At:                 now,
		PaymentProof:       &ref,
		ProofUploadedAt:    &now,
		ReviewDeadline:     &reviewDeadline,
		NotificationStatus: &queued,
	}, domain.EventTransactionProofSubmitted, nil)
	if err != nil {
		if delErr := s.proofs.Delete(ctx, ref); delErr != nil {
			observability.LoggerFrom(ctx, s.logger).WithError(delErr).WithField("proof", ref).Warn("failed to remove orphaned payment proof")
		}
		return nil, err
	}

	observability.LoggerFrom(ctx, s.logger).WithField("transaction_id", t.ID).Info("payment proof submitted")
	s.record(ctx, "transaction.proof_submitted", id.ID, updated, map[string]interface{}{
		"proof":        ref,
		"content_type": contentType,
		"size":         len(data),
	})
	return updated, nil
}

func (s *Service) readProof(up ProofUpload) ([]byte, string, error) {
	if up.Body == nil {
		return nil, "", domain.Validationf("payment proof file is required")
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, s.opts.MaxProofBytes+1))
	if err != nil {
		return nil, "", domain.Validationf("failed to read payment proof: %v", err)
	}
	if len(data) == 0 {
		return nil, "", domain.Validationf("payment proof file is empty")
	}
	if int64(len(data)) > s.opts.MaxProofBytes {
		return nil, "", domain.Validationf("payment proof exceeds %d MB", s.opts.MaxProofBytes>>20)
	}
	mt := mimetype.Detect(data)
	for _, allowed := range allowedProofTypes {
		if mt.Is(allowed) {
			return data, allowed, nil
		}
	}
	return nil, "", domain.Validationf("payment proof must be a JPEG or PNG image, got %s", mt.String())
}

// OpenProof streams the stored proof to the owner or an admin.
func (s *Service) OpenProof(ctx context.Context, id auth.Identity, txID uuid.UUID) (io.ReadCloser, string, error) {
	t, err := s.Get(ctx, id, txID)
	if err != nil {
		return nil, "", err
	}
	if t.PaymentProof == nil {
		return nil, "", domain.NotFoundf("transaction %s has no payment proof", txID)
	}
	return s.proofs.Open(ctx, *t.PaymentProof)
}
