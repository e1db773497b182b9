package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/skip2/go-qrcode"
)

// TicketPayload is what the QR code carries. Sig is an HMAC-SHA256 over the
// other fields so gate staff can verify a ticket offline.
type TicketPayload struct {
	TicketID      string `json:"ticket_id"`
	TransactionID string `json:"transaction_id"`
	EventID       string `json:"event_id"`
	Sig           string `json:"sig"`
}

type TicketSigner struct {
	key []byte
}

func NewTicketSigner(key string) *TicketSigner {
	return &TicketSigner{key: []byte(key)}
}

func (s *TicketSigner) mac(p TicketPayload) string {
	m := hmac.New(sha256.New, s.key)
	fmt.Fprintf(m, "%s|%s|%s", p.TicketID, p.TransactionID, p.EventID)
	return hex.EncodeToString(m.Sum(nil))
}

func (s *TicketSigner) Sign(ticketID, transactionID, eventID string) TicketPayload {
	p := TicketPayload{TicketID: ticketID, TransactionID: transactionID, EventID: eventID}
	p.Sig = s.mac(p)
	return p
}

// Verify parses the scanned QR content and checks its signature.
func (s *TicketSigner) Verify(raw []byte) (TicketPayload, error) {
	var p TicketPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return TicketPayload{}, errors.Wrap(err, "decode ticket payload")
	}
	if !hmac.Equal([]byte(p.Sig), []byte(s.mac(p))) {
		return TicketPayload{}, errors.New("ticket signature mismatch")
	}
	return p, nil
}

// QRCode renders the signed payload as a 256px PNG.
func (s *TicketSigner) QRCode(p TicketPayload) ([]byte, error) {
	content, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}
