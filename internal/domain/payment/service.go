package payment

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/midtrans"
)

// Gateway is the slice of the payment gateway client the service needs.
type Gateway interface {
	CreateSnapTransaction(ctx context.Context, orderID string, grossAmount decimal.Decimal, customerName, customerEmail string, items []midtrans.ItemDetail) (*midtrans.SnapResponse, error)
	ChargeBankTransfer(ctx context.Context, orderID, bank string, grossAmount decimal.Decimal) (*midtrans.TransactionResponse, error)
	TransactionStatus(ctx context.Context, orderID string) (*midtrans.TransactionResponse, error)
}

// AppointmentChecker verifies that a referenced appointment exists in the
// current branch. Kept as a one-method interface so the payment package does
// not import the appointment domain.
type AppointmentChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service owns the payment lifecycle: creation, gateway initiation,
// notification reconciliation and status polling.
type Service struct {
	repo     Repository
	appts    AppointmentChecker
	gateway  Gateway
	verifier *SignatureVerifier
	log      zerolog.Logger
}

func NewService(repo Repository, appts AppointmentChecker, gateway Gateway, verifier *SignatureVerifier, log zerolog.Logger) *Service {
	return &Service{repo: repo, appts: appts, gateway: gateway, verifier: verifier, log: log}
}

// CreatePaymentInput carries the fields needed to open a payment.
type CreatePaymentInput struct {
	AppointmentID int64           `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

// SnapInput initiates a Snap checkout. When PaymentID is zero a new payment
// is created from the embedded fields; otherwise the existing payment is
// reused, which is how a client retries after a gateway failure.
type SnapInput struct {
	PaymentID int64 `json:"payment_id"`
	CreatePaymentInput
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []ItemInput `json:"items"`
}

// BankTransferInput initiates a virtual account charge.
type BankTransferInput struct {
	PaymentID int64 `json:"payment_id"`
	CreatePaymentInput
	Bank string `json:"bank"`
}

// ItemInput is one line item to attach to a payment.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Notification is the gateway's server-to-server callback body.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

// CreatePayment validates the request and records a pending payment. No
// gateway call is made.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if in.AppointmentID <= 0 {
		return nil, apperr.Validation("appointment_id", "must reference an appointment")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be greater than zero")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return nil, apperr.Validation("payment_method", "must not be empty")
	}

	ok, err := s.appts.Exists(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("appointment", strconv.FormatInt(in.AppointmentID, 10))
	}

	p := &Payment{
		AppointmentID: in.AppointmentID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Status:        StatusPending,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// resolveForGateway returns the payment a gateway call should run against:
// the existing one when paymentID is set, otherwise a freshly created
// pending payment. A payment that already carries a transaction identifier
// is rejected so the gateway never sees the same order twice.
func (s *Service) resolveForGateway(ctx context.Context, paymentID int64, in CreatePaymentInput) (*Payment, error) {
	if paymentID == 0 {
		return s.CreatePayment(ctx, in)
	}

	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.TransactionID != nil {
		return nil, apperr.Conflict("payment already has a gateway transaction")
	}
	if p.Status == StatusPaid {
		return nil, apperr.Conflict("payment is already paid")
	}
	return p, nil
}

// CreateSnapPayment opens (or reuses) a payment and creates a Snap checkout
// session for it. On gateway failure the payment row survives as pending
// with no transaction identifier, so the client can retry against the same
// payment id.
func (s *Service) CreateSnapPayment(ctx context.Context, in SnapInput) (*Payment, *midtrans.SnapResponse, error) {
	p, err := s.resolveForGateway(ctx, in.PaymentID, in.CreatePaymentInput)
	if err != nil {
		return nil, nil, err
	}

	// Items are recorded on the first attempt only; a retry re-sending the
	// same payload forwards the items already stored instead of appending
	// them again.
	if in.PaymentID == 0 {
		for _, it := range in.Items {
			if _, err := s.AddItem(ctx, p.ID, it); err != nil {
				return nil, nil, err
			}
		}
	}
	details, err := s.itemDetails(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}

	snap, err := s.gateway.CreateSnapTransaction(ctx, p.OrderID(), p.Amount, in.CustomerName, in.CustomerEmail, details)
	if err != nil {
		return p, nil, err
	}

	applied, err := s.repo.SetTransactionID(ctx, p.ID, snap.Token)
	if err != nil {
		return p, nil, err
	}
	if !applied {
		// A concurrent attempt won the race after our initial check.
		s.log.Warn().Int64("payment_id", p.ID).Msg("transaction id already recorded by concurrent request")
		return nil, nil, apperr.Conflict("payment already has a gateway transaction")
	}
	p.TransactionID = &snap.Token

	return p, snap, nil
}

// CreateBankTransferPayment opens (or reuses) a payment and charges it as a
// bank transfer, returning the issued virtual account numbers. The gateway's
// transaction id and reconciled status are recorded before returning.
func (s *Service) CreateBankTransferPayment(ctx context.Context, in BankTransferInput) (*Payment, *midtrans.TransactionResponse, error) {
	if strings.TrimSpace(in.Bank) == "" {
		return nil, nil, apperr.Validation("bank", "must not be empty")
	}

	p, err := s.resolveForGateway(ctx, in.PaymentID, in.CreatePaymentInput)
	if err != nil {
		return nil, nil, err
	}

	resp, err := s.gateway.ChargeBankTransfer(ctx, p.OrderID(), in.Bank, p.Amount)
	if err != nil {
		return p, nil, err
	}

	if resp.TransactionID != "" {
		applied, err := s.repo.SetTransactionID(ctx, p.ID, resp.TransactionID)
		if err != nil {
			return p, nil, err
		}
		if !applied {
			s.log.Warn().Int64("payment_id", p.ID).Msg("transaction id already recorded by concurrent request")
			return nil, nil, apperr.Conflict("payment already has a gateway transaction")
		}
	}

	if err := s.reconcile(ctx, p.ID, resp.TransactionStatus, resp.FraudStatus); err != nil {
		return p, nil, err
	}

	p, err = s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, resp, nil
}

// HandleNotification processes a gateway callback. The signature is checked
// before anything else; a mismatch is logged as tampering and rejected. A
// verified notification is reconciled through the rank guard, so duplicates
// and out-of-order deliveries are acknowledged without regressing state.
func (s *Service) HandleNotification(ctx context.Context, n Notification) (*Payment, error) {
	if !s.verifier.Verify(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		s.log.Warn().
			Str("order_id", n.OrderID).
			Str("transaction_status", n.TransactionStatus).
			Msg("notification signature mismatch, possible tampering")
		return nil, apperr.Authorization("invalid notification signature")
	}

	id, err := parseOrderID(n.OrderID)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if n.TransactionID != "" {
		// First write wins; a duplicate delivery carrying the same id is a
		// no-op and a different id is ignored.
		if _, err := s.repo.SetTransactionID(ctx, p.ID, n.TransactionID); err != nil {
			return nil, err
		}
	}

	if err := s.reconcile(ctx, p.ID, n.TransactionStatus, n.FraudStatus); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, p.ID)
}

// CheckStatus polls the gateway for the payment's order and reconciles the
// local row with the answer.
func (s *Service) CheckStatus(ctx context.Context, id int64) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.TransactionStatus(ctx, p.OrderID())
	if err != nil {
		return nil, err
	}

	if resp.TransactionID != "" && p.TransactionID == nil {
		if _, err := s.repo.SetTransactionID(ctx, p.ID, resp.TransactionID); err != nil {
			return nil, err
		}
	}

	if err := s.reconcile(ctx, p.ID, resp.TransactionStatus, resp.FraudStatus); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, p.ID)
}

// AddItem attaches a line item to an existing payment. The line total is
// derived here, never taken from the client.
func (s *Service) AddItem(ctx context.Context, paymentID int64, in ItemInput) (*PaymentItem, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.Validation("description", "must not be empty")
	}
	if in.Quantity <= 0 {
		return nil, apperr.Validation("quantity", "must be greater than zero")
	}
	if in.Price.IsNegative() {
		return nil, apperr.Validation("price", "must not be negative")
	}

	if _, err := s.repo.GetByID(ctx, paymentID); err != nil {
		return nil, err
	}

	item := &PaymentItem{
		PaymentID:   paymentID,
		Description: in.Description,
		Quantity:    in.Quantity,
		Price:       in.Price,
	}
	item.ComputeTotal()

	if err := s.repo.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetPayment returns a payment with its line items.
func (s *Service) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.GetWithItems(ctx, id)
}

// GetByTransactionID resolves a payment from the gateway's transaction
// reference, for operators working backwards from the gateway dashboard.
func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, apperr.Validation("transaction_id", "must not be empty")
	}
	return s.repo.GetByTransactionID(ctx, transactionID)
}

// ListPayments returns a page of payments, newest first.
func (s *Service) ListPayments(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByAppointment returns every payment opened for an appointment.
func (s *Service) ListByAppointment(ctx context.Context, appointmentID int64) ([]*Payment, error) {
	return s.repo.ListByAppointment(ctx, appointmentID)
}

// itemDetails renders the payment's stored items in the gateway's checkout
// shape. A retried payment forwards the items recorded on the first attempt.
func (s *Service) itemDetails(ctx context.Context, paymentID int64) ([]midtrans.ItemDetail, error) {
	items, err := s.repo.ListItems(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	details := make([]midtrans.ItemDetail, 0, len(items))
	for _, it := range items {
		details = append(details, midtrans.ItemDetail{
			ID:       strconv.FormatInt(it.ID, 10),
			Name:     it.Description,
			Price:    it.Price.IntPart(),
			Quantity: it.Quantity,
		})
	}
	return details, nil
}

// reconcile maps the gateway status pair onto the local state machine and
// applies it through the rank guard. A blocked downgrade of a paid payment
// is an anomaly worth a log line, not an error: the gateway gets its ack
// either way.
func (s *Service) reconcile(ctx context.Context, id int64, transactionStatus, fraudStatus string) error {
	next := MapGatewayStatus(transactionStatus, fraudStatus)

	applied, current, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		return err
	}
	if !applied && current == StatusPaid && next != StatusPaid {
		s.log.Warn().
			Int64("payment_id", id).
			Str("current_status", string(current)).
			Str("ignored_status", string(next)).
			Str("transaction_status", transactionStatus).
			Msg("ignored status downgrade on paid payment")
	}
	return nil
}

// parseOrderID extracts the payment id from a PAY-{id} order reference.
func parseOrderID(orderID string) (int64, error) {
	raw, ok := strings.CutPrefix(orderID, "PAY-")
	if !ok {
		return 0, apperr.Validation("order_id", "malformed order reference")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("order_id", "malformed order reference")
	}
	return id, nil
}
