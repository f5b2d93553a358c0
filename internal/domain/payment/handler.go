package payment

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the payment endpoints. Everything requires staff or
// admin except the notification callback, which the gateway calls directly
// and which authenticates itself by signature instead.
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	g := api.Group("/payments", auth.RequireRole("admin", "staff"))
	g.POST("", h.CreatePayment)
	g.GET("", h.ListPayments)
	g.POST("/create-snap-token", h.CreateSnapToken)
	g.POST("/create-bank-transfer", h.CreateBankTransfer)
	g.GET("/transaction/:transactionId", h.GetByTransaction)
	g.GET("/:id", h.GetPayment)
	g.GET("/:id/status", h.CheckStatus)
	g.POST("/:id/items", h.AddItem)

	public.POST("/payments/notification", h.Notification)
}

func svcError(err error) error {
	return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}
	return id, nil
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var in CreatePaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CreatePayment(c.Request().Context(), in)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	if raw := c.QueryParam("appointment_id"); raw != "" {
		apptID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || apptID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_id")
		}
		items, err := h.svc.ListByAppointment(c.Request().Context(), apptID)
		if err != nil {
			return svcError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
	}

	params := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), params.Limit, params.Offset)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, params.Limit, params.Offset))
}

func (h *Handler) CreateSnapToken(c echo.Context) error {
	var in SnapInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, snap, err := h.svc.CreateSnapPayment(c.Request().Context(), in)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"payment":      p,
		"token":        snap.Token,
		"redirect_url": snap.RedirectURL,
	})
}

func (h *Handler) CreateBankTransfer(c echo.Context) error {
	var in BankTransferInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, resp, err := h.svc.CreateBankTransferPayment(c.Request().Context(), in)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"payment":            p,
		"va_numbers":         resp.VANumbers,
		"transaction_status": resp.TransactionStatus,
		"gross_amount":       resp.GrossAmount,
	})
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetByTransaction(c echo.Context) error {
	p, err := h.svc.GetByTransactionID(c.Request().Context(), c.Param("transactionId"))
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CheckStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CheckStatus(c.Request().Context(), id)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AddItem(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in ItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.AddItem(c.Request().Context(), id, in)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// Notification handles the gateway callback. The gateway only needs a 200 to
// stop redelivering; the reconciled payment is returned for operators
// replaying notifications by hand.
func (h *Handler) Notification(c echo.Context) error {
	var n Notification
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.HandleNotification(c.Request().Context(), n)
	if err != nil {
		return svcError(err)
	}
	return c.JSON(http.StatusOK, p)
}
