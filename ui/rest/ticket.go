package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	pkgError "github.com/AzielCF/az-desk/pkg/error"
	"github.com/AzielCF/az-desk/pkg/utils"
	"github.com/AzielCF/az-desk/ticketing/domain"
	"github.com/AzielCF/az-desk/ticketing/usecase"
)

type Ticket struct {
	Service usecase.ITicketUsecase
}

func InitRestTicket(app fiber.Router, service usecase.ITicketUsecase) Ticket {
	handler := Ticket{Service: service}

	group := app.Group("/tickets")
	group.Get("/", handler.List)
	group.Get("/:id", handler.Detail)
	group.Put("/:id/status", handler.UpdateStatus)
	group.Post("/:id/messages", handler.SendText)

	return handler
}

func tenantID(c *fiber.Ctx) string {
	if v := c.Get("X-Tenant-ID"); v != "" {
		return v
	}
	return c.Query("tenant_id")
}

// errorResponse traduce errores del dominio y de validación al sobre estándar.
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrTicketNotFound),
		errors.Is(err, domain.ErrContactNotFound),
		errors.Is(err, domain.ErrChannelNotFound):
		notFound := pkgError.NotFoundError(err.Error())
		return c.Status(notFound.StatusCode()).JSON(utils.ResponseData{
			Status:  notFound.StatusCode(),
			Code:    notFound.ErrCode(),
			Message: notFound.Error(),
		})
	}

	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		return c.Status(generic.StatusCode()).JSON(utils.ResponseData{
			Status:  generic.StatusCode(),
			Code:    generic.ErrCode(),
			Message: generic.Error(),
		})
	}

	return c.Status(500).JSON(utils.ResponseData{
		Status:  500,
		Code:    "INTERNAL_SERVER_ERROR",
		Message: err.Error(),
	})
}

func (h *Ticket) List(c *fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "missing tenant id",
		})
	}

	status := domain.TicketStatus(c.Query("status"))
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	tickets, err := h.Service.ListTickets(c.UserContext(), tenant, status, limit, offset)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Tickets retrieved",
		Results: tickets,
	})
}

func (h *Ticket) Detail(c *fiber.Ctx) error {
	detail, err := h.Service.GetTicket(c.UserContext(), tenantID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Ticket retrieved",
		Results: detail,
	})
}

func (h *Ticket) UpdateStatus(c *fiber.Ctx) error {
	var req usecase.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, pkgError.ValidationError(err.Error()))
	}
	req.TenantID = tenantID(c)
	req.TicketID = c.Params("id")

	ticket, err := h.Service.UpdateStatus(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Ticket status updated",
		Results: ticket,
	})
}

func (h *Ticket) SendText(c *fiber.Ctx) error {
	var req usecase.SendTextRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, pkgError.ValidationError(err.Error()))
	}
	req.TenantID = tenantID(c)
	req.TicketID = c.Params("id")

	msg, err := h.Service.SendText(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message sent",
		Results: msg,
	})
}
