package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/worker"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type sendProductReq struct {
	Groups []string `json:"groups"`
}

func sendProductHandler(sender ProductSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendProductReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}

		id := strings.TrimSpace(c.Param("id"))
		rep, err := sender.SendNow(c.Request().Context(), id, req.Groups)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotFound):
			return errJSON(c, http.StatusNotFound, "product not found")
		case errors.Is(err, worker.ErrMissingText):
			return errJSON(c, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, worker.ErrNoDestinations):
			return errJSON(c, http.StatusBadRequest, "groups is empty")
		default:
			log.Errorf("send product %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "send failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success":       true,
			"resultados":    rep.Results,
			"total_enviado": rep.Sent,
			"total_falhou":  rep.Failed,
		})
	}
}

type scheduleReq struct {
	Agendamento string `json:"agendamento"`
}

func setScheduleHandler(products repository.ProductsRepository, loc *time.Location) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req scheduleReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		at, ok := parseWhen(strings.TrimSpace(req.Agendamento), loc)
		if !ok {
			return errJSON(c, http.StatusBadRequest, "invalid agendamento")
		}

		id := c.Param("id")
		if err := products.SetSchedule(c.Request().Context(), id, &at); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errJSON(c, http.StatusNotFound, "product not found")
			}
			log.Errorf("schedule product %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"id":          id,
			"agendamento": at.In(loc).Format(time.RFC3339),
		})
	}
}

func clearScheduleHandler(products repository.ProductsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if err := products.SetSchedule(c.Request().Context(), id, nil); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errJSON(c, http.StatusNotFound, "product not found")
			}
			log.Errorf("unschedule product %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func gatewayStatusHandler(gw GatewayStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"connected": gw.Connected(c.Request().Context())})
	}
}
