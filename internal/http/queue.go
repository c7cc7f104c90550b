package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/service/queue"
	"github.com/PromoBrothers/Projeto-2026/internal/worker"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func listQueueHandler(svc QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, ok := model.ParseQueueStatus(c.QueryParam("status"))
		if !ok {
			return errJSON(c, http.StatusBadRequest, "invalid status")
		}
		limit := 100
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		rows, err := svc.List(c.Request().Context(), st, limit)
		if err != nil {
			log.Errorf("list queue failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		if rows == nil {
			rows = []model.QueuedMessage{}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"count":   len(rows),
			"results": rows,
		})
	}
}

type enqueueReq struct {
	OriginalText    string `json:"mensagem_original"`
	AffiliateText   string `json:"mensagem_com_afiliado"`
	ImageURL        string `json:"imagem_url"`
	SourceGroup     string `json:"grupo_origem"`
	SourceGroupName string `json:"grupo_origem_nome"`
	DueAt           string `json:"agendamento"`
}

func enqueueHandler(svc QueueService, loc *time.Location) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req enqueueReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}

		env := model.CloneEnvelope{
			OriginalText:    req.OriginalText,
			AffiliateText:   req.AffiliateText,
			ImageURL:        req.ImageURL,
			SourceGroup:     req.SourceGroup,
			SourceGroupName: req.SourceGroupName,
		}
		if s := strings.TrimSpace(req.DueAt); s != "" {
			at, ok := parseWhen(s, loc)
			if !ok {
				return errJSON(c, http.StatusBadRequest, "invalid agendamento")
			}
			env.DueAt = &at
		}

		m, err := svc.Enqueue(c.Request().Context(), env)
		if err != nil {
			if errors.Is(err, queue.ErrEmptyMessage) {
				return errJSON(c, http.StatusBadRequest, err.Error())
			}
			log.Errorf("enqueue failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"enqueued":          true,
			"id":                m.ID,
			"agendamento_envio": m.DueAt.In(loc).Format(time.RFC3339),
		})
	}
}

func queueStatsHandler(svc QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := svc.Stats(c.Request().Context())
		if err != nil {
			log.Errorf("queue stats failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		return c.JSON(http.StatusOK, st)
	}
}

func processQueueHandler(d QueueDrainer) echo.HandlerFunc {
	return func(c echo.Context) error {
		// a client hanging up must not cut the drain between two rows' state writes
		rep, err := d.ProcessNow(context.WithoutCancel(c.Request().Context()))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, worker.ErrGatewayUnavailable) {
				status = http.StatusServiceUnavailable
			}
			return c.JSON(status, map[string]any{
				"success":     false,
				"error":       err.Error(),
				"processadas": rep.Processed,
				"erros":       rep.Errors,
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success":     true,
			"processadas": rep.Processed,
			"erros":       rep.Errors,
		})
	}
}

type pruneReq struct {
	Days int `json:"days"`
}

func pruneQueueHandler(svc QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req pruneReq
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&req); err != nil {
				return errJSON(c, http.StatusBadRequest, "bad request")
			}
		}
		n, err := svc.Prune(c.Request().Context(), req.Days)
		if err != nil {
			if errors.Is(err, queue.ErrInvalidDays) {
				return errJSON(c, http.StatusBadRequest, err.Error())
			}
			log.Errorf("prune failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		return c.JSON(http.StatusOK, map[string]any{"deleted": n})
	}
}

func deleteQueueHandler(svc QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, err := svc.Delete(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("delete queue item failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		if !ok {
			return errJSON(c, http.StatusNotFound, "not found")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type requeueReq struct {
	DueAt string `json:"agendamento"`
}

func requeueHandler(svc QueueService, loc *time.Location) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req requeueReq
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&req); err != nil {
				return errJSON(c, http.StatusBadRequest, "bad request")
			}
		}
		var at *time.Time
		if s := strings.TrimSpace(req.DueAt); s != "" {
			t, ok := parseWhen(s, loc)
			if !ok {
				return errJSON(c, http.StatusBadRequest, "invalid agendamento")
			}
			at = &t
		}

		id := c.Param("id")
		due, err := svc.Requeue(c.Request().Context(), id, at)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errJSON(c, http.StatusConflict, "not in erro")
			}
			log.Errorf("requeue %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"id":                id,
			"status":            model.StatusPending,
			"agendamento_envio": due.In(loc).Format(time.RFC3339),
		})
	}
}

func getQueueSettingsHandler(svc QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, svc.Settings())
	}
}

func putQueueSettingsHandler(svc QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var qs config.QueueSettings
		if err := c.Bind(&qs); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		if qs.SpacingMinutes <= 0 || qs.SpacingMinutes > 24*60 {
			return errJSON(c, http.StatusBadRequest, "intervalo_minutos out of range")
		}
		if err := svc.UpdateSettings(qs); err != nil {
			log.Errorf("save queue settings failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "save failed")
		}
		return c.JSON(http.StatusOK, qs)
	}
}
