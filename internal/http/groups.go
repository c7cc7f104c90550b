package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/util"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func listGroupsHandler(groups repository.GroupsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := groups.List(c.Request().Context())
		if err != nil {
			log.Errorf("list groups failed: %v", err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		if rows == nil {
			rows = []model.DestinationGroup{}
		}
		return c.JSON(http.StatusOK, map[string]any{"count": len(rows), "results": rows})
	}
}

type upsertGroupReq struct {
	GroupID string `json:"grupo_id"`
	Name    string `json:"grupo_nome"`
}

func upsertGroupHandler(groups repository.GroupsRepository, cache Invalidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req upsertGroupReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		id := util.NormalizeGroupID(req.GroupID)
		if id == "" {
			return errJSON(c, http.StatusBadRequest, "grupo_id is required")
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = id
		}

		created, err := groups.Upsert(c.Request().Context(), id, name, time.Now())
		if err != nil {
			log.Errorf("upsert group %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		cache.Invalidate()

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return c.JSON(status, map[string]any{"grupo_id": id, "grupo_nome": name, "ativo": true, "created": created})
	}
}

type toggleGroupReq struct {
	Active *bool `json:"ativo"`
}

func toggleGroupHandler(groups repository.GroupsRepository, cache Invalidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req toggleGroupReq
		if err := c.Bind(&req); err != nil || req.Active == nil {
			return errJSON(c, http.StatusBadRequest, "ativo is required")
		}
		id := util.NormalizeGroupID(c.Param("grupo_id"))
		if err := groups.SetActive(c.Request().Context(), id, *req.Active, time.Now()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errJSON(c, http.StatusNotFound, "group not found")
			}
			log.Errorf("toggle group %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		cache.Invalidate()
		return c.JSON(http.StatusOK, map[string]any{"grupo_id": id, "ativo": *req.Active})
	}
}

func deleteGroupHandler(groups repository.GroupsRepository, cache Invalidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := util.NormalizeGroupID(c.Param("grupo_id"))
		if err := groups.Delete(c.Request().Context(), id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errJSON(c, http.StatusNotFound, "group not found")
			}
			log.Errorf("delete group %s failed: %v", id, err)
			return errJSON(c, http.StatusInternalServerError, "db error")
		}
		cache.Invalidate()
		return c.NoContent(http.StatusNoContent)
	}
}
