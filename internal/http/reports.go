package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listDeliveriesHandler(chRepo repository.CHDeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if chRepo == nil {
			return errJSON(c, http.StatusServiceUnavailable, "delivery log disabled")
		}

		f := repository.DeliveryFilter{
			Dispatcher: strings.TrimSpace(c.QueryParam("dispatcher")),
			ItemID:     strings.TrimSpace(c.QueryParam("item_id")),
			GroupID:    strings.TrimSpace(c.QueryParam("group_id")),
			Limit:      50,
		}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}

		rows, err := chRepo.List(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
