package handler

import (
	"net/http"
	"strconv"

	"theater/internal/middleware"
	"theater/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
	// 決済拒否のときだけ
	Reason       string `json:"reason,omitempty"`
	RetryAllowed *bool  `json:"retry_allowed,omitempty"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		res := ErrorResponse{
			Error:      he.Message,
			Code:       he.Code,
			Suggestion: he.Suggestion,
			Reason:     he.Reason,
		}
		if he.Code == usecase.CodePaymentDeclined {
			retry := he.RetryAllowed
			res.RetryAllowed = &retry
		}
		return c.JSON(he.Status, res)
	}

	//500。中身は出さない
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: usecase.CodeInternal})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: usecase.CodeBadRequest})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
}

// AuthJWTが入れたuser_id
func getUserIDFromContext(c echo.Context) (int64, bool) {
	userID, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 未指定は0で返す（usecase側でデフォルトを入れる）
func parsePage(c echo.Context) (int, int, bool) {
	page, perPage := 0, 0
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = p
	}
	if v := c.QueryParam("per_page"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		perPage = l
	}
	return page, perPage, true
}
