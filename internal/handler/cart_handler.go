package handler

import (
	"context"
	"net/http"

	"theater/internal/config"
	"theater/internal/middleware"
	"theater/internal/repository"
	"theater/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CartUsecase interface {
	GetCart(ctx context.Context, userID int64) (usecase.CartOutput, error)
	AddMovie(ctx context.Context, userID int64, movieID int64) (usecase.CartItemOutput, error)
	RemoveItem(ctx context.Context, userID int64, cartItemID int64) error
	Clear(ctx context.Context, userID int64) error
}

// /cartのHTTP
type CartHandler struct {
	uc CartUsecase
}

// DI
func NewCartHandler(uc CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	MovieID int64 `json:"movie_id"`
}

// /cart, /cart/items, /cart/items/{id} を登録
func (h *CartHandler) RegisterRoutes(api *echo.Group, cfg config.Config, userRepo repository.UserRepository) {
	g := api.Group("/cart")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.getCart)
	g.POST("/items", h.addMovie)
	g.DELETE("/items/:id", h.deleteItem)
	g.DELETE("/items", h.clear)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addMovie(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.AddMovie(c.Request().Context(), userID, req.MovieID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	itemID, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.RemoveItem(c.Request().Context(), userID, itemID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) clear(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.Clear(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
