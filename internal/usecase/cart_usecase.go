package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"theater/internal/domain/model"
	repo "theater/internal/repository"

	"github.com/shopspring/decimal"
)

type CartUsecase struct {
	tx repo.TransactionManager
}

// DI
func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

// カートが無ければ空で返す
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	out := CartOutput{Items: []CartItemOutput{}, TotalAmount: money(decimal.Zero)}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return dbError()
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return dbError()
		}

		total := decimal.Zero
		out.ID = cart.ID
		for _, ci := range items {
			out.Items = append(out.Items, toCartItemOutput(ci))
			if ci.Movie != nil {
				total = total.Add(ci.Movie.Price)
			}
		}
		out.TotalAmount = money(total)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) AddMovie(ctx context.Context, userID int64, movieID int64) (CartItemOutput, error) {
	if userID <= 0 {
		return CartItemOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if movieID <= 0 {
		return CartItemOutput{}, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid movie_id")
	}

	var out CartItemOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		movie, err := r.Movies().FindByID(ctx, movieID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("movie")
		}
		if err != nil {
			return dbError()
		}

		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return dbError()
		}

		item, err := r.CartItems().Add(ctx, cart.ID, movie.ID)
		if errors.Is(err, repo.ErrAlreadyExists) {
			return NewHTTPError(http.StatusConflict, CodeAlreadyInCart, "movie already in cart")
		}
		if err != nil {
			return dbError()
		}

		item.Movie = &movie
		out = toCartItemOutput(item)
		return nil
	})
	if err != nil {
		return CartItemOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, cartItemID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("cart item")
		}
		if err != nil {
			return dbError()
		}

		//他人のカートの明細は条件に合わないので404
		err = r.CartItems().DeleteFromCart(ctx, cart.ID, cartItemID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("cart item")
		}
		if err != nil {
			return dbError()
		}
		return nil
	})
}

func (u *CartUsecase) Clear(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("cart")
		}
		if err != nil {
			return dbError()
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return dbError()
		}
		return nil
	})
}

// カートと現在の価格から作る
func buildSnapshot(ctx context.Context, r repo.TxRepos, cart model.Cart) (model.CartSnapshot, error) {
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.CartSnapshot{}, err
	}

	snap := model.CartSnapshot{Lines: make([]model.CartLine, 0, len(items))}
	for _, ci := range items {
		if ci.Movie == nil {
			//カタログから消えた映画は買えない扱い
			snap.Lines = append(snap.Lines, model.CartLine{
				MovieID: ci.MovieID,
				Movie:   model.Movie{ID: ci.MovieID, Name: "#" + strconv.FormatInt(ci.MovieID, 10)},
			})
			continue
		}
		snap.Lines = append(snap.Lines, model.CartLine{
			MovieID:   ci.MovieID,
			UnitPrice: ci.Movie.Price,
			Movie:     *ci.Movie,
		})
	}
	return snap, nil
}

// Snapshot は呼び出し元ユーザーのカートの現在の状態を返す
func (u *CartUsecase) Snapshot(ctx context.Context, userID int64) (model.CartSnapshot, error) {
	var snap model.CartSnapshot
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return dbError()
		}
		snap, err = buildSnapshot(ctx, r, cart)
		if err != nil {
			return dbError()
		}
		return nil
	})
	return snap, err
}
