package model

import "github.com/shopspring/decimal"

// 保存しない。カートと現在の価格から毎回作る
type CartSnapshot struct {
	Lines []CartLine
}

type CartLine struct {
	MovieID   int64
	UnitPrice decimal.Decimal
	Movie     Movie
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s CartSnapshot) MovieIDs() []int64 {
	ids := make([]int64, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.MovieID)
	}
	return ids
}
