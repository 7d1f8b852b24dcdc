package sqlite

import (
	"context"
	"time"

	"conductor/internal/store/model"
	"conductor/internal/types"

	"github.com/tidwall/gjson"
)

// GetRecentPerformanceData returns settled trades (P&L recorded) within the
// last daysBack days, oldest first.
func (s *Store) GetRecentPerformanceData(ctx context.Context, moduleName string, daysBack int) ([]types.PerformanceRecord, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	cutoff := s.nowFn().Add(-time.Duration(daysBack) * 24 * time.Hour).UnixMilli()
	var rows []model.TradeResultModel
	if err := s.db.WithContext(ctx).
		Where("module = ? AND created_at >= ? AND pnl IS NOT NULL", moduleName, cutoff).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.PerformanceRecord, 0, len(rows))
	for _, row := range rows {
		rec := types.PerformanceRecord{
			Module:    row.Module,
			Symbol:    row.Symbol,
			Timestamp: time.UnixMilli(row.CreatedAtUnix),
			Success:   row.Success,
			Params:    parseParams(row.ParamsJSON),
		}
		if row.PnL != nil {
			rec.ProfitLoss = *row.PnL
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseParams keeps only scalar values: numbers as float64, strings, bools.
func parseParams(raw []byte) map[string]any {
	out := make(map[string]any)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			out[key.String()] = value.Float()
		case gjson.String:
			out[key.String()] = value.String()
		case gjson.True, gjson.False:
			out[key.String()] = value.Bool()
		}
		return true
	})
	return out
}
