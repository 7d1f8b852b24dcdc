// Package sqlite persists orchestration history with gorm on the pure-Go
// modernc SQLite driver.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conductor/internal/store/model"
	"conductor/internal/types"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Store implements ports.Persistence.
type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return NewFromDB(db)
}

func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(
		&model.OpportunityModel{},
		&model.TradeResultModel{},
		&model.CycleResultModel{},
		&model.OptimizationResultModel{},
		&model.ModuleParametersModel{},
	); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db, nowFn: time.Now}, nil
}

// SetClock overrides the time source; used by tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) IsConnected() bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}

func (s *Store) SaveOpportunity(ctx context.Context, moduleName string, opp types.Opportunity) error {
	created := opp.CreatedAt
	if created.IsZero() {
		created = s.nowFn()
	}
	row := model.OpportunityModel{
		Module:        moduleName,
		Symbol:        opp.Symbol,
		Side:          string(opp.Side),
		Quantity:      opp.Quantity,
		Price:         opp.Price,
		Confidence:    opp.Confidence,
		Strategy:      opp.Strategy,
		MetadataJSON:  mustJSON(opp.Metadata),
		RiskJSON:      mustJSON(opp.Risk),
		CreatedAtUnix: created.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) SaveTradeResult(ctx context.Context, moduleName string, res types.TradeResult, params map[string]any) error {
	row := model.TradeResultModel{
		Module:        moduleName,
		Symbol:        res.Symbol,
		Side:          string(res.Side),
		Quantity:      res.Quantity,
		Strategy:      res.Strategy,
		Status:        string(res.Status),
		IsExit:        res.IsExit,
		OrderID:       res.OrderID,
		FillPrice:     res.FillPrice,
		PnL:           res.PnL,
		PnLPct:        res.PnLPct,
		ExitReason:    res.ExitReason,
		Error:         res.Error,
		Passed:        res.Passed(),
		Success:       res.Success(),
		ParamsJSON:    mustJSON(params),
		CreatedAtUnix: s.nowFn().UnixMilli(),
	}
	if res.FillTime != nil {
		ms := res.FillTime.UnixMilli()
		row.FillTimeUnix = &ms
	}
	if res.HoldDuration != nil {
		secs := res.HoldDuration.Seconds()
		row.HoldSeconds = &secs
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) SaveCycleResult(ctx context.Context, cycle types.CycleResult) error {
	if cycle.ID == "" {
		return errors.New("cycle id is required")
	}
	row := model.CycleResultModel{
		ID:            cycle.ID,
		Number:        int64(cycle.Number),
		StartedAtUnix: cycle.StartedAt.UnixMilli(),
		DurationMs:    cycle.Duration.Milliseconds(),
		Success:       cycle.Success,
		Error:         cycle.Error,
		SummaryJSON:   mustJSON(cycle.Summary),
		ModulesJSON:   mustJSON(cycle.Modules),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *Store) SaveOptimizationResult(ctx context.Context, rec types.OptimizationRecord) error {
	if rec.ID == "" {
		return errors.New("optimization record id is required")
	}
	r := rec.Result
	row := model.OptimizationResultModel{
		ID:                  rec.ID,
		Module:              r.ModuleName,
		Parameter:           r.Parameter,
		OldValueJSON:        mustJSON(r.OldValue),
		NewValueJSON:        mustJSON(r.NewValue),
		ExpectedImprovement: r.ExpectedImprovement,
		Confidence:          r.Confidence,
		Method:              string(r.Method),
		SampleCount:         r.SampleCount,
		AppliedAtUnix:       rec.AppliedAt.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) SaveModuleParameters(ctx context.Context, moduleName string, params map[string]any) error {
	row := model.ModuleParametersModel{
		Module:        moduleName,
		ParamsJSON:    mustJSON(params),
		UpdatedAtUnix: s.nowFn().UnixMilli(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "module"}},
		DoUpdates: clause.AssignmentColumns([]string{"params_json", "updated_at"}),
	}).Create(&row).Error
}

// GetCurrentModuleParameters returns nil without error when nothing has been saved.
func (s *Store) GetCurrentModuleParameters(ctx context.Context, moduleName string) (map[string]any, error) {
	var row model.ModuleParametersModel
	err := s.db.WithContext(ctx).Where("module = ?", moduleName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseParams(row.ParamsJSON), nil
}

// CycleHistory returns the most recent cycles, newest first.
func (s *Store) CycleHistory(ctx context.Context, limit int) ([]types.CycleResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []model.CycleResultModel
	if err := s.db.WithContext(ctx).Order("number DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.CycleResult, 0, len(rows))
	for _, row := range rows {
		c := types.CycleResult{
			ID:        row.ID,
			Number:    int(row.Number),
			StartedAt: time.UnixMilli(row.StartedAtUnix),
			Duration:  time.Duration(row.DurationMs) * time.Millisecond,
			Success:   row.Success,
			Error:     row.Error,
		}
		if len(row.SummaryJSON) > 0 {
			if err := json.Unmarshal(row.SummaryJSON, &c.Summary); err != nil {
				return nil, fmt.Errorf("decode cycle %s summary: %w", row.ID, err)
			}
		}
		if len(row.ModulesJSON) > 0 {
			if err := json.Unmarshal(row.ModulesJSON, &c.Modules); err != nil {
				return nil, fmt.Errorf("decode cycle %s modules: %w", row.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}
