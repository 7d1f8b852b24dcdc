// Package model holds the gorm row types. Timestamps are unix milliseconds.
package model

import (
	"gorm.io/datatypes"
)

type OpportunityModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Module        string         `gorm:"column:module;index:idx_opp_module_ts,priority:1"`
	Symbol        string         `gorm:"column:symbol"`
	Side          string         `gorm:"column:side"`
	Quantity      float64        `gorm:"column:quantity"`
	Price         float64        `gorm:"column:price"`
	Confidence    float64        `gorm:"column:confidence"`
	Strategy      string         `gorm:"column:strategy"`
	MetadataJSON  datatypes.JSON `gorm:"column:metadata_json;type:TEXT"`
	RiskJSON      datatypes.JSON `gorm:"column:risk_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index:idx_opp_module_ts,priority:2"`
}

func (OpportunityModel) TableName() string { return "opportunities" }

// TradeResultModel stores entries and exits. PnL stays NULL for entries, so
// only settled rows feed the optimizer.
type TradeResultModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Module        string         `gorm:"column:module;index:idx_trade_module_ts,priority:1"`
	Symbol        string         `gorm:"column:symbol"`
	Side          string         `gorm:"column:side"`
	Quantity      float64        `gorm:"column:quantity"`
	Strategy      string         `gorm:"column:strategy"`
	Status        string         `gorm:"column:status"`
	IsExit        bool           `gorm:"column:is_exit"`
	OrderID       string         `gorm:"column:order_id"`
	FillPrice     *float64       `gorm:"column:fill_price"`
	FillTimeUnix  *int64         `gorm:"column:fill_time"`
	PnL           *float64       `gorm:"column:pnl"`
	PnLPct        *float64       `gorm:"column:pnl_pct"`
	HoldSeconds   *float64       `gorm:"column:hold_seconds"`
	ExitReason    string         `gorm:"column:exit_reason"`
	Error         string         `gorm:"column:error"`
	Passed        bool           `gorm:"column:passed"`
	Success       bool           `gorm:"column:success"`
	ParamsJSON    datatypes.JSON `gorm:"column:params_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index:idx_trade_module_ts,priority:2"`
}

func (TradeResultModel) TableName() string { return "trade_results" }

type CycleResultModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Number        int64          `gorm:"column:number;index"`
	StartedAtUnix int64          `gorm:"column:started_at"`
	DurationMs    int64          `gorm:"column:duration_ms"`
	Success       bool           `gorm:"column:success"`
	Error         string         `gorm:"column:error"`
	SummaryJSON   datatypes.JSON `gorm:"column:summary_json;type:TEXT"`
	ModulesJSON   datatypes.JSON `gorm:"column:modules_json;type:TEXT"`
}

func (CycleResultModel) TableName() string { return "cycle_results" }

type OptimizationResultModel struct {
	ID                  string         `gorm:"column:id;primaryKey"`
	Module              string         `gorm:"column:module;index"`
	Parameter           string         `gorm:"column:parameter"`
	OldValueJSON        datatypes.JSON `gorm:"column:old_value_json;type:TEXT"`
	NewValueJSON        datatypes.JSON `gorm:"column:new_value_json;type:TEXT"`
	ExpectedImprovement float64        `gorm:"column:expected_improvement"`
	Confidence          float64        `gorm:"column:confidence"`
	Method              string         `gorm:"column:method"`
	SampleCount         int            `gorm:"column:sample_count"`
	AppliedAtUnix       int64          `gorm:"column:applied_at"`
}

func (OptimizationResultModel) TableName() string { return "optimization_results" }

type ModuleParametersModel struct {
	Module        string         `gorm:"column:module;primaryKey"`
	ParamsJSON    datatypes.JSON `gorm:"column:params_json;type:TEXT"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (ModuleParametersModel) TableName() string { return "module_parameters" }
