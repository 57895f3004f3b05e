package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CountBucket is one grouped count
type CountBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// RequestStatistics summarises requests submitted inside a time range
type RequestStatistics struct {
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
	Total              int64           `json:"total"`
	ByType             []CountBucket   `json:"by_type"`
	ByStatus           []CountBucket   `json:"by_status"`
	ByStage            []CountBucket   `json:"by_stage"`
	FulfilledValue     decimal.Decimal `json:"fulfilled_value"`
}
