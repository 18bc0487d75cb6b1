package techrecord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/middleware"
)

// RowRecord tech_record_rows 表的 GORM 模型：一行一条快照。
// 嵌套属性全部压进 attributes（单层扁平键 -> 标量的 JSON），
// 可检索的车辆级标量单独建列 + 索引。
type RowRecord struct {
	SystemNumber     string `gorm:"primaryKey;size:36"`
	CreatedTimestamp string `gorm:"primaryKey;size:40"`
	Vin              string `gorm:"index;size:21"`
	PartialVin       string `gorm:"index;size:6"`
	PrimaryVrm       string `gorm:"index;size:9"`
	TrailerID        string `gorm:"index;size:8"`
	SecondaryVrms    []byte `gorm:"type:json"`
	Attributes       []byte `gorm:"type:json;not null"`
}

func (RowRecord) TableName() string {
	return "tech_record_rows"
}

// Repo RowStore 的 MySQL 实现。所有落库往返都套在熔断器里，
// 存储挂掉时快速失败而不是拖死请求。
type Repo struct {
	db      *gorm.DB
	breaker *middleware.CircuitBreaker
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{
		db:      db,
		breaker: middleware.NewCircuitBreaker("tech-record-rows", 5, 30*time.Second),
	}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

// FindRows 按检索维度取有序行流：system_number 分组、组内时间倒序。
// criteria=all 时依次尝试各索引，命中即返回。
func (r *Repo) FindRows(ctx context.Context, term string, criteria SearchCriteria) ([]FlatRow, error) {
	if criteria == CriteriaAll {
		for _, c := range []SearchCriteria{CriteriaSystemNumber, CriteriaVin, CriteriaPartialVin, CriteriaVrm, CriteriaTrailerID} {
			rows, err := r.FindRows(ctx, term, c)
			if err != nil {
				return nil, err
			}
			if len(rows) > 0 {
				return rows, nil
			}
		}
		return nil, nil
	}

	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	q := db.Model(&RowRecord{})
	switch criteria {
	case CriteriaSystemNumber:
		q = q.Where("system_number = ?", term)
	case CriteriaVin:
		q = q.Where("vin = ?", term)
	case CriteriaPartialVin:
		q = q.Where("partial_vin = ?", term)
	case CriteriaTrailerID:
		q = q.Where("trailer_id = ?", term)
	case CriteriaVrm:
		// secondary 号牌在独立的 secondary_vrms 数组列上精确匹配，
		// 不能全文扫 attributes（会把同值的 vin/号牌号等字段误命中）
		q = q.Where("primary_vrm = ? OR (secondary_vrms IS NOT NULL AND JSON_CONTAINS(secondary_vrms, JSON_QUOTE(?)))", term, term)
	default:
		return nil, &BadRequestError{Msg: "invalid search criteria: " + string(criteria)}
	}

	var records []RowRecord
	err := r.breaker.Call(ctx, func() error {
		return q.Order("system_number, created_timestamp DESC").Find(&records).Error
	})
	if err != nil {
		return nil, err
	}

	rows := make([]FlatRow, 0, len(records))
	for _, rec := range records {
		row, err := decodeAttributes(rec.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%w: row %s/%s: %v", ErrMalformedEncoding, rec.SystemNumber, rec.CreatedTimestamp, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InsertRows 批量落库（单事务）。
func (r *Repo) InsertRows(ctx context.Context, rows []FlatRow) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	records := make([]RowRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRowRecord(row)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return r.breaker.Call(ctx, func() error {
		return db.Create(&records).Error
	})
}

// ReplaceRow 条件替换：时间戳没命中说明行已被并发改写或不存在，整体失败。
func (r *Repo) ReplaceRow(ctx context.Context, systemNumber, createdTimestamp string, row FlatRow) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	rec, err := toRowRecord(row)
	if err != nil {
		return err
	}
	return r.breaker.Call(ctx, func() error {
		res := db.Model(&RowRecord{}).
			Where("system_number = ? AND created_timestamp = ?", systemNumber, createdTimestamp).
			Update("attributes", rec.Attributes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("row %s/%s vanished during replace", systemNumber, createdTimestamp)
		}
		return nil
	})
}

func toRowRecord(row FlatRow) (RowRecord, error) {
	sysNum, _ := row["systemNumber"].(string)
	ts, _ := row["createdTimestamp"].(string)
	if sysNum == "" || ts == "" {
		return RowRecord{}, fmt.Errorf("%w: row missing systemNumber or createdTimestamp", ErrMalformedEncoding)
	}
	attrs, err := json.Marshal(row)
	if err != nil {
		return RowRecord{}, err
	}
	rec := RowRecord{
		SystemNumber:     sysNum,
		CreatedTimestamp: ts,
		Attributes:       attrs,
	}
	rec.Vin, _ = row["vin"].(string)
	rec.PartialVin, _ = row["partialVin"].(string)
	rec.PrimaryVrm, _ = row["primaryVrm"].(string)
	rec.TrailerID, _ = row["trailerId"].(string)

	vrms := secondaryVrmsOf(row)
	if len(vrms) > 0 {
		data, err := json.Marshal(vrms)
		if err != nil {
			return RowRecord{}, err
		}
		rec.SecondaryVrms = data
	}
	return rec, nil
}

// secondaryVrmsOf 从扁平行收集 secondaryVrms_0..N（编码时下标已压实）。
func secondaryVrmsOf(row FlatRow) []string {
	var vrms []string
	for i := 0; ; i++ {
		v, ok := row[fmt.Sprintf("secondaryVrms%s%d", Delimiter, i)].(string)
		if !ok {
			return vrms
		}
		vrms = append(vrms, v)
	}
}

// decodeAttributes UseNumber 保住数字字面量，出站转字符串时不丢精度。
func decodeAttributes(data []byte) (FlatRow, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row FlatRow
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}
