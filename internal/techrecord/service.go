package techrecord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/logger"
)

// RowStore 存储协作方：只要求有序行流与逐行写入，查询/索引机制不下沉到核心。
type RowStore interface {
	// FindRows 返回按 system_number 分组、组内 created_timestamp 倒序的行流。
	FindRows(ctx context.Context, term string, criteria SearchCriteria) ([]FlatRow, error)
	InsertRows(ctx context.Context, rows []FlatRow) error
	// ReplaceRow 条件替换（system_number + created_timestamp 命中才生效）。
	ReplaceRow(ctx context.Context, systemNumber, createdTimestamp string, row FlatRow) error
}

// AuditUser 写操作的审计身份。
type AuditUser struct {
	Name string
	ID   string
}

// Service 技术记录的核心用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	store RowStore
	log   logger.Logger
	now   func() time.Time
}

func NewService(store RowStore, log logger.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// GetBySearch 读路径：查行流 -> 分组 -> 状态过滤 -> 出站整理。
// 行流为空或任一车辆过滤后为空都按未找到处理。
func (s *Service) GetBySearch(ctx context.Context, term string, criteria SearchCriteria, f StatusFilter) ([]*Vehicle, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &BadRequestError{Msg: "search term required"}
	}

	rows, err := s.store.FindRows(ctx, term, criteria)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	vehicles, err := GroupRows(rows)
	if err != nil {
		return nil, err
	}

	out := make([]*Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		filtered, err := ApplyStatusFilter(v, f)
		if err != nil {
			return nil, err
		}
		out = append(out, FormatForResponse(filtered))
	}
	return out, nil
}

// Create 首次写入：分配 systemNumber、截取 partialVin、全部快照强制
// provisional 并盖审计戳，然后逐快照编码成扁平行落库。
func (s *Service) Create(ctx context.Context, payload *VehiclePayload, user AuditUser) (*Vehicle, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if err := ValidateCreate(payload); err != nil {
		return nil, err
	}

	v := &Vehicle{
		SystemNumber:  uuid.NewString(),
		Vin:           strings.TrimSpace(payload.Vin),
		PrimaryVrm:    strings.TrimSpace(payload.PrimaryVrm),
		SecondaryVrms: payload.SecondaryVrms,
		TrailerID:     strings.TrimSpace(payload.TrailerID),
	}
	v.PartialVin = derivePartialVin(v.Vin)

	now := s.now().UTC()
	for _, rec := range payload.TechRecord {
		snapshot := CloneDocument(rec)
		stampSnapshot(snapshot, user, now)
		v.TechRecord = append(v.TechRecord, snapshot)
	}

	rows, err := encodeVehicleRows(v)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRows(ctx, rows); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.WithField("systemNumber", v.SystemNumber).Info("vehicle created")
	}
	return FormatForResponse(v), nil
}

// Update 版本化更新：当前（无则 provisional）快照归档原样保留，
// 变更合并到其内容副本上，作为新的 provisional 快照追加。
func (s *Service) Update(ctx context.Context, systemNumber string, payload *UpdatePayload, user AuditUser) (*Vehicle, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	systemNumber = strings.TrimSpace(systemNumber)
	if systemNumber == "" {
		return nil, &BadRequestError{Msg: "systemNumber required"}
	}
	if err := ValidateUpdate(payload); err != nil {
		return nil, err
	}

	rows, err := s.store.FindRows(ctx, systemNumber, CriteriaSystemNumber)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	vehicles, err := GroupRows(rows)
	if err != nil {
		return nil, err
	}
	if len(vehicles) != 1 {
		return nil, fmt.Errorf("expected one vehicle for systemNumber %s, got %d", systemNumber, len(vehicles))
	}

	v := vehicles[0]
	updated, archivedIdx, err := ApplyUpdate(v, payload.TechRecord[0], user, s.now().UTC())
	if err != nil {
		return nil, err
	}

	// 先持久化归档副本（条件替换，时间戳不匹配说明并发编辑抢先，整体失败）
	archived := updated.TechRecord[archivedIdx]
	archivedRow, err := encodeSnapshotRow(updated, archived)
	if err != nil {
		return nil, err
	}
	prevTimestamp, _ := archived["createdAt"].(string)
	if err := s.store.ReplaceRow(ctx, systemNumber, prevTimestamp, archivedRow); err != nil {
		return nil, err
	}

	newRec := updated.TechRecord[len(updated.TechRecord)-1]
	newRow, err := encodeSnapshotRow(updated, newRec)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertRows(ctx, []FlatRow{newRow}); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.WithField("systemNumber", systemNumber).Info("tech record archived and reissued")
	}
	return FormatForResponse(updated), nil
}

// ApplyUpdate 纯内存的归档-追加变换（持久化由调用方负责）：
// - 定位有权快照：首个 current，退而求其次首个 provisional（与读路径同一裁决）
// - 其深拷贝置为 archived，原位保留
// - 变更合并到归档前内容的副本上，强制 provisional + 新审计字段，追加到末尾
//
// 返回新聚合与归档快照的下标。输入不被修改。
func ApplyUpdate(v *Vehicle, changes TechRecord, user AuditUser, now time.Time) (*Vehicle, int, error) {
	out := v.Clone()

	idx := indexOfStatus(out.TechRecord, StatusCurrent)
	if idx < 0 {
		idx = indexOfStatus(out.TechRecord, StatusProvisional)
	}
	if idx < 0 {
		return nil, 0, ErrNotFound
	}

	prior := CloneDocument(out.TechRecord[idx])

	archived := CloneDocument(prior)
	archived["statusCode"] = string(StatusArchived)
	out.TechRecord[idx] = archived

	next := CloneDocument(prior)
	mergeDocument(next, changes)
	stampSnapshot(next, user, now)
	out.TechRecord = append(out.TechRecord, next)

	return out, idx, nil
}

func indexOfStatus(recs []TechRecord, status StatusCode) int {
	for i, rec := range recs {
		if recordStatus(rec) == status {
			return i
		}
	}
	return -1
}

// mergeDocument 把 src 递归合并到 dst：对象逐字段下钻，其余类型整值覆盖。
func mergeDocument(dst, src Document) {
	for k, v := range src {
		if sub, ok := v.(Document); ok {
			if cur, ok := dst[k].(Document); ok {
				mergeDocument(cur, sub)
				continue
			}
			dst[k] = CloneDocument(sub)
			continue
		}
		dst[k] = cloneValue(v)
	}
}

// stampSnapshot 强制 provisional 状态并刷新审计字段。
func stampSnapshot(rec TechRecord, user AuditUser, now time.Time) {
	rec["statusCode"] = string(StatusProvisional)
	rec["createdAt"] = now.Format(time.RFC3339Nano)
	rec["createdByName"] = user.Name
	rec["createdById"] = user.ID
}

// derivePartialVin 取 VIN 的后六位（不足六位则整个 VIN）。
func derivePartialVin(vin string) string {
	if len(vin) <= 6 {
		return vin
	}
	return vin[len(vin)-6:]
}

// encodeVehicleRows 一条 techRecord 快照一行，车辆级标量做非前缀列。
func encodeVehicleRows(v *Vehicle) ([]FlatRow, error) {
	rows := make([]FlatRow, 0, len(v.TechRecord))
	for _, rec := range v.TechRecord {
		row, err := encodeSnapshotRow(v, rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func encodeSnapshotRow(v *Vehicle, rec TechRecord) (FlatRow, error) {
	row, err := Encode(rec, "techRecord")
	if err != nil {
		return nil, err
	}
	row["systemNumber"] = v.SystemNumber
	if ts, ok := rec["createdAt"].(string); ok && ts != "" {
		row["createdTimestamp"] = ts
	}
	if v.Vin != "" {
		row["vin"] = v.Vin
	}
	if v.PrimaryVrm != "" {
		row["primaryVrm"] = v.PrimaryVrm
	}
	if v.PartialVin != "" {
		row["partialVin"] = v.PartialVin
	}
	if v.TrailerID != "" {
		row["trailerId"] = v.TrailerID
	}
	if len(v.SecondaryVrms) > 0 {
		list := make([]any, len(v.SecondaryVrms))
		for i, s := range v.SecondaryVrms {
			list[i] = s
		}
		if err := EncodeValue(row, "secondaryVrms", list); err != nil {
			return nil, err
		}
	}
	return row, nil
}
