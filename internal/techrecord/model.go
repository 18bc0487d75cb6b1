package techrecord

import (
	"strings"
)

// StatusCode 技术记录快照的生命周期状态（持久化为字符串）。
type StatusCode string

const (
	StatusProvisional StatusCode = "provisional" // 在途草稿（新建/更新后的最新快照）
	StatusCurrent     StatusCode = "current"     // 已生效快照（同一车辆最多一条）
	StatusArchived    StatusCode = "archived"    // 历史快照（只增不删）
)

// StatusFilter 查询时的状态过滤模式。
// PROVISIONAL_OVER_CURRENT 是组合策略，不是持久化状态。
type StatusFilter string

const (
	FilterAll                    StatusFilter = "all"
	FilterCurrent                StatusFilter = "current"
	FilterProvisional            StatusFilter = "provisional"
	FilterArchived               StatusFilter = "archived"
	FilterProvisionalOverCurrent StatusFilter = "provisional_over_current"
)

// ParseStatusFilter 解析 status 查询参数（大小写不敏感）。
// 空串返回默认值 PROVISIONAL_OVER_CURRENT。
func ParseStatusFilter(s string) (StatusFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FilterProvisionalOverCurrent, nil
	}
	switch StatusFilter(s) {
	case FilterAll, FilterCurrent, FilterProvisional, FilterArchived, FilterProvisionalOverCurrent:
		return StatusFilter(s), nil
	}
	return "", &BadRequestError{Msg: "invalid status filter: " + s}
}

// SearchCriteria 检索维度（对应存储层的不同索引）。
type SearchCriteria string

const (
	CriteriaAll          SearchCriteria = "all"
	CriteriaSystemNumber SearchCriteria = "systemNumber"
	CriteriaVin          SearchCriteria = "vin"
	CriteriaPartialVin   SearchCriteria = "partialVin"
	CriteriaVrm          SearchCriteria = "vrm"
	CriteriaTrailerID    SearchCriteria = "trailerId"
)

// ParseSearchCriteria 解析 searchCriteria 查询参数，空串默认 all。
func ParseSearchCriteria(s string) (SearchCriteria, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CriteriaAll, nil
	}
	switch SearchCriteria(s) {
	case CriteriaAll, CriteriaSystemNumber, CriteriaVin, CriteriaPartialVin, CriteriaVrm, CriteriaTrailerID:
		return SearchCriteria(s), nil
	}
	return "", &BadRequestError{Msg: "invalid search criteria: " + s}
}

// Document 树形动态文档：叶子只能是标量（string / number / bool）。
type Document = map[string]any

// TechRecord 一条技术记录快照。除 statusCode / createdAt / createdByName /
// createdById 外，字段随车辆类型任意嵌套。
type TechRecord = Document

// FlatRow 扁平行：分隔符拼接的路径键 -> 标量值。
// 存储层一行对应一条 techRecord 快照，车辆级标量列不带前缀。
type FlatRow map[string]any

// Vrm 车辆登记号牌。一辆车最多一个 primary，其余为 secondary。
type Vrm struct {
	Vrm       string `json:"vrm"`
	IsPrimary bool   `json:"isPrimary"`
}

// Vehicle 聚合根。techRecord 顺序即行流顺序（查询时最新在前）。
// primaryVrm / secondaryVrms / partialVin 是入站与存储侧的原始字段，
// 出站前由 FormatForResponse 合并进 vrms 并清除。
type Vehicle struct {
	SystemNumber  string       `json:"systemNumber"`
	Vin           string       `json:"vin"`
	PrimaryVrm    string       `json:"primaryVrm,omitempty"`
	SecondaryVrms []string     `json:"secondaryVrms,omitempty"`
	PartialVin    string       `json:"partialVin,omitempty"`
	TrailerID     string       `json:"trailerId,omitempty"`
	Vrms          []Vrm        `json:"vrms,omitempty"`
	TechRecord    []TechRecord `json:"techRecord"`
}

// Clone 深拷贝整个聚合（过滤/格式化前必须复制，绝不改共享输入）。
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	out := *v
	if v.SecondaryVrms != nil {
		out.SecondaryVrms = append([]string(nil), v.SecondaryVrms...)
	}
	if v.Vrms != nil {
		out.Vrms = append([]Vrm(nil), v.Vrms...)
	}
	if v.TechRecord != nil {
		out.TechRecord = make([]TechRecord, len(v.TechRecord))
		for i, rec := range v.TechRecord {
			out.TechRecord[i] = CloneDocument(rec)
		}
	}
	return &out
}

// CloneDocument 深拷贝一棵文档树。
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return CloneDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// recordStatus 读取快照的 statusCode（缺失时返回空串）。
func recordStatus(rec TechRecord) StatusCode {
	s, _ := rec["statusCode"].(string)
	return StatusCode(s)
}
