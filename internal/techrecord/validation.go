package techrecord

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MsUserDetails 调用方自带的审计身份（未启用 JWT 时的兜底来源）。
type MsUserDetails struct {
	MsUser string `json:"msUser"`
	MsOid  string `json:"msOid"`
}

// VehiclePayload POST /vehicles 的入站载荷。
// 号牌长度等约束沿用注册机构的规则：VRM 1~9 位。
type VehiclePayload struct {
	Vin           string         `json:"vin" validate:"required,min=1,max=21"`
	PrimaryVrm    string         `json:"primaryVrm" validate:"omitempty,min=1,max=9"`
	SecondaryVrms []string       `json:"secondaryVrms" validate:"omitempty,min=1,dive,min=1,max=9"`
	TrailerID     string         `json:"trailerId" validate:"omitempty,min=1,max=8"`
	TechRecord    []TechRecord   `json:"techRecord" validate:"required,min=1"`
	MsUserDetails *MsUserDetails `json:"msUserDetails"`
}

// UpdatePayload PUT /vehicles/:systemNumber/tech-records 的入站载荷。
// techRecord[0] 是要合并到最新快照上的字段变更。
type UpdatePayload struct {
	TechRecord    []TechRecord   `json:"techRecord" validate:"required,min=1"`
	MsUserDetails *MsUserDetails `json:"msUserDetails"`
}

var vehicleTypes = map[string]struct{}{
	"hgv": {},
	"psv": {},
	"trl": {},
}

// ValidateCreate 创建载荷校验：结构约束 + 每条快照的 vehicleType 白名单。
func ValidateCreate(p *VehiclePayload) error {
	if p == nil {
		return &BadRequestError{Msg: "payload required"}
	}
	if err := validate.Struct(p); err != nil {
		return &BadRequestError{Msg: err.Error()}
	}
	for _, rec := range p.TechRecord {
		vt, _ := rec["vehicleType"].(string)
		if _, ok := vehicleTypes[strings.ToLower(vt)]; !ok {
			return &BadRequestError{Msg: `"vehicleType" must be one of [hgv, psv, trl]`}
		}
	}
	return nil
}

// ValidateUpdate 更新载荷校验：必须带变更内容且注明变更原因。
func ValidateUpdate(p *UpdatePayload) error {
	if p == nil {
		return &BadRequestError{Msg: "payload required"}
	}
	if err := validate.Struct(p); err != nil {
		return &BadRequestError{Msg: err.Error()}
	}
	reason, _ := p.TechRecord[0]["reasonForCreation"].(string)
	if strings.TrimSpace(reason) == "" {
		return &BadRequestError{Msg: `"reasonForCreation" is required on update`}
	}
	return nil
}

// IsTankOrBattery ADR 车辆细分：罐车/电池车在校验上下文里走更严格的规则。
func IsTankOrBattery(rec TechRecord) bool {
	adr, ok := rec["adrDetails"].(Document)
	if !ok {
		return false
	}
	details, ok := adr["vehicleDetails"].(Document)
	if !ok {
		return false
	}
	t, _ := details["type"].(string)
	t = strings.ToLower(t)
	return strings.Contains(t, "tank") || strings.Contains(t, "battery")
}
