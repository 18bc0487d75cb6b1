package techrecord

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatForResponse 出站前的整理（纯函数，不动输入）：
// - primaryVrm + secondaryVrms 合并为有序 vrms 列表（primary 在前）
// - 原始 primaryVrm / secondaryVrms / partialVin 不再出现在响应里
// - techRecord 里的 euroStandard 无论存储类型一律转成字符串
//
// 两个号牌都没有的车辆也能正常整理（vrms 为空）。
func FormatForResponse(v *Vehicle) *Vehicle {
	out := v.Clone()

	vrms := make([]Vrm, 0, 1+len(out.SecondaryVrms))
	if out.PrimaryVrm != "" {
		vrms = append(vrms, Vrm{Vrm: out.PrimaryVrm, IsPrimary: true})
	}
	for _, s := range out.SecondaryVrms {
		vrms = append(vrms, Vrm{Vrm: s, IsPrimary: false})
	}
	out.Vrms = vrms

	out.PrimaryVrm = ""
	out.SecondaryVrms = nil
	out.PartialVin = ""

	for _, rec := range out.TechRecord {
		if es, ok := rec["euroStandard"]; ok && es != nil {
			rec["euroStandard"] = scalarString(es)
		}
	}
	return out
}

// scalarString 标量的文本形式。数字保持存储时的字面量（json.Number）。
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(s)
	}
}
