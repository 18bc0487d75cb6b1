package techrecord

import (
	"fmt"
	"strings"
)

// GroupRows 把按 systemNumber 排好序的行流（同车内最新记录在前）切分成
// 车辆聚合。
//
// 每行：
//   - 不带分隔符的标量键是车辆级字段，组内首个出现者生效，后续重复忽略
//   - 带分隔符的键整体解码成嵌套文档，其中 techRecord 子树就是该行的快照，
//     其余容器（如 secondaryVrms）并回车辆级，同样首个出现者生效
//
// systemNumber 变化即为分组边界；输入耗尽后兜底输出最后一组。
// 空输入输出零辆车，是否按“未找到”处理由调用方决定。
func GroupRows(rows []FlatRow) ([]*Vehicle, error) {
	vehicles := []*Vehicle{}
	var acc *vehicleAccumulator

	for _, row := range rows {
		top := Document{}
		prefixed := FlatRow{}
		for key, value := range row {
			if !strings.Contains(key, Delimiter) {
				top[key] = value
				continue
			}
			prefixed[key] = value
		}

		sysNum, _ := top["systemNumber"].(string)
		if sysNum == "" {
			return nil, fmt.Errorf("%w: row has no systemNumber grouping key", ErrMalformedEncoding)
		}

		doc, err := DecodeRow(prefixed)
		if err != nil {
			return nil, err
		}
		rec, ok := doc["techRecord"].(Document)
		if !ok {
			return nil, fmt.Errorf("%w: row for %s carries no techRecord attributes", ErrMalformedEncoding, sysNum)
		}

		if acc != nil && acc.systemNumber != sysNum {
			vehicles = append(vehicles, acc.build())
			acc = nil
		}
		if acc == nil {
			acc = &vehicleAccumulator{systemNumber: sysNum, top: Document{}}
		}
		acc.absorb(top, doc)
		acc.records = append(acc.records, rec)
	}

	if acc != nil {
		vehicles = append(vehicles, acc.build())
	}
	return vehicles, nil
}

type vehicleAccumulator struct {
	systemNumber string
	top          Document
	records      []TechRecord
}

// absorb 合并一行的车辆级字段，先到先得。
func (a *vehicleAccumulator) absorb(top Document, decoded Document) {
	for k, v := range top {
		if _, exists := a.top[k]; !exists {
			a.top[k] = v
		}
	}
	for k, v := range decoded {
		if k == "techRecord" {
			continue
		}
		if _, exists := a.top[k]; !exists {
			a.top[k] = v
		}
	}
}

func (a *vehicleAccumulator) build() *Vehicle {
	v := &Vehicle{
		SystemNumber: a.systemNumber,
		TechRecord:   a.records,
	}
	v.Vin = stringField(a.top, "vin")
	v.PrimaryVrm = stringField(a.top, "primaryVrm")
	v.PartialVin = stringField(a.top, "partialVin")
	v.TrailerID = stringField(a.top, "trailerId")
	if list, ok := a.top["secondaryVrms"].([]any); ok {
		for _, e := range list {
			if s, ok := e.(string); ok {
				v.SecondaryVrms = append(v.SecondaryVrms, s)
			}
		}
	}
	return v
}

func stringField(doc Document, key string) string {
	s, _ := doc[key].(string)
	return s
}
