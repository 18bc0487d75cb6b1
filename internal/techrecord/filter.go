package techrecord

// ApplyStatusFilter 按请求的状态模式裁剪 techRecord 列表。
// 始终在深拷贝上操作；结果为空返回 ErrNotFound。
//
// PROVISIONAL_OVER_CURRENT 组合策略（每次都对照过滤前的原始列表评估）：
//  1. 记原始长度 L 与最新一条的状态 S0
//  2. 先按 PROVISIONAL 过滤
//  3. L == 1 且过滤结果非空且 S0 为 current/provisional：唯一快照即权威，原样返回
//  4. 过滤结果长度等于 L（全是 provisional，过滤无效果）或为空（没有
//     provisional）：改用 CURRENT 从原始列表重新过滤
//  5. 其余情况返回第 2 步的真子集
//
// 该规则对既有调用方是承重墙，长度相等与为空两个分支保持原样，不做“简化”。
func ApplyStatusFilter(v *Vehicle, f StatusFilter) (*Vehicle, error) {
	copied := v.Clone()
	if f == FilterAll {
		return copied, nil
	}
	return filterByStatus(copied, f)
}

func filterByStatus(v *Vehicle, f StatusFilter) (*Vehicle, error) {
	status := StatusCode(f)
	provisionalOverCurrent := false
	if f == FilterProvisionalOverCurrent {
		provisionalOverCurrent = true
		status = StatusProvisional
	}

	original := v.Clone()
	filtered := v.TechRecord[:0]
	for _, rec := range v.TechRecord {
		if recordStatus(rec) == status {
			filtered = append(filtered, rec)
		}
	}
	v.TechRecord = filtered

	length := len(original.TechRecord)
	if length == 0 {
		return nil, ErrNotFound
	}
	firstStatus := recordStatus(original.TechRecord[0])

	if provisionalOverCurrent && length == 1 && len(v.TechRecord) > 0 &&
		(firstStatus == StatusCurrent || firstStatus == StatusProvisional) {
		return v, nil
	}

	if provisionalOverCurrent &&
		(length == len(v.TechRecord) || len(v.TechRecord) == 0) {
		return filterByStatus(original, FilterCurrent)
	}

	if len(v.TechRecord) == 0 {
		return nil, ErrNotFound
	}
	return v, nil
}
