package techrecord

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Delimiter 扁平键的路径分隔符。
// 约束（必须由写入方保证）：字段名本身不得包含分隔符，Encode 对此快速失败。
const Delimiter = "_"

// Encode 把一棵嵌套文档编码为扁平行，所有键带 prefix 前缀。
//
// 规则：
// - null 值整体跳过（“无值”的编码就是键不存在）
// - 标量直接落在 prefix_字段名 下
// - 嵌套对象带扩展前缀递归
// - 数组逐元素递归，前缀追加下标（从 0 起）
func Encode(doc Document, prefix string) (FlatRow, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: encode prefix is empty", ErrMalformedEncoding)
	}
	row := FlatRow{}
	if err := encodeInto(row, prefix, doc); err != nil {
		return nil, err
	}
	return row, nil
}

// EncodeValue 把单个值（标量/对象/数组）编码进已有扁平行，键以 key 为根。
// 车辆级的 secondaryVrms 列表走这里。
func EncodeValue(row FlatRow, key string, v any) error {
	if strings.Contains(key, Delimiter) {
		return fmt.Errorf("%w: field name %q contains delimiter", ErrMalformedEncoding, key)
	}
	return encodeValue(row, key, v)
}

func encodeInto(row FlatRow, prefix string, doc Document) error {
	for key, value := range doc {
		if value == nil {
			continue
		}
		if strings.Contains(key, Delimiter) {
			return fmt.Errorf("%w: field name %q contains delimiter", ErrMalformedEncoding, key)
		}
		if err := encodeValue(row, prefix+Delimiter+key, value); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(row FlatRow, fullKey string, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case Document:
		return encodeInto(row, fullKey, v)
	case []any:
		for i, elem := range v {
			if elem == nil {
				continue
			}
			if err := encodeValue(row, fullKey+Delimiter+strconv.Itoa(i), elem); err != nil {
				return err
			}
		}
		return nil
	default:
		if !IsScalar(value) {
			// 既非容器也非合法标量的值不进存储（与 null 同等对待）
			return nil
		}
		row[fullKey] = value
		return nil
	}
}

// IsScalar 判断值是否为可存储的标量。
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		json.Number:
		return true
	}
	return false
}

// pathToken 路径段：字段名或数组下标二选一。
type pathToken struct {
	name    string
	index   int
	isIndex bool
}

// parseKey 把扁平键拆成类型化路径段。纯数字段视为数组下标。
func parseKey(key string) ([]pathToken, error) {
	parts := strings.Split(key, Delimiter)
	tokens := make([]pathToken, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty path segment in key %q", ErrMalformedEncoding, key)
		}
		if idx, err := strconv.Atoi(p); err == nil && idx >= 0 && !strings.HasPrefix(p, "-") {
			tokens = append(tokens, pathToken{index: idx, isIndex: true})
			continue
		}
		tokens = append(tokens, pathToken{name: p})
	}
	return tokens, nil
}

type nodeKind int

const (
	kindLeaf nodeKind = iota
	kindObject
	kindArray
)

// node 解码中间树。先把所有键解析成段插进来，形状完全已知后再物化，
// 容器类型冲突（同一键既当对象又当数组）在插入阶段即报错。
type node struct {
	kind   nodeKind
	leaf   any
	fields map[string]*node
	elems  map[int]*node
}

func (n *node) child(t pathToken, key string) (*node, error) {
	want := kindObject
	if t.isIndex {
		want = kindArray
	}
	if n.kind == kindLeaf && n.leaf != nil {
		return nil, fmt.Errorf("%w: key %q addresses into a scalar", ErrMalformedEncoding, key)
	}
	if n.fields == nil && n.elems == nil {
		n.kind = want
		if want == kindObject {
			n.fields = map[string]*node{}
		} else {
			n.elems = map[int]*node{}
		}
	} else if n.kind != want {
		return nil, fmt.Errorf("%w: key %q mixes array and object addressing", ErrMalformedEncoding, key)
	}
	if t.isIndex {
		c, ok := n.elems[t.index]
		if !ok {
			c = &node{}
			n.elems[t.index] = c
		}
		return c, nil
	}
	c, ok := n.fields[t.name]
	if !ok {
		c = &node{}
		n.fields[t.name] = c
	}
	return c, nil
}

func (n *node) insert(tokens []pathToken, key string, value any) error {
	cur := n
	for _, t := range tokens {
		c, err := cur.child(t, key)
		if err != nil {
			return err
		}
		cur = c
	}
	if cur.kind != kindLeaf || cur.leaf != nil {
		return fmt.Errorf("%w: key %q terminates inside a container", ErrMalformedEncoding, key)
	}
	cur.leaf = value
	return nil
}

func (n *node) materialize() any {
	switch n.kind {
	case kindObject:
		doc := make(Document, len(n.fields))
		for name, c := range n.fields {
			doc[name] = c.materialize()
		}
		return doc
	case kindArray:
		idxs := make([]int, 0, len(n.elems))
		for i := range n.elems {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)
		out := make([]any, 0, len(idxs))
		for _, i := range idxs {
			out = append(out, n.elems[i].materialize())
		}
		return out
	default:
		return n.leaf
	}
}

// DecodeRow 把一行扁平键值还原成嵌套文档。
//
// 两遍处理：先把全部键解析成路径段并插入类型树（此时任何结构不一致都会
// 暴露出来），再一次性物化容器。数组按下标升序还原，元素顺序得以保留。
func DecodeRow(row FlatRow) (Document, error) {
	root := &node{kind: kindObject, fields: map[string]*node{}}
	for key, value := range row {
		tokens, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		if tokens[0].isIndex {
			return nil, fmt.Errorf("%w: key %q starts with an array index", ErrMalformedEncoding, key)
		}
		if err := root.insert(tokens, key, value); err != nil {
			return nil, err
		}
	}
	doc, _ := root.materialize().(Document)
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
