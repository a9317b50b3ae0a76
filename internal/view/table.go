package view

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"
)

// TableSpec 描述 headers/values 表格的展示。Highlight 与 Badge 是 expr 表达式，
// 按单元格求值，结果必须是 bool。可用变量：
//
//	label  行标签（第一格）
//	col    跳过首列后的列号
//	row    行号
//	value  单元格文本
type TableSpec struct {
	Title           string
	Icon            string
	HeaderRenames   map[string]string
	SkipFirstColumn bool
	RowNumbers      bool
	Highlight       string
	Badge           string
}

type cellEnv struct {
	Label string `expr:"label"`
	Col   int    `expr:"col"`
	Row   int    `expr:"row"`
	Value string `expr:"value"`
}

type table struct {
	spec      TableSpec
	highlight *exprvm.Program
	badge     *exprvm.Program
}

func compileRule(src string) (*exprvm.Program, error) {
	if src == "" {
		return nil, nil
	}
	program, err := exprlang.Compile(src, exprlang.Env(cellEnv{}), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", src, err)
	}
	return program, nil
}

func newTable(spec TableSpec) (*table, error) {
	hl, err := compileRule(spec.Highlight)
	if err != nil {
		return nil, err
	}
	badge, err := compileRule(spec.Badge)
	if err != nil {
		return nil, err
	}
	return &table{spec: spec, highlight: hl, badge: badge}, nil
}

// mustTable 用于包级定义，表达式写错属于编程错误
func mustTable(spec TableSpec) *table {
	t, err := newTable(spec)
	if err != nil {
		panic(err)
	}
	return t
}

type Cell struct {
	Text      string
	Highlight bool
	Badge     string
}

type Row struct {
	Number int
	Top3   bool
	Cells  []Cell
}

type Table struct {
	Title      string
	Icon       string
	RowNumbers bool
	Headers    []string
	Rows       []Row
}

// items r 为数组时返回元素，否则 nil
func items(r gjson.Result) []gjson.Result {
	if !r.IsArray() {
		return nil
	}
	return r.Array()
}

// rowValues 行可以是数组，也可以是 {"values": [...]}
func rowValues(r gjson.Result) []gjson.Result {
	if r.IsArray() {
		return r.Array()
	}
	if v := r.Get("values"); v.IsArray() {
		return v.Array()
	}
	return nil
}

func (t *table) build(headers, rows gjson.Result) Table {
	out := Table{
		Title:      t.spec.Title,
		Icon:       t.spec.Icon,
		RowNumbers: t.spec.RowNumbers,
	}
	for _, h := range items(headers) {
		name := h.String()
		if renamed, ok := t.spec.HeaderRenames[name]; ok {
			name = renamed
		}
		out.Headers = append(out.Headers, name)
	}

	for i, r := range items(rows) {
		values := rowValues(r)
		label := ""
		if len(values) > 0 {
			label = values[0].String()
		}
		if t.spec.SkipFirstColumn && len(values) > 0 {
			values = values[1:]
		}
		row := Row{Number: i + 1, Top3: i < 3}
		for col, v := range values {
			env := cellEnv{Label: label, Col: col, Row: i, Value: text(v, Dash)}
			cell := Cell{Text: env.Value}
			cell.Highlight = eval(t.highlight, env)
			if eval(t.badge, env) {
				cell.Badge = label
			}
			row.Cells = append(row.Cells, cell)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func eval(p *exprvm.Program, env cellEnv) bool {
	if p == nil {
		return false
	}
	v, err := exprlang.Run(p, env)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
