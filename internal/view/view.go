// view 把 widget 快照（原始 JSON 工具输出）渲染成 HTML。
//
// 视图是快照与所引用图片当前状态的纯函数，从不修改快照，只有三种结果：
// 还没有快照为 NoData，快照格式不对或集合为空为 EmptyData，其余为 Populated
package view

import (
	"bytes"
	"errors"
	"log/slog"

	"cricchat.local/internal/imageresolve"
	"github.com/tidwall/gjson"
)

type State int

const (
	NoData State = iota
	EmptyData
	Populated
)

func (s State) String() string {
	switch s {
	case NoData:
		return "no_data"
	case EmptyData:
		return "empty"
	case Populated:
		return "populated"
	}
	return "unknown"
}

type Output struct {
	State State
	HTML  string
}

// ImageKind 决定图片占位使用哪组候选
type ImageKind int

const (
	Face ImageKind = iota
	News
)

func (k ImageKind) String() string {
	if k == News {
		return "news"
	}
	return "face"
}

// ImageBinder 把本次渲染中的图片占位绑定到解析生命周期并返回当前状态。
// key 在一个视图内标识占位，同一 key 换了 id 会重新开始
type ImageBinder interface {
	Image(key string, kind ImageKind, id, fallback string) imageresolve.State
}

type View interface {
	Name() string
	RootID() string
	Render(snapshot []byte, images ImageBinder) Output
}

var ErrMountTargetMissing = errors.New("mount target missing")

// widget 唯一的 View 实现，各 widget 提供 build 把文档转成模板数据
type widget struct {
	name    string
	root    string
	loading string
	// build 返回模板数据以及文档是否有内容
	build func(doc gjson.Result, images ImageBinder) (any, bool)
}

func (w *widget) Name() string   { return w.name }
func (w *widget) RootID() string { return w.root }

type page struct {
	Root    string
	State   string
	Loading string
	Data    any
}

func (w *widget) Render(snapshot []byte, images ImageBinder) Output {
	if images == nil {
		images = NoImages
	}
	st, data := w.evaluate(snapshot, images)

	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, w.name, page{
		Root:    w.root,
		State:   st.String(),
		Loading: w.loading,
		Data:    data,
	})
	if err != nil {
		// 模板是静态的，走到这里说明模板本身有问题
		slog.Error("render widget", "widget", w.name, "err", err)
		return Output{State: st}
	}
	return Output{State: st, HTML: buf.String()}
}

func (w *widget) evaluate(snapshot []byte, images ImageBinder) (State, any) {
	if len(bytes.TrimSpace(snapshot)) == 0 {
		return NoData, nil
	}
	if !gjson.ValidBytes(snapshot) {
		data, _ := w.build(gjson.Result{}, images)
		return EmptyData, data
	}
	doc := gjson.ParseBytes(snapshot)
	if doc.Type == gjson.Null {
		return NoData, nil
	}
	if !doc.IsObject() {
		data, _ := w.build(gjson.Result{}, images)
		return EmptyData, data
	}
	data, ok := w.build(doc, images)
	if !ok {
		return EmptyData, data
	}
	return Populated, data
}

type noImages struct{}

func (noImages) Image(_ string, _ ImageKind, id, fallback string) imageresolve.State {
	if id == "" && fallback != "" {
		return imageresolve.State{Kind: imageresolve.Resolved, URL: fallback}
	}
	return imageresolve.State{Kind: imageresolve.Failed}
}

// NoImages 不加载任何图片：fallback 原样使用，其余显示占位符
var NoImages ImageBinder = noImages{}
