package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/outleap/goleap/leap"
	"github.com/outleap/goleap/llsd"
)

// Rect is a widget's extent in window coordinates, unclipped by its
// parents.
type Rect struct {
	Bottom int
	Left   int
	Right  int
	Top    int
}

// ElementInfo is the decoded getInfo payload for one widget.
type ElementInfo struct {
	Available    bool
	ClassName    string
	Enabled      bool
	EnabledChain bool
	Rect         Rect
	Value        any
	Visible      bool
	VisibleChain bool
}

// ElementTree is a client-side cache of the viewer's UI hierarchy: the set
// of known paths, a parent-to-children index, and per-path info where it
// has been fetched. It is not safe for concurrent use.
type ElementTree struct {
	window *Window

	// info holds every known path. A nil value is a path the viewer
	// reported but whose details have not been fetched (or are
	// unfetchable).
	info     map[string]*ElementInfo
	children map[string][]UIPath
}

func NewElementTree(w *Window) *ElementTree {
	return &ElementTree{
		window:   w,
		info:     make(map[string]*ElementInfo),
		children: make(map[string][]UIPath),
	}
}

// Len returns the number of known paths.
func (t *ElementTree) Len() int { return len(t.info) }

// Contains reports whether path is in the tree.
func (t *ElementTree) Contains(path UIPath) bool {
	_, ok := t.info[path.String()]
	return ok
}

// Info returns the fetched info for path. ok is false both for unknown
// paths and known paths with no fetched info.
func (t *ElementTree) Info(path UIPath) (info *ElementInfo, ok bool) {
	info = t.info[path.String()]
	return info, info != nil
}

// Children returns path's children in the viewer's reported order.
func (t *ElementTree) Children(path UIPath) []UIPath {
	return append([]UIPath(nil), t.children[path.String()]...)
}

// RootChildren returns the top-level elements.
func (t *ElementTree) RootChildren() []UIPath {
	return t.Children(UIPath{})
}

// Paths returns every known path, unordered.
func (t *ElementTree) Paths() []UIPath {
	out := make([]UIPath, 0, len(t.info))
	for key := range t.info {
		out = append(out, ParsePath(key))
	}
	return out
}

// Refresh rebuilds the whole tree. See RefreshSubtree.
func (t *ElementTree) Refresh(ctx context.Context, fetchInfo bool) error {
	return t.RefreshSubtree(ctx, UIPath{}, fetchInfo)
}

// RefreshSubtree drops everything under a path and re-lists it from the
// viewer. Info already fetched for paths that still exist is kept; with
// fetchInfo, every listed path's info is fetched afterwards.
func (t *ElementTree) RefreshSubtree(ctx context.Context, under UIPath, fetchInfo bool) error {
	old := make(map[string]*ElementInfo)
	for key, info := range t.info {
		if ParsePath(key).IsRelativeTo(under) {
			old[key] = info
			delete(t.info, key)
			delete(t.children, key)
		}
	}

	paths, err := t.window.GetPaths(ctx, under)
	if err != nil {
		return err
	}
	for _, path := range paths {
		key := path.String()
		if _, ok := t.info[key]; ok {
			continue
		}
		t.info[key] = old[key]
		if !path.IsRoot() {
			// The parent may sit outside the refreshed subtree and already
			// list this child from an earlier pass.
			parentKey := path.Parent().String()
			if !containsPath(t.children[parentKey], path) {
				t.children[parentKey] = append(t.children[parentKey], path)
			}
		}
	}

	if fetchInfo {
		return t.FetchInfo(ctx, paths)
	}
	return nil
}

// FetchInfo fetches and decodes info for the given paths. All requests go
// out before any reply is awaited, so a large batch costs one round trip's
// latency. Paths the viewer calls invalid stay in the tree with nil info.
func (t *ElementTree) FetchInfo(ctx context.Context, paths []UIPath) error {
	reqs := make([]*leap.Request, len(paths))
	for i, path := range paths {
		req, err := t.window.client.Command(t.window.pump, "getInfo", llsd.Map{"path": path.String()})
		if err != nil {
			return err
		}
		reqs[i] = req
	}

	for i, req := range reqs {
		reply, err := req.Wait(ctx)
		if err != nil {
			return err
		}
		key := paths[i].String()
		if msg, ok := reply["error"].(string); ok && msg != "" {
			// The viewer refuses getInfo for a few path shapes it itself
			// reported. Keep the path, record no info.
			if strings.Contains(msg, "request specified invalid") {
				t.info[key] = nil
				continue
			}
			return fmt.Errorf("api: getInfo %s: %s", key, msg)
		}
		t.info[key] = decodeElementInfo(reply)
	}
	return nil
}

// decodeElementInfo maps a getInfo reply onto ElementInfo. Boolean fields
// may arrive as integers; the viewer serializes its legacy BOOL type that
// way.
func decodeElementInfo(reply llsd.Map) *ElementInfo {
	rect, _ := reply["rect"].(llsd.Map)
	return &ElementInfo{
		Available:    asBool(reply["available"]),
		ClassName:    asString(reply["class"]),
		Enabled:      asBool(reply["enabled"]),
		EnabledChain: asBool(reply["enabled_chain"]),
		Rect: Rect{
			Bottom: asInt(rect["bottom"]),
			Left:   asInt(rect["left"]),
			Right:  asInt(rect["right"]),
			Top:    asInt(rect["top"]),
		},
		Value:        reply["value"],
		Visible:      asBool(reply["visible"]),
		VisibleChain: asBool(reply["visible_chain"]),
	}
}

func containsPath(list []UIPath, p UIPath) bool {
	for _, q := range list {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
