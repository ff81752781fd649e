package api

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/outleap/goleap/internal/testutil/testlog"
	"github.com/outleap/goleap/llsd"
)

func TestUICallShape(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	ui := NewUI(c)

	if err := ui.Call("Advanced.ToggleConsole", "debug"); err != nil {
		t.Fatalf("call: %v", err)
	}
	cmd := v.lastCmd(t)
	if cmd.pump != UIPump {
		t.Fatalf("pump: got %q", cmd.pump)
	}
	want := llsd.Map{"op": "call", "function": "Advanced.ToggleConsole", "parameter": "debug"}
	if !reflect.DeepEqual(cmd.data, want) {
		t.Fatalf("payload: got %#v", cmd.data)
	}
}

func TestUIGetValue(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	v.respond = func(_ string, data llsd.Map) llsd.Map {
		if data["op"] == "getValue" && data["path"] == "/chat/input" {
			return llsd.Map{"value": "hello"}
		}
		return nil
	}
	ui := NewUI(c)

	got, err := ui.GetValue(testCtx(t), ParsePath("/chat/input"))
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %#v", got)
	}
}

func TestViewerControlGetAndVars(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	v.respond = func(_ string, data llsd.Map) llsd.Map {
		switch data["op"] {
		case "get":
			return llsd.Map{"value": 42, "type": "U32"}
		case "vars":
			return llsd.Map{"vars": []any{llsd.Map{"name": "RenderFarClip"}}}
		}
		return nil
	}
	vc := NewViewerControl(c)

	reply, err := vc.Get(testCtx(t), "Global", "RenderFarClip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reply["value"] != 42 {
		t.Fatalf("reply: got %#v", reply)
	}

	vars, err := vc.Vars(testCtx(t), "Global")
	if err != nil {
		t.Fatalf("vars: %v", err)
	}
	if len(vars) != 1 {
		t.Fatalf("vars: got %#v", vars)
	}
}

func TestViewerControlSetShape(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	vc := NewViewerControl(c)

	if err := vc.Set("Global", "RenderFarClip", 128); err != nil {
		t.Fatalf("set: %v", err)
	}
	want := llsd.Map{"op": "set", "group": "Global", "key": "RenderFarClip", "value": 128}
	if got := v.lastCmd(t).data; !reflect.DeepEqual(got, want) {
		t.Fatalf("payload: got %#v", got)
	}
}

func TestSaveSnapshotDefaults(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	v.respond = func(_ string, data llsd.Map) llsd.Map {
		if data["op"] == "saveSnapshot" {
			return llsd.Map{"ok": true}
		}
		return nil
	}
	vw := NewViewerWindow(c)

	ok, err := vw.SaveSnapshot(testCtx(t), "/tmp/shot.png", SnapshotOptions{})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("snapshot reported failure")
	}
	data := v.lastCmd(t).data
	if data["showhud"] != true || data["showui"] != true || data["rebuild"] != false {
		t.Fatalf("defaults: %#v", data)
	}
	if data["type"] != "COLOR" {
		t.Fatalf("type: %#v", data["type"])
	}
	if _, ok := data["width"]; ok {
		t.Fatalf("width should be omitted: %#v", data)
	}
}

func TestSaveSnapshotOptions(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	v.respond = func(_ string, data llsd.Map) llsd.Map { return llsd.Map{"ok": false} }
	vw := NewViewerWindow(c)

	ok, err := vw.SaveSnapshot(testCtx(t), "/tmp/depth.png", SnapshotOptions{
		Width:   640,
		Height:  480,
		HideUI:  true,
		HideHUD: true,
		Type:    "DEPTH",
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if ok {
		t.Fatalf("expected failure report")
	}
	data := v.lastCmd(t).data
	if data["width"] != 640 || data["height"] != 480 {
		t.Fatalf("dimensions: %#v", data)
	}
	if data["showhud"] != false || data["showui"] != false || data["type"] != "DEPTH" {
		t.Fatalf("options: %#v", data)
	}
}

func TestRequestReshapeShape(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	vw := NewViewerWindow(c)

	if err := vw.RequestReshape(1280, 720); err != nil {
		t.Fatalf("reshape: %v", err)
	}
	want := llsd.Map{"op": "requestReshape", "w": 1280, "h": 720}
	if got := v.lastCmd(t).data; !reflect.DeepEqual(got, want) {
		t.Fatalf("payload: got %#v", got)
	}
}

func TestDispatchDefaults(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	d := NewCommandDispatcher(c)

	if err := d.Dispatch("agent", DispatchOptions{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	data := v.lastCmd(t).data
	if data["cmd"] != "agent" || data["trusted"] != true {
		t.Fatalf("payload: %#v", data)
	}
	if params := data["params"].([]any); len(params) != 0 {
		t.Fatalf("params: %#v", params)
	}
	if query := data["query"].(llsd.Map); len(query) != 0 {
		t.Fatalf("query: %#v", query)
	}
}

func TestDispatchOptions(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	d := NewCommandDispatcher(c)

	err := d.Dispatch("agent", DispatchOptions{
		Params:    []string{"self", "about"},
		Query:     map[string]string{"k": "v"},
		Untrusted: true,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	data := v.lastCmd(t).data
	if data["trusted"] != false {
		t.Fatalf("trusted: %#v", data)
	}
	if !reflect.DeepEqual(data["params"], []any{"self", "about"}) {
		t.Fatalf("params: %#v", data["params"])
	}
}

func TestAgentLookAt(t *testing.T) {
	testlog.Start(t)
	c, v := connectedViewer(t)
	a := NewAgent(c)

	id := uuid.MustParse("d9ae6dd3-8dcd-4fa1-a8bc-e4ea74f3a2ff")
	if err := a.LookAt(LookAtTarget{Object: id}); err != nil {
		t.Fatalf("look at: %v", err)
	}
	data := v.lastCmd(t).data
	if data["obj_uuid"] != id || data["type"] != 8 {
		t.Fatalf("payload: %#v", data)
	}

	if err := a.LookAt(LookAtTarget{Position: []float64{1, 2, 3}, Type: 2}); err != nil {
		t.Fatalf("look at position: %v", err)
	}
	data = v.lastCmd(t).data
	if data["type"] != 2 {
		t.Fatalf("type: %#v", data)
	}
	if !reflect.DeepEqual(data["position"], []any{1.0, 2.0, 3.0}) {
		t.Fatalf("position: %#v", data["position"])
	}

	if err := a.LookAt(LookAtTarget{}); !errors.Is(err, ErrNoLookTarget) {
		t.Fatalf("got %v want ErrNoLookTarget", err)
	}
}
