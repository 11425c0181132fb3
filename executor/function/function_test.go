// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package function

import (
	"context"
	"testing"
	"time"

	"github.com/pingcap/fexec/pkg/clock"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/plan"
	"github.com/pingcap/fexec/pkg/serialized"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echo(_ *Context, args []*serialized.Value) (any, error) {
	return string(args[0].Data), nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", echo, Schema{MinArgs: 1, MaxArgs: 1}))
	err := reg.Register("echo", echo, Schema{})
	require.True(t, errors.Is(err, errors.ErrHandlerAlreadyRegistered))
	for _, bad := range []Schema{
		{MinArgs: 2, MaxArgs: 1},
		{MinArgs: -1},
		{MaxArgs: -1},
		{NoArgs: true, MinArgs: 1},
	} {
		err = reg.Register("bad", echo, bad)
		require.True(t, errors.Is(err, errors.ErrInvalidArgument), "%+v", bad)
	}
	require.NoError(t, reg.Register("any", echo, Schema{}))

	f, err := reg.Lookup("echo")
	require.NoError(t, err)
	require.Equal(t, "echo", f.Name)
	_, err = reg.Lookup("missing")
	require.True(t, errors.Is(err, errors.ErrHandlerNotRegistered))
	require.Equal(t, []string{"any", "echo"}, reg.Names())
}

func TestSchemaCheck(t *testing.T) {
	t.Parallel()

	jsonArg := serialized.Manifest{Encoding: serialized.EncodingUTF8JSON}
	textArg := serialized.Manifest{Encoding: serialized.EncodingUTF8Text}
	cases := []struct {
		schema Schema
		args   []serialized.Manifest
		ok     bool
	}{
		{Schema{MinArgs: 1, MaxArgs: 1}, []serialized.Manifest{jsonArg}, true},
		{Schema{MinArgs: 1, MaxArgs: 1}, nil, false},
		{Schema{}, []serialized.Manifest{jsonArg, textArg, jsonArg}, true},
		{Schema{MinArgs: 1, MaxArgs: 2}, []serialized.Manifest{jsonArg, jsonArg, jsonArg}, false},
		{Schema{}, nil, true},
		{Schema{}, []serialized.Manifest{jsonArg, textArg}, true},
		{Schema{MinArgs: 2}, []serialized.Manifest{jsonArg, textArg, jsonArg}, true},
		{Schema{NoArgs: true}, nil, true},
		{Schema{NoArgs: true}, []serialized.Manifest{jsonArg}, false},
		{Schema{Accepts: []serialized.Encoding{serialized.EncodingUTF8JSON}}, []serialized.Manifest{jsonArg}, true},
		{Schema{Accepts: []serialized.Encoding{serialized.EncodingUTF8JSON}}, []serialized.Manifest{textArg}, false},
	}
	for i, c := range cases {
		err := c.schema.Check(c.args)
		if c.ok {
			require.NoError(t, err, "case %d", i)
		} else {
			require.True(t, errors.Is(err, errors.ErrArgumentSchemaMismatch), "case %d: %v", i, err)
		}
	}
	require.Equal(t, serialized.EncodingUTF8JSON, Schema{}.OutputEncoding())
	require.Equal(t, serialized.EncodingBinary, Schema{Output: serialized.EncodingBinary}.OutputEncoding())
}

func TestLoadApplication(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister("echo-handler", echo, Schema{MinArgs: 1, MaxArgs: 1})

	code, err := PackApplication(AppManifest{
		Name:    "app",
		Version: "1",
		Functions: map[string]FunctionEntry{
			"echo":    {Handler: "echo-handler"},
			"missing": {Handler: "nobody"},
		},
	}, map[string][]byte{"data/greeting.txt": []byte("hi")})
	require.NoError(t, err)

	app, err := LoadApplication(code)
	require.NoError(t, err)
	require.Equal(t, []string{"data/greeting.txt", ManifestFile}, app.Files())
	content, ok := app.ReadFile("data/greeting.txt")
	require.True(t, ok)
	require.Equal(t, "hi", string(content))

	ref := plan.FunctionRef{Namespace: "ns", ApplicationName: "app", FunctionName: "echo", ApplicationVersion: "1"}
	f, err := app.Bind(ref, reg)
	require.NoError(t, err)
	require.Equal(t, "echo-handler", f.Name)

	ref.FunctionName = "missing"
	_, err = app.Bind(ref, reg)
	require.True(t, errors.Is(err, errors.ErrHandlerNotRegistered))

	ref.FunctionName = "other"
	_, err = app.Bind(ref, reg)
	require.True(t, errors.Is(err, errors.ErrFunctionNotFound))

	ref.FunctionName = "echo"
	ref.ApplicationVersion = "2"
	_, err = app.Bind(ref, reg)
	require.True(t, errors.Is(err, errors.ErrApplicationCodeInvalid))
}

func TestLoadApplicationInvalid(t *testing.T) {
	t.Parallel()

	_, err := LoadApplication(nil)
	require.True(t, errors.Is(err, errors.ErrApplicationCodeInvalid))

	notZip := serialized.NewObjectFromBytes(serialized.EncodingBinaryZip, []byte("not a zip"))
	_, err = LoadApplication(notZip)
	require.True(t, errors.Is(err, errors.ErrApplicationCodeInvalid))

	text := serialized.NewObjectFromBytes(serialized.EncodingUTF8Text, []byte("x"))
	_, err = LoadApplication(text)
	require.True(t, errors.Is(err, errors.ErrApplicationCodeInvalid))

	code, err := PackApplication(AppManifest{Name: "app"}, nil)
	require.NoError(t, err)
	_, err = LoadApplication(code)
	require.True(t, errors.Is(err, errors.ErrApplicationCodeInvalid))

	code, err = PackApplication(AppManifest{Functions: map[string]FunctionEntry{"f": {}}}, nil)
	require.NoError(t, err)
	code.Data[len(code.Data)-1] ^= 0xff
	_, err = LoadApplication(code)
	require.True(t, errors.Is(err, errors.ErrApplicationCodeInvalid))
}

type recordingReporter struct {
	progress []float64
	state    map[string]*serialized.Object
}

func (r *recordingReporter) ReportProgress(current float64, _ *float64) error {
	r.progress = append(r.progress, current)
	return nil
}

func (r *recordingReporter) EmitPlanUpdate(u *plan.Update) (*plan.Update, error) {
	return u, nil
}

func (r *recordingReporter) GetState(_ context.Context, key string) (*serialized.Object, error) {
	return r.state[key], nil
}

func (r *recordingReporter) SetState(_ context.Context, key string, value *serialized.Object) error {
	r.state[key] = value
	return nil
}

func TestContext(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{state: make(map[string]*serialized.Object)}
	ctx := NewContext(context.Background(), Info{FunctionCallID: "c1"}, rep, clock.NewMock(), zap.NewNop())

	require.NoError(t, ctx.ReportProgress(1, 10))
	require.NoError(t, ctx.ReportProgressUnknownTotal(2))
	require.Equal(t, []float64{1, 2}, rep.progress)

	var got map[string]int
	ok, err := ctx.GetState("k", &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, ctx.SetState("k", map[string]int{"a": 1}))
	require.Equal(t, "c1", rep.state["k"].Manifest.SourceFunctionCallID)
	ok, err = ctx.GetState("k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]int{"a": 1}, got)

	ctx.IncCounter("items", 2)
	ctx.IncCounter("items", 3)
	ctx.ObserveTimer("step", 0.25)
	m := ctx.Metrics()
	require.Equal(t, uint64(5), m.Counters["items"])
	require.Equal(t, 0.25, m.Timers["step"])
}

func TestContextTimerUsesClock(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	ctx := NewContext(context.Background(), Info{}, &recordingReporter{}, clk, zap.NewNop())
	stop := ctx.StartTimer("load")
	clk.Add(1500 * time.Millisecond)
	stop()
	require.Equal(t, 1.5, ctx.Metrics().Timers["load"])
}

func TestCallRecoversPanic(t *testing.T) {
	t.Parallel()

	f := &Function{Name: "boom", Handler: func(*Context, []*serialized.Value) (any, error) {
		panic("boom")
	}}
	ctx := NewContext(context.Background(), Info{}, &recordingReporter{}, clock.NewMock(), zap.NewNop())
	_, err := Call(ctx, f, nil)
	require.True(t, errors.Is(err, errors.ErrFunctionPanicked))
	require.Contains(t, err.Error(), "boom")
}

func TestErrorPayload(t *testing.T) {
	t.Parallel()

	obj, err := NewError("bad input", nil).PayloadObject("c1")
	require.NoError(t, err)
	require.Equal(t, serialized.EncodingUTF8Text, obj.Manifest.Encoding)
	require.Equal(t, "bad input", string(obj.Data))
	require.Equal(t, "c1", obj.Manifest.SourceFunctionCallID)

	obj, err = NewError("bad input", map[string]string{"field": "x"}).PayloadObject("c1")
	require.NoError(t, err)
	require.Equal(t, serialized.EncodingUTF8JSON, obj.Manifest.Encoding)
	require.JSONEq(t, `{"field":"x"}`, string(obj.Data))

	require.Equal(t, "arg 1 is negative", NewRequestError("arg %d is negative", 1).Error())
}
