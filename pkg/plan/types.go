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

package plan

import (
	"fmt"
	"time"

	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
)

// FunctionRef identifies the function a call targets.
type FunctionRef struct {
	Namespace          string `json:"namespace"`
	ApplicationName    string `json:"application_name"`
	FunctionName       string `json:"function_name"`
	ApplicationVersion string `json:"application_version"`
}

func (r FunctionRef) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", r.Namespace, r.ApplicationName, r.FunctionName, r.ApplicationVersion)
}

// Validate checks that every part of the reference is set.
func (r FunctionRef) Validate() error {
	if r.Namespace == "" || r.ApplicationName == "" || r.FunctionName == "" || r.ApplicationVersion == "" {
		return errors.ErrInvalidArgument.GenWithStackByArgs("function reference is incomplete: " + r.String())
	}
	return nil
}

// FunctionArg is either a literal value or the result of another call.
type FunctionArg struct {
	Value *blob.ObjectRef `json:"value,omitempty"`
	// CallID names the call whose result is the value.
	CallID string `json:"call_id,omitempty"`
}

// ValueArg returns an argument holding a literal value.
func ValueArg(ref *blob.ObjectRef) FunctionArg {
	return FunctionArg{Value: ref}
}

// CallArg returns an argument bound to the result of call id.
func CallArg(id string) FunctionArg {
	return FunctionArg{CallID: id}
}

func (a *FunctionArg) validate() error {
	switch {
	case a.Value != nil && a.CallID != "":
		return errors.New("argument has both a value and a call id")
	case a.Value != nil:
		return a.Value.Validate()
	case a.CallID != "":
		return nil
	default:
		return errors.New("argument has neither a value nor a call id")
	}
}

// FunctionCall is a new call to schedule.
type FunctionCall struct {
	ID       string        `json:"id"`
	Target   FunctionRef   `json:"target"`
	Args     []FunctionArg `json:"args"`
	Metadata []byte        `json:"metadata,omitempty"`
}

// ReduceOp folds Collection with Reducer, starting from the reducer's own
// zero value. Elements are accumulated one by one in order.
type ReduceOp struct {
	ID         string        `json:"id"`
	Reducer    FunctionRef   `json:"reducer"`
	Collection []FunctionArg `json:"collection"`
	Metadata   []byte        `json:"metadata,omitempty"`
}

// Entry is one of FunctionCall or ReduceOp.
type Entry struct {
	Call   *FunctionCall `json:"call,omitempty"`
	Reduce *ReduceOp     `json:"reduce,omitempty"`
}

// ID returns the id of the call or reduce.
func (e *Entry) ID() string {
	switch {
	case e.Call != nil:
		return e.Call.ID
	case e.Reduce != nil:
		return e.Reduce.ID
	default:
		return ""
	}
}

// Args returns the arguments or collection elements.
func (e *Entry) Args() []FunctionArg {
	switch {
	case e.Call != nil:
		return e.Call.Args
	case e.Reduce != nil:
		return e.Reduce.Collection
	default:
		return nil
	}
}

func (e *Entry) target() FunctionRef {
	if e.Call != nil {
		return e.Call.Target
	}
	return e.Reduce.Reducer
}

// Update is a batch of calls and reduces emitted by one allocation.
type Update struct {
	Entries    []Entry   `json:"entries"`
	RootCallID string    `json:"root_call_id"`
	NotBefore  time.Time `json:"not_before"`
}

// Call appends a function call entry.
func (u *Update) Call(call FunctionCall) *Update {
	u.Entries = append(u.Entries, Entry{Call: &call})
	return u
}

// Reduce appends a reduce entry.
func (u *Update) Reduce(op ReduceOp) *Update {
	u.Entries = append(u.Entries, Entry{Reduce: &op})
	return u
}
