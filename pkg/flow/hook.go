/*
 * Copyright 2018 The Service Manager Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package flow contains the operation flow engine of the broker. A flow is an ordered list of hooks
// that is run around the provisioning contract of one lifecycle operation.
package flow

import (
	"context"
	"fmt"
)

// Hook extends a lifecycle operation. Initialize runs before the operation and may abort it,
// Complete runs after it succeeded and Error runs after it failed.
type Hook[Req, Resp any] interface {
	Initialize(ctx context.Context, req Req) error
	Complete(ctx context.Context, req Req, resp Resp) error
	Error(ctx context.Context, req Req, err error) error
}

// Named can be implemented by hooks to be identified in logs and metrics
type Named interface {
	Name() string
}

// NoopHook implements every stage of Hook as a no-op. Embed it to implement only some of the stages.
type NoopHook[Req, Resp any] struct{}

// Initialize implements Hook
func (NoopHook[Req, Resp]) Initialize(context.Context, Req) error { return nil }

// Complete implements Hook
func (NoopHook[Req, Resp]) Complete(context.Context, Req, Resp) error { return nil }

// Error implements Hook
func (NoopHook[Req, Resp]) Error(context.Context, Req, error) error { return nil }

// HookFuncs adapts functions to a Hook. Nil functions are no-ops.
type HookFuncs[Req, Resp any] struct {
	HookName     string
	OnInitialize func(ctx context.Context, req Req) error
	OnComplete   func(ctx context.Context, req Req, resp Resp) error
	OnError      func(ctx context.Context, req Req, err error) error
}

// Name implements Named
func (h HookFuncs[Req, Resp]) Name() string {
	return h.HookName
}

// Initialize implements Hook
func (h HookFuncs[Req, Resp]) Initialize(ctx context.Context, req Req) error {
	if h.OnInitialize == nil {
		return nil
	}
	return h.OnInitialize(ctx, req)
}

// Complete implements Hook
func (h HookFuncs[Req, Resp]) Complete(ctx context.Context, req Req, resp Resp) error {
	if h.OnComplete == nil {
		return nil
	}
	return h.OnComplete(ctx, req, resp)
}

// Error implements Hook
func (h HookFuncs[Req, Resp]) Error(ctx context.Context, req Req, err error) error {
	if h.OnError == nil {
		return nil
	}
	return h.OnError(ctx, req, err)
}

func hookName(hook interface{}) string {
	if named, ok := hook.(Named); ok && named.Name() != "" {
		return named.Name()
	}
	return fmt.Sprintf("%T", hook)
}
