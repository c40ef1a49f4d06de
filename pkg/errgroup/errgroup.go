/*
Copyright 2024 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errgroup

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

// Group is an errgroup whose goroutines are named and turn panics into errors, so one misbehaving
// listener brings the process down through Wait instead of crashing it
type Group struct {
	*errgroup.Group
	logger logger.Logger
	ctx    context.Context
}

func WithContext(ctx context.Context, loggerInstance logger.Logger) (*Group, context.Context) {
	newBaseErrgroup, errgroupCtx := errgroup.WithContext(ctx)

	return &Group{
		Group:  newBaseErrgroup,
		logger: loggerInstance,
		ctx:    errgroupCtx,
	}, errgroupCtx
}

func (g *Group) Go(actionName string, f func() error) {
	wrapper := func() (err error) {
		defer func() {
			if recoveredErr := recover(); recoveredErr != nil {
				g.logger.ErrorWithCtx(g.ctx, "Panic caught while running action",
					"action", actionName,
					"err", recoveredErr,
					"stack", string(debug.Stack()))

				err = errorFromRecovered(actionName, recoveredErr)
			}
		}()

		if err = f(); err != nil {
			g.logger.DebugWithCtx(g.ctx, "Action failed", "action", actionName, "err", err.Error())
		}

		return
	}

	g.Group.Go(wrapper)
}

func errorFromRecovered(actionName string, recoveredErr interface{}) error {
	switch typedErr := recoveredErr.(type) {
	case error:
		return errors.Wrapf(typedErr, "Action %s panicked", actionName)
	default:
		return errors.New(fmt.Sprintf("Action %s panicked: %v", actionName, typedErr))
	}
}
