// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operation

import (
	"context"

	"github.com/walteh/tracksync/pkg/log"
)

// 🧹 CleanOperation forgets everything cached for an account
type CleanOperation struct {
	target *Target
}

func NewCleanOperation(t *Target) *CleanOperation {
	return &CleanOperation{target: t}
}

func (op *CleanOperation) Name() string    { return "clean" }
func (op *CleanOperation) Target() *Target { return op.target }

func (op *CleanOperation) Execute(ctx context.Context) error {
	if err := op.target.Service.DeleteCachedData(ctx, op.target.Account); err != nil {
		return err
	}
	log.FromContext(ctx).Successf("cleared cached data for %s", op.target.Name)
	return nil
}
