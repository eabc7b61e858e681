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

package store

import (
	"context"
	"sync"

	"github.com/walteh/tracksync/pkg/cache"
)

// Memory keeps documents in a map.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ cache.Documents = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{docs: map[string][]byte{}}
}

func memoryKey(coll cache.Collection, externalID string) string {
	return string(coll) + "/" + externalID
}

func (m *Memory) Get(ctx context.Context, coll cache.Collection, externalID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[memoryKey(coll, externalID)]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(ctx context.Context, coll cache.Collection, externalID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[memoryKey(coll, externalID)] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(ctx context.Context, coll cache.Collection, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, memoryKey(coll, externalID))
	return nil
}

func (m *Memory) Close() error {
	return nil
}
