// Copyright 2026 The magsp00f Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package emv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagDictionaryName(t *testing.T) {
	t.Parallel()

	d := NewTagDictionary()

	assert.Equal(t, "Application Identifier (AID)", d.Name("4F"))
	assert.Equal(t, "Track 2 Equivalent Data", d.Name("57"))
	assert.Equal(t, "Cryptogram Information Data", d.Name("9F27"))
	assert.Equal(t, "Unknown", d.Name("DF01"))
}
