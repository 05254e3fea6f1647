// Copyright 2020 The gVisor Authors.
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

package sync

import (
	"runtime"
)

// spinYieldEvery is the number of busy iterations between yields.
const spinYieldEvery = 64

// SpinWait busy-waits until cond returns true. It yields the processor every
// few iterations so that a waiter never starves the goroutine it waits for
// when GOMAXPROCS is smaller than the number of spinners.
func SpinWait(cond func() bool) {
	for i := 1; !cond(); i++ {
		if i%spinYieldEvery == 0 {
			runtime.Gosched()
		}
	}
}
