// Copyright 2021 The gVisor Authors.
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
	"errors"
	"sync/atomic"
	"testing"
)

func TestWaitGroupErrFirstWins(t *testing.T) {
	first := errors.New("first")
	var wg WaitGroupErr
	wg.Add(1)
	go func() {
		defer wg.Done()
		wg.ReportError(first)
		wg.ReportError(errors.New("second"))
	}()
	if err := wg.Error(); err != first {
		t.Errorf("Error() = %v, want %v", err, first)
	}
	if got := wg.Failures(); got != 2 {
		t.Errorf("Failures() = %d, want 2", got)
	}
}

func TestWaitGroupErrGo(t *testing.T) {
	var (
		wg  WaitGroupErr
		ran atomic.Int32
	)
	boom := errors.New("boom")
	for i := 0; i < 8; i++ {
		wg.Go(func() error {
			ran.Add(1)
			if i%2 == 0 {
				return boom
			}
			return nil
		})
	}
	if err := wg.Error(); err != boom {
		t.Errorf("Error() = %v, want %v", err, boom)
	}
	if got := wg.Failures(); got != 4 {
		t.Errorf("Failures() = %d, want 4", got)
	}
	if got := ran.Load(); got != 8 {
		t.Errorf("%d goroutines ran, want 8", got)
	}
}

func TestWaitGroupErrNoError(t *testing.T) {
	var wg WaitGroupErr
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go wg.Done()
	}
	if err := wg.Error(); err != nil {
		t.Errorf("Error() = %v, want nil", err)
	}
}

func TestSpinWait(t *testing.T) {
	var flag atomic.Bool
	go flag.Store(true)
	SpinWait(flag.Load)
	if !flag.Load() {
		t.Errorf("SpinWait returned before the condition held")
	}
}
