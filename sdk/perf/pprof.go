// Copyright 2025 Zintix Labs
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

package perf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
)

// Dir pprof 檔寫入路徑
var Dir = "build/profiling"

// RunPProf 依 mode 包住 exe 收集 profile：
//
//	""      不收集
//	cpu     CPU profile（也可作為 PGO 的 default.pgo）
//	heap    exe 結束後的 in-use heap 快照
//	allocs  累積配置，搭配 -alloc_space / -alloc_objects 查看
//	mutex   鎖競爭（帳本分片鎖、模擬器的 worker）
//
// 未知的 mode 直接執行 exe。
func RunPProf(exe func(), mode string) {
	var err error
	switch mode {
	case "cpu":
		err = PProfCPU(exe)
	case "heap":
		err = afterRun(exe, "heap", func() { runtime.GC() })
	case "allocs":
		err = afterRun(exe, "allocs", nil)
	case "mutex":
		runtime.SetMutexProfileFraction(5)
		defer runtime.SetMutexProfileFraction(0)
		err = afterRun(exe, "mutex", nil)
	default:
		exe()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "pprof:", err)
	}
}

// PProfCPU 執行 exe 期間收集 CPU profile，寫到 <Dir>/cpu.pprof
func PProfCPU(exe func()) error {
	f, err := create("cpu")
	if err != nil {
		exe()
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		exe()
		return fmt.Errorf("start cpu profile: %w", err)
	}
	exe()
	pprof.StopCPUProfile()
	return nil
}

// afterRun 執行 exe 後把具名 profile 寫到 <Dir>/<name>.pprof；prepare 在寫入前呼叫
func afterRun(exe func(), name string, prepare func()) error {
	exe()
	if prepare != nil {
		prepare()
	}
	prof := pprof.Lookup(name)
	if prof == nil {
		return fmt.Errorf("unknown profile %q", name)
	}
	f, err := create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return fmt.Errorf("write %s profile: %w", name, err)
	}
	return nil
}

func create(name string) (*os.File, error) {
	if err := os.MkdirAll(Dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(Dir, name+".pprof"))
	if err != nil {
		return nil, fmt.Errorf("create %s.pprof: %w", name, err)
	}
	return f, nil
}
