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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// lineFilter 回傳 false 表示該行不印
type lineFilter func(line string) bool

// runTest 只印 ok / FAIL 與建置失敗的行
func runTest(args []string) error {
	PrintGreen("running tests")
	cleanCache(false)
	return goTest(append([]string{"./...", "-cover", "-count=1"}, args...), func(line string) bool {
		return strings.HasPrefix(line, "ok") || strings.HasPrefix(line, "FAIL") ||
			strings.Contains(line, "build failed") || strings.Contains(line, "setup failed")
	})
}

// runTestAll 全部套件加 coverage，輸出不過濾
func runTestAll(args []string) error {
	PrintGreen("running tests (all with coverage)")
	if err := cleanCache(true); err != nil {
		return err
	}
	return goTest(append([]string{"./...", "-cover"}, args...), nil)
}

// runTestDetail verbose，略過沒有測試檔的套件
func runTestDetail(args []string) error {
	PrintGreen("running tests (detail)")
	if err := cleanCache(true); err != nil {
		return err
	}
	return goTest(append([]string{"./...", "-v", "-count=1"}, args...), func(line string) bool {
		return !strings.Contains(line, "[no test files]")
	})
}

// runTestRace 帳本分片鎖、autobet manager 與非同步 log 都有併發路徑
func runTestRace(args []string) error {
	PrintGreen("running tests (race)")
	cleanCache(false)
	return goTest(append([]string{"./...", "-race", "-count=1"}, args...), func(line string) bool {
		return !strings.Contains(line, "[no test files]")
	})
}

// runSim 小規模跑一次模擬器，確認 cmd/run 可執行
func runSim(args []string) error {
	PrintGreen("running simulator")
	if len(args) == 0 {
		args = []string{"-rounds", "200000", "-worker", "4", "-seed", "1"}
	}
	return goRun("./cmd/run", args)
}

func runSvr(args []string) error {
	PrintGreen("starting server")
	if len(args) == 0 {
		args = []string{"-log-mode", "dev", "-dev"}
	}
	return goRun("./cmd/svr", args)
}

func cleanCache(must bool) error {
	cmd := exec.Command("go", "clean", "-testcache")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		PrintRed(fmt.Sprintf("go clean -testcache failed: %v", err))
		if must {
			return err
		}
	}
	return nil
}

func goRun(pkg string, args []string) error {
	cmd := exec.Command("go", append([]string{"run", pkg}, args...)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// goTest 合併 stdout / stderr 後逐行上色；filter 為 nil 時全部照印
func goTest(args []string, filter lineFilter) error {
	cmd := exec.Command("go", append([]string{"test"}, args...)...)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start go test: %w", err)
	}
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if filter != nil && !filter(line) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "ok"):
			PrintGreen(line)
		case strings.HasPrefix(line, "FAIL"), strings.HasPrefix(line, "--- FAIL"):
			PrintRed(line)
		default:
			PrintDefault(line)
		}
	}
	if err := scanner.Err(); err != nil {
		PrintRed(fmt.Sprintf("scanner error: %v", err))
	}
	if err := <-waitErr; err != nil {
		return errors.New("tests finished with errors")
	}
	return nil
}
