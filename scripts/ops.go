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
	"fmt"
	"os"
	"sort"
)

// 開發任務入口：go run ./scripts <task>
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	run, ok := tasks[os.Args[1]]
	if !ok {
		PrintYellow(fmt.Sprintf("Unknown task: %s", os.Args[1]))
		usage()
		os.Exit(1)
	}
	if err := run(os.Args[2:]); err != nil {
		PrintRed(err.Error())
		os.Exit(1)
	}
}

var tasks = map[string]func(args []string) error{
	"test":        runTest,
	"test-all":    runTestAll,
	"test-detail": runTestDetail,
	"test-race":   runTestRace,
	"sim":         runSim,
	"svr":         runSvr,
}

func usage() {
	names := make([]string, 0, len(tasks))
	for k := range tasks {
		names = append(names, k)
	}
	sort.Strings(names)
	PrintWhite("Usage: go run ./scripts <task> [args...]")
	for _, n := range names {
		PrintBlue("  " + n)
	}
}
