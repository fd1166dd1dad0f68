package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os/exec"
	"runtime"
	"time"

	"github.com/zintix-labs/dicelab"
	"github.com/zintix-labs/dicelab/server"
	"github.com/zintix-labs/dicelab/server/logger"
	"github.com/zintix-labs/dicelab/server/svrcfg"
	"github.com/zintix-labs/dicelab/store/memstore"
)

// 本機開發用：記憶體帳本、開啟 /dev 路由、dev log，啟動後打開瀏覽器。
func main() {
	addr := flag.String("addr", "127.0.0.1:5808", "listen address")
	open := flag.Bool("open", true, "open /dev in the browser once listening")
	flag.Parse()

	logg, ah := logger.NewAsync(4096, logger.ModeDev)
	defer ah.Close()

	eng, err := dicelab.New(memstore.New(), dicelab.WithLogger(logg))
	if err != nil {
		log.Fatal("engine: " + err.Error())
	}
	if *open {
		go func() {
			if err := waitForTCP(*addr, 5*time.Second); err != nil {
				logg.Warn("dev server not ready: " + err.Error())
				return
			}
			if err := openBrowser("http://" + dialAddr(*addr) + "/dev"); err != nil {
				logg.Warn("open browser failed: " + err.Error())
			}
		}()
	}
	if err := server.Run(&svrcfg.SvrCfg{Log: logg, Addr: *addr, Dev: true, Engine: eng}); err != nil {
		logg.Error("server: " + err.Error())
	}
}

// dialAddr ":5808" 這種只有 port 的位址補上 127.0.0.1
func dialAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return "127.0.0.1:" + port
	}
	return addr
}

func waitForTCP(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	target := dialAddr(addr)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", target, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
