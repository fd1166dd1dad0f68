// Package app 定義應用程式根目錄用以管理長期運行元件的最小生命週期抽象。
package app

import (
	"context"
	"sync"
)

// Component 任何「可啟動 / 可關閉」的長生命週期元件。
//   - Run() 阻塞直到元件停止（正常或錯誤）。
//   - Shutdown(ctx) 要求優雅關閉；實作方應尊重 ctx deadline/cancel。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// Closer 把「只需在關機時收尾」的資源（autobet 排程器、engine、store）包成 Component。
// Run 阻塞到 Shutdown 被呼叫。
type Closer struct {
	close func(ctx context.Context) error
	done  chan struct{}
	once  sync.Once
}

func NewCloser(fn func(ctx context.Context) error) *Closer {
	return &Closer{close: fn, done: make(chan struct{})}
}

func (c *Closer) Run() error {
	<-c.done
	return nil
}

// Shutdown 只有第一次呼叫會執行收尾函數。
func (c *Closer) Shutdown(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.close != nil {
			err = c.close(ctx)
		}
	})
	return err
}
