package netsvr

import (
	"net/http"

	"github.com/zintix-labs/dicelab/server/app"
)

// NetSvr 封裝「路由行為 + 服務啟停」。
//   - 只暴露給最外層（server.Run）使用，其他層只需面向 NetRouter。
//   - 實作基於 net/http + chi；handler / middleware 都是標準庫型別。
//   - NetSvr 同時是 app.Component，可直接交給 app.App 管理生命週期。
type NetSvr interface {
	NetRouter
	app.Component
	// Handler 回傳根 handler（httptest 用）
	Handler() http.Handler
}

// NetRouter 純路由行為，不含 Run/Shutdown，子模組拿到它也無法控制 server 生命週期。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	Group(path string, fn func(NetRouter))
}
