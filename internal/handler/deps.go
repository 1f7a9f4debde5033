package handler

import (
	"tidechat/internal/app/chat"
	"tidechat/internal/app/store"
	"tidechat/internal/configs"
)

// AppDeps bundles the shared dependencies handlers need.
type AppDeps struct {
	Hub    *chat.Hub
	Store  *store.Store
	Config *configs.AppConfig
}
