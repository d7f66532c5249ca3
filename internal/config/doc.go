// Package config 负责加载与校验 swiftyd 的启动配置。
package config
