// Package config 提供 ToolHub 的统一配置加载。
// 优先级: 默认值 → YAML 文件 → 环境变量（TOOLHUB_ 前缀）。
package config
