// Copyright (c) ToolHub Authors.
// Licensed under the MIT License.

/*
Package types 提供 ToolHub 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 schema、vault、
provider、registry、api 等上层模块提供统一的类型契约。所有跨包共享的
结构体、枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable 标记
  - I18nText          — 双语文案（en_US / zh_Hans）
  - ToolSchema        — 工具定义（name + description + JSON Schema parameters）
  - ToolResult        — 工具调用结果

# 主要能力

  - Context 传播：WithTraceID / WithTenantID / WithUserID / WithRequestID
  - 错误工具链：NewError + WithCause / WithHTTPStatus / WithRetryable
  - 错误分类：GetErrorCode / IsErrorCode / IsRetryable
  - 常用错误构造：NewValidationError / NewConflictError / NewNotFoundError /
    NewInvalidSchemaError / NewLimitExceededError / NewFetchError
*/
package types
