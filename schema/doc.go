// Copyright 2025-2026 ToolHub Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package schema 提供将 API 描述文档编译为可调用工具包（Bundle）的能力。

该包将 OpenAPI 3.x、Swagger 2.0 或 OpenAI 插件清单（JSON / YAML 均可）
解析为有序的 Bundle 列表，每个 Bundle 对应文档中的一个 Operation，
包含名称、描述、参数定义、HTTP 方法和路径等完整信息。

# 核心接口/类型

  - Compiler — 文档编译器，负责识别格式并产出 Bundle
  - CompileResult — 编译结果（Bundles / SchemaType / Warnings）
  - Bundle — 单个可调用操作（ServerURL / Method / Path / Parameters）
  - Document / PathItem / Operation / Parameter — OpenAPI 结构体映射

# 主要能力

  - 格式识别：自动区分 OpenAPI 3.x、Swagger 2.0、OpenAI 插件清单
  - 顺序保证：Bundle 顺序与文档中路径出现顺序一致
  - Swagger 转换：2.0 文档转换为 OpenAPI 结构并附带警告
  - 插件清单：通过 Resolver 跟随 api.url 拉取实际规范
  - 错误归一：所有解析失败统一为 INVALID_SCHEMA 结构化错误
*/
package schema
