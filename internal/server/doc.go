// 版权所有 2025 ToolHub Authors. 保留所有权利。
// 此源代码的使用受 MIT 许可证约束，详见 LICENSE 文件。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误
传播流程。ToolHub 的 API 服务与指标服务各持有一个 Manager 实例。

  - 非阻塞启动：Start/StartTLS 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM 并触发优雅关闭。
  - 错误传播：Errors() 返回异步错误通道，供调用方监控服务异常。
  - TLS 加固：StartTLS 使用 tlsutil 的安全默认配置。
*/
package server
