// Package singleton 通过端口锁保证本机只有一个服务实例
package singleton

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// healthCheckTimeout 健康检查超时时间
const healthCheckTimeout = 2 * time.Second

// CheckAndLock 尝试占用服务端口作为单实例锁
// 端口空闲时返回 listener；已有健康实例在运行时返回 (nil, nil)，
// 调用者应直接退出；端口被占用但健康检查不通过时返回错误。
func CheckAndLock(port string) (net.Listener, error) {
	listener, err := net.Listen("tcp", port)
	if err == nil {
		return listener, nil
	}

	if !isAddrInUse(err) {
		return nil, fmt.Errorf("failed to listen on %s: %w", port, err)
	}

	if isInstanceRunning(port) {
		return nil, nil
	}
	return nil, fmt.Errorf("端口 %s 被占用，但健康检查失败，可能存在残留进程", port)
}

// isAddrInUse 判断监听错误是否为地址已被占用
func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	// Windows 下错误码不同（WSAEADDRINUSE 10048），按 errno 数值兜底
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == 10048
}

// isInstanceRunning 探测占用端口的进程是否是一个健康的服务实例
func isInstanceRunning(port string) bool {
	client := &http.Client{Timeout: healthCheckTimeout}

	resp, err := client.Get(fmt.Sprintf("http://localhost%s/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
