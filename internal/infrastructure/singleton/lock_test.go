package singleton

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// portOf 取监听器端口的 ":port" 形式
func portOf(t *testing.T, l net.Listener) string {
	t.Helper()
	addr, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return fmt.Sprintf(":%d", addr.Port)
}

// freePort 申请并立刻释放一个空闲端口
func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := portOf(t, l)
	require.NoError(t, l.Close())
	return port
}

func TestCheckAndLock_PortAvailable(t *testing.T) {
	listener, err := CheckAndLock(freePort(t))
	require.NoError(t, err)
	require.NotNil(t, listener)
	listener.Close()
}

func TestCheckAndLock_PortHeldWithoutHealth(t *testing.T) {
	// 占用端口但不提供 /health
	holder, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer holder.Close()

	listener, err := CheckAndLock(portOf(t, holder))
	assert.Error(t, err)
	assert.Nil(t, listener)
	assert.Contains(t, err.Error(), "健康检查失败")
}

func TestCheckAndLock_HealthyInstanceRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	// 健康实例已在运行，返回双 nil 提示调用者退出
	listener, err := CheckAndLock(portOf(t, server.Listener))
	require.NoError(t, err)
	assert.Nil(t, listener)
}

func TestIsAddrInUse(t *testing.T) {
	holder, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer holder.Close()

	_, inUseErr := net.Listen("tcp", holder.Addr().String())
	assert.True(t, isAddrInUse(inUseErr))

	_, badAddrErr := net.Listen("tcp", "invalid")
	assert.False(t, isAddrInUse(badAddrErr))
	assert.False(t, isAddrInUse(nil))
}

func TestIsInstanceRunning(t *testing.T) {
	t.Run("健康实例", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		assert.True(t, isInstanceRunning(portOf(t, server.Listener)))
	})

	t.Run("无实例", func(t *testing.T) {
		assert.False(t, isInstanceRunning(freePort(t)))
	})

	t.Run("非200响应", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		assert.False(t, isInstanceRunning(portOf(t, server.Listener)))
	})
}
