package service

import (
	"testing"

	"go.uber.org/goleak"
)

// 分析器并发调用与超时处理不应遗留 goroutine。
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
