package preflight

import (
	"fmt"
	"net"
)

// CheckListenAddr checks that addr can be bound. A busy port is only a
// warning, since the server holding it may be docfind itself.
func (c *Checker) CheckListenAddr(addr string) CheckResult {
	result := CheckResult{Name: "listen_addr"}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s is not available", addr)
		result.Details = err.Error()
		return result
	}
	_ = ln.Close()

	result.Status = StatusPass
	result.Message = addr + " is free"
	return result
}
