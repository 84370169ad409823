//go:build !unix

package convert

import "os/exec"

// killGroupOnCancel leaves the default cancellation (kill the direct child)
// in place; WaitDelay still bounds the wait on inherited pipes.
func killGroupOnCancel(*exec.Cmd) {}
