package preflight

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable,
// writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the volume holding path has at least minBytes
// available to an unprivileged writer.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %d MiB free, need %d MiB)", path, free>>20, minBytes>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free>>20)}
}

// CheckMPD verifies the music daemon answers with its protocol greeting.
func CheckMPD(ctx context.Context, addr string) Result {
	const name = "MPD"

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	greeting, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: reading greeting: %v)", addr, err)}
	}
	if !strings.HasPrefix(greeting, "OK MPD") {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: unexpected greeting %q)", addr, strings.TrimSpace(greeting))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", addr, strings.TrimSpace(greeting))}
}

// CheckLastfmKey verifies a Last.fm API key is configured when the provider
// is enabled.
func CheckLastfmKey(apiKey string) Result {
	const name = "Last.fm API key"
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "provider enabled but no api key configured"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}
