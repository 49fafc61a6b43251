//go:build !windows

package preflight

import "golang.org/x/sys/unix"

// platformFreeSpace returns the bytes available to an unprivileged caller on
// the filesystem containing path.
func platformFreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
