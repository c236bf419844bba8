//go:build windows

package fingerprint

import "os"

func inode(info os.FileInfo) (uint64, bool) {
	return 0, false
}
