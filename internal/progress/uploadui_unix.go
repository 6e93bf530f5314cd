//go:build !windows

package progress

import "os"

// enableWindowsANSI does nothing; Unix terminals handle ANSI natively.
func enableWindowsANSI(*os.File) {}
