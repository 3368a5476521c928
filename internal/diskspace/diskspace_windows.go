//go:build windows

// Package diskspace reports available free space at a path, used as an
// import-time preflight check against the source collection's total size.
package diskspace

import "golang.org/x/sys/windows"

// Available returns the free space, in bytes, on the volume containing path.
func Available(path string) (uint64, error) {
	var freeBytesAvailable, totalNumberOfBytes, totalNumberOfFreeBytes uint64

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	err = windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalNumberOfBytes, &totalNumberOfFreeBytes)
	if err != nil {
		return 0, err
	}

	return freeBytesAvailable, nil
}
